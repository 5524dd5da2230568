package dag

import (
	"sort"
	"sync"

	"github.com/vk/pipegrid/internal/expand"
)

// Graph is the immutable dependency graph over an expanded pipeline's steps.
// The memoized closures are the only mutable state and are guarded by a
// mutex, so concurrent eligibility checks from the engine are safe.
type Graph struct {
	steps []*expand.Step
	nodes map[string]*node

	// producers maps every data key to the single step producing it.
	producers map[string]string
	// consumers maps every data key to the steps consuming it.
	consumers map[string][]string

	mu          sync.Mutex
	topo        []string
	ancestors   map[string]map[string]struct{}
	descendants map[string]map[string]struct{}
}

// node is a single vertex. It is unexported to enforce interaction with the
// graph via step names.
type node struct {
	step       *expand.Step
	deps       map[string]*node
	dependents map[string]*node
}

// Steps returns every step in declaration order.
func (g *Graph) Steps() []*expand.Step {
	return g.steps
}

// Step returns the named step, or nil if it is not part of the graph.
func (g *Graph) Step(name string) *expand.Step {
	if n, ok := g.nodes[name]; ok {
		return n.step
	}
	return nil
}

// Producer returns the step producing the given data key. The second return
// is false for external (pre-existing) data.
func (g *Graph) Producer(key string) (string, bool) {
	p, ok := g.producers[key]
	return p, ok
}

// Dependencies returns the direct predecessors of a step, sorted by name.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return sortedKeys(n.deps)
}

// Dependents returns the direct successors of a step, sorted by name.
func (g *Graph) Dependents(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return sortedKeys(n.dependents)
}

// TopologicalOrder returns a deterministic producer-before-consumer order,
// ties broken by declaration order. The order is computed once and memoized;
// cycle detection has already run during Build, so the traversal cannot get
// stuck.
func (g *Graph) TopologicalOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.topo != nil {
		return g.topo
	}

	indegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		indegree[name] = len(n.deps)
	}

	var ready []*expand.Step
	for _, s := range g.steps {
		if indegree[s.Name] == 0 {
			ready = append(ready, s)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return ready[i].DeclIndex < ready[j].DeclIndex
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next.Name)

		for _, dependent := range g.nodes[next.Name].dependents {
			indegree[dependent.step.Name]--
			if indegree[dependent.step.Name] == 0 {
				ready = append(ready, dependent.step)
			}
		}
	}

	g.topo = order
	return order
}

// Ancestors returns the transitive predecessor set of a step. The result is
// memoized; callers must not mutate it.
func (g *Graph) Ancestors(name string) map[string]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closure(name, g.ancestors, func(n *node) map[string]*node { return n.deps })
}

// Descendants returns the transitive successor set of a step. The result is
// memoized; callers must not mutate it.
func (g *Graph) Descendants(name string) map[string]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closure(name, g.descendants, func(n *node) map[string]*node { return n.dependents })
}

// closure computes a transitive reachability set over the chosen edge
// direction. Caller holds g.mu.
func (g *Graph) closure(name string, memo map[string]map[string]struct{}, edges func(*node) map[string]*node) map[string]struct{} {
	if set, ok := memo[name]; ok {
		return set
	}
	start, ok := g.nodes[name]
	if !ok {
		return nil
	}

	set := make(map[string]struct{})
	stack := []*node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for id, next := range edges(n) {
			if _, seen := set[id]; seen {
				continue
			}
			set[id] = struct{}{}
			stack = append(stack, next)
		}
	}

	memo[name] = set
	return set
}

// OutputConflict reports whether two steps would write the same data key.
// The single-producer invariant should make this unreachable; it is retained
// as a scheduling safety net against collisions reintroduced by malformed
// suffixing.
func (g *Graph) OutputConflict(a, b string) bool {
	na, okA := g.nodes[a]
	nb, okB := g.nodes[b]
	if !okA || !okB || a == b {
		return false
	}

	keys := make(map[string]struct{})
	for _, k := range producedKeys(na.step) {
		keys[k] = struct{}{}
	}
	for _, k := range producedKeys(nb.step) {
		if _, shared := keys[k]; shared {
			return true
		}
	}
	return false
}

// producedKeys lists every data key a step produces, output flags and alias
// registrations alike.
func producedKeys(s *expand.Step) []string {
	keys := make([]string, 0, len(s.Outputs)+len(s.AlsoProduces))
	for _, out := range s.Outputs {
		keys = append(keys, out.Data)
	}
	keys = append(keys, s.AlsoProduces...)
	return keys
}

func sortedKeys(m map[string]*node) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
