// Package dag builds the dependency graph over the steps of an expanded
// pipeline. Edges derive from shared data-node producer/consumer pairs plus
// the explicit ordering edges loop expansion emits. The graph is immutable
// once built; the engine only ever reads it.
package dag
