package expand

import "github.com/zclconf/go-cty/cty"

// Overlay is an immutable two-level parameter lookup: a pass's override map
// shadowing the global base map. Keys absent from the override fall through
// to the base. Modelling the overlay explicitly, rather than mutating and
// restoring a shared map, keeps passes independent of each other.
type Overlay struct {
	base     map[string]cty.Value
	override map[string]cty.Value
}

// NewOverlay builds an overlay of override on top of base. Either map may be
// nil.
func NewOverlay(base, override map[string]cty.Value) *Overlay {
	return &Overlay{base: base, override: override}
}

// Lookup resolves a parameter name, checking the override first.
func (o *Overlay) Lookup(name string) (cty.Value, bool) {
	if v, ok := o.override[name]; ok {
		return v, true
	}
	v, ok := o.base[name]
	return v, ok
}
