package core

import "sort"

// Dependency is one edge of the computed graph, as recorded by the last
// evaluation of Computed.
type Dependency struct {
	Computed string
	Dep      string
	// Deep marks a subtree dependency, taken when a getter returned an object.
	Deep bool
}

// ComputedProp summarizes one computed key of a store.
type ComputedProp struct {
	Name  string
	Dirty bool
}

// Computeds lists the computed props of s, sorted by name.
func (s *Store) Computeds() []ComputedProp {
	var out []ComputedProp
	for _, p := range s.props {
		if p.computed == nil {
			continue
		}
		out = append(out, ComputedProp{Name: p.name, Dirty: p.computed.changed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dependencies lists the edges of every computed of s. A computed that was
// never read has no edges.
func (s *Store) Dependencies() []Dependency {
	var out []Dependency
	for _, p := range s.props {
		c := p.computed
		if c == nil {
			continue
		}
		for _, dep := range c.deps {
			out = append(out, Dependency{Computed: p.name, Dep: dep.Name()})
		}
		for _, o := range c.observed {
			out = append(out, Dependency{Computed: p.name, Dep: o.Name(), Deep: true})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Computed != out[j].Computed {
			return out[i].Computed < out[j].Computed
		}
		if out[i].Dep != out[j].Dep {
			return out[i].Dep < out[j].Dep
		}
		return !out[i].Deep && out[j].Deep
	})
	return out
}
