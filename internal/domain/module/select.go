package module

import "fmt"

// Filter selects modules by name or tag. A module matches when its name is
// listed or it carries any listed tag. An empty filter matches everything.
type Filter struct {
	Names []string
	Tags  []string
}

// IsEmpty reports whether the filter selects all modules.
func (f Filter) IsEmpty() bool {
	return len(f.Names) == 0 && len(f.Tags) == 0
}

func (f Filter) matches(m Module) bool {
	for _, n := range f.Names {
		if n == m.Name {
			return true
		}
	}
	for _, t := range f.Tags {
		if m.HasTag(t) {
			return true
		}
	}
	return false
}

// Select returns the modules matching f together with every module they
// depend on, transitively. Input order is preserved. Dependencies that are
// not in all are left for Resolve to report.
func Select(all []Module, f Filter) ([]Module, error) {
	index, err := indexByName(all)
	if err != nil {
		return nil, err
	}
	if f.IsEmpty() {
		return append([]Module(nil), all...), nil
	}

	for _, n := range f.Names {
		if _, ok := index[n]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, n)
		}
	}

	keep := make(map[string]bool, len(all))
	var pull func(name string)
	pull = func(name string) {
		i, ok := index[name]
		if !ok || keep[name] {
			return
		}
		keep[name] = true
		for _, dep := range all[i].Dependencies {
			pull(dep)
		}
	}
	for _, m := range all {
		if f.matches(m) {
			pull(m.Name)
		}
	}

	selected := make([]Module, 0, len(keep))
	for _, m := range all {
		if keep[m.Name] {
			selected = append(selected, m)
		}
	}
	return selected, nil
}
