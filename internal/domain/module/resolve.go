package module

import "fmt"

// Resolve orders modules so that each comes after all of its dependencies.
// Ready modules are emitted in input order. A missing dependency fails before
// any ordering work.
func Resolve(mods []Module) ([]Module, error) {
	index, err := indexByName(mods)
	if err != nil {
		return nil, err
	}

	for _, m := range mods {
		for _, dep := range m.Dependencies {
			if _, ok := index[dep]; !ok {
				return nil, &MissingDependencyError{Module: m.Name, Dependency: dep}
			}
		}
	}

	// dependents[d] lists the modules that depend on d, in input order.
	dependents := make(map[string][]string, len(mods))
	inDegree := make(map[string]int, len(mods))
	for _, m := range mods {
		seen := make(map[string]bool, len(m.Dependencies))
		for _, dep := range m.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			dependents[dep] = append(dependents[dep], m.Name)
			inDegree[m.Name]++
		}
	}

	queue := make([]string, 0, len(mods))
	for _, m := range mods {
		if inDegree[m.Name] == 0 {
			queue = append(queue, m.Name)
		}
	}

	ordered := make([]Module, 0, len(mods))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, mods[index[name]])

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(ordered) != len(mods) {
		return nil, &CyclicDependencyError{Cycle: findCycle(mods, ordered)}
	}
	return ordered, nil
}

func indexByName(mods []Module) (map[string]int, error) {
	index := make(map[string]int, len(mods))
	for i, m := range mods {
		if _, dup := index[m.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name)
		}
		index[m.Name] = i
	}
	return index, nil
}

// findCycle runs a depth-first search over the modules Kahn's algorithm
// could not place and returns the first cycle it meets.
func findCycle(mods []Module, placed []Module) []string {
	done := make(map[string]bool, len(placed))
	for _, m := range placed {
		done[m.Name] = true
	}
	deps := make(map[string][]string, len(mods))
	var unresolved []string
	for _, m := range mods {
		deps[m.Name] = m.Dependencies
		if !done[m.Name] {
			unresolved = append(unresolved, m.Name)
		}
	}

	visited := make(map[string]bool)
	onPath := make(map[string]int)
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		if at, ok := onPath[name]; ok {
			cycle := append([]string(nil), path[at:]...)
			return append(cycle, name)
		}
		if visited[name] || done[name] {
			return nil
		}
		visited[name] = true
		onPath[name] = len(path)
		path = append(path, name)

		for _, dep := range deps[name] {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}

		path = path[:len(path)-1]
		delete(onPath, name)
		return nil
	}

	for _, name := range unresolved {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	// Unreachable for a well-formed graph; report what could not be placed.
	return unresolved
}
