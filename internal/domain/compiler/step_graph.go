package compiler

// StepGraph is a directed graph of steps keyed by ID. Iteration order follows
// insertion order so results are deterministic.
type StepGraph struct {
	order      []string
	steps      map[string]Step
	dependsOn  map[string][]string
	dependedBy map[string][]string
}

// NewStepGraph creates an empty StepGraph.
func NewStepGraph() *StepGraph {
	return &StepGraph{
		steps:      make(map[string]Step),
		dependsOn:  make(map[string][]string),
		dependedBy: make(map[string][]string),
	}
}

// BuildStepGraph adds every step and validates the result.
func BuildStepGraph(steps []Step) (*StepGraph, error) {
	g := NewStepGraph()
	for _, s := range steps {
		if err := g.Add(s); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Len returns the number of steps in the graph.
func (g *StepGraph) Len() int {
	return len(g.steps)
}

// Add adds a step to the graph.
func (g *StepGraph) Add(step Step) error {
	id := step.ID().String()
	if _, exists := g.steps[id]; exists {
		return NewStepDuplicateError(id)
	}

	g.steps[id] = step
	g.order = append(g.order, id)

	deps := step.DependsOn()
	depIDs := make([]string, len(deps))
	for i, dep := range deps {
		depID := dep.String()
		depIDs[i] = depID
		g.dependedBy[depID] = append(g.dependedBy[depID], id)
	}
	g.dependsOn[id] = depIDs
	return nil
}

// Get retrieves a step by ID.
func (g *StepGraph) Get(id StepID) (Step, bool) {
	step, ok := g.steps[id.String()]
	return step, ok
}

// Steps returns all steps in insertion order.
func (g *StepGraph) Steps() []Step {
	steps := make([]Step, 0, len(g.order))
	for _, id := range g.order {
		steps = append(steps, g.steps[id])
	}
	return steps
}

// Dependents returns the IDs of steps that directly depend on id.
func (g *StepGraph) Dependents(id StepID) []string {
	return append([]string(nil), g.dependedBy[id.String()]...)
}

// Validate checks that every dependency exists and that the graph is acyclic.
func (g *StepGraph) Validate() error {
	for _, id := range g.order {
		for _, depID := range g.dependsOn[id] {
			if _, exists := g.steps[depID]; !exists {
				return NewDependencyMissingError(id, depID)
			}
		}
	}
	_, err := g.TopologicalSort()
	return err
}

// TopologicalSort returns steps in dependency order using Kahn's algorithm.
// Ready steps are released in insertion order. A cycle yields *CycleError.
func (g *StepGraph) TopologicalSort() ([]Step, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	sorted := make([]Step, 0, len(g.steps))
	for _, level := range levels {
		sorted = append(sorted, level...)
	}
	return sorted, nil
}

// Levels partitions steps into batches: roots are level 0 and every other
// step sits at 1 + the maximum level of its direct dependencies. All steps of
// a level can run concurrently once earlier levels are done.
func (g *StepGraph) Levels() ([][]Step, error) {
	inDegree := make(map[string]int, len(g.steps))
	for _, id := range g.order {
		for _, depID := range g.dependsOn[id] {
			if _, exists := g.steps[depID]; !exists {
				return nil, NewDependencyMissingError(id, depID)
			}
			inDegree[id]++
		}
	}

	level := make(map[string]int, len(g.steps))
	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	maxLevel := -1
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		if level[id] > maxLevel {
			maxLevel = level[id]
		}

		for _, dependent := range g.dependedBy[id] {
			if level[id]+1 > level[dependent] {
				level[dependent] = level[id] + 1
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if processed != len(g.steps) {
		return nil, g.cycleError(inDegree)
	}

	levels := make([][]Step, maxLevel+1)
	for _, id := range g.order {
		levels[level[id]] = append(levels[level[id]], g.steps[id])
	}
	return levels, nil
}

// cycleError walks dependencies from the first unprocessed step until a
// step repeats, which yields one concrete cycle.
func (g *StepGraph) cycleError(inDegree map[string]int) error {
	var start string
	for _, id := range g.order {
		if inDegree[id] > 0 {
			start = id
			break
		}
	}

	pos := make(map[string]int)
	var path []string
	cur := start
	for {
		if i, seen := pos[cur]; seen {
			cycle := append(append([]string(nil), path[i:]...), cur)
			return &CycleError{StepID: cur, Path: cycle}
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := ""
		for _, depID := range g.dependsOn[cur] {
			if inDegree[depID] > 0 {
				next = depID
				break
			}
		}
		if next == "" {
			return &CycleError{StepID: start}
		}
		cur = next
	}
}
