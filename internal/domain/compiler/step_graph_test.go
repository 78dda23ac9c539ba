package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStepGraph_AddDuplicate(t *testing.T) {
	t.Parallel()

	g := NewStepGraph()
	require.NoError(t, g.Add(newFakeStep("base:packages:git")))

	err := g.Add(newFakeStep("base:packages:git"))
	require.ErrorIs(t, err, ErrDuplicateStep)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, ErrCodeStepDuplicate, stepErr.Code)
	assert.Equal(t, 1, g.Len())
}

func TestStepGraph_GetAndOrder(t *testing.T) {
	t.Parallel()

	g := NewStepGraph()
	for _, id := range []string{"m:c", "m:a", "m:b"} {
		require.NoError(t, g.Add(newFakeStep(id)))
	}

	assert.Equal(t, []string{"m:c", "m:a", "m:b"}, ids(g.Steps()))

	s, ok := g.Get(MustNewStepID("m:a"))
	require.True(t, ok)
	assert.Equal(t, "m:a", s.ID().String())

	_, ok = g.Get(MustNewStepID("m:z"))
	assert.False(t, ok)
}

func TestStepGraph_ValidateMissingDependency(t *testing.T) {
	t.Parallel()

	_, err := BuildStepGraph([]Step{
		newFakeStep("app:run:build", "base:packages:make"),
	})

	require.ErrorIs(t, err, ErrMissingDep)
	assert.Contains(t, err.Error(), "app:run:build")
	assert.Contains(t, err.Error(), "base:packages:make")
}

func TestStepGraph_ValidateCycle(t *testing.T) {
	t.Parallel()

	_, err := BuildStepGraph([]Step{
		newFakeStep("m:root"),
		newFakeStep("m:a", "m:c", "m:root"),
		newFakeStep("m:b", "m:a"),
		newFakeStep("m:c", "m:b"),
	})

	require.ErrorIs(t, err, ErrCyclicDependency)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, []string{"m:a", "m:b", "m:c"}, cycleErr.StepID)
	require.GreaterOrEqual(t, len(cycleErr.Path), 4)
	assert.Equal(t, cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1])
	assert.NotContains(t, cycleErr.Path, "m:root")
}

func TestStepGraph_SelfCycle(t *testing.T) {
	t.Parallel()

	_, err := BuildStepGraph([]Step{newFakeStep("m:self", "m:self")})

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "m:self", cycleErr.StepID)
	assert.Equal(t, []string{"m:self", "m:self"}, cycleErr.Path)
}

func TestStepGraph_Levels(t *testing.T) {
	t.Parallel()

	// a ─┬─> b ──> d
	//    └─> c ────^
	// e (independent)
	// f depends on a and d, so it lands one past d rather than one past a.
	g, err := BuildStepGraph([]Step{
		newFakeStep("m:a"),
		newFakeStep("m:b", "m:a"),
		newFakeStep("m:c", "m:a"),
		newFakeStep("m:d", "m:b", "m:c"),
		newFakeStep("m:e"),
		newFakeStep("m:f", "m:a", "m:d"),
	})
	require.NoError(t, err)

	levels, err := g.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 4)
	assert.Equal(t, []string{"m:a", "m:e"}, ids(levels[0]))
	assert.Equal(t, []string{"m:b", "m:c"}, ids(levels[1]))
	assert.Equal(t, []string{"m:d"}, ids(levels[2]))
	assert.Equal(t, []string{"m:f"}, ids(levels[3]))

	assert.ElementsMatch(t, []string{"m:b", "m:c", "m:f"}, g.Dependents(MustNewStepID("m:a")))
}

func TestStepGraph_Empty(t *testing.T) {
	t.Parallel()

	levels, err := NewStepGraph().Levels()
	require.NoError(t, err)
	assert.Empty(t, levels)

	sorted, err := NewStepGraph().TopologicalSort()
	require.NoError(t, err)
	assert.Empty(t, sorted)
}

// Random DAGs: every step appears exactly once and sits strictly after all
// of its dependencies, at exactly 1 + max(dependency level).
func TestStepGraph_LevelsProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 25).Draw(t, "n")
		steps := make([]Step, 0, n)
		deps := make(map[string][]string, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("m:s%d", i)
			var ds []string
			for j := 0; j < i; j++ {
				if rapid.Bool().Draw(t, fmt.Sprintf("edge_%d_%d", i, j)) {
					ds = append(ds, fmt.Sprintf("m:s%d", j))
				}
			}
			deps[id] = ds
			steps = append(steps, newFakeStep(id, ds...))
		}

		g, err := BuildStepGraph(steps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		levels, err := g.Levels()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		levelOf := make(map[string]int)
		for li, level := range levels {
			if len(level) == 0 {
				t.Fatalf("level %d is empty", li)
			}
			for _, s := range level {
				if _, dup := levelOf[s.ID().String()]; dup {
					t.Fatalf("step %s appears twice", s.ID())
				}
				levelOf[s.ID().String()] = li
			}
		}
		if len(levelOf) != n {
			t.Fatalf("got %d steps, want %d", len(levelOf), n)
		}
		for id, ds := range deps {
			want := 0
			for _, d := range ds {
				if levelOf[d]+1 > want {
					want = levelOf[d] + 1
				}
			}
			if levelOf[id] != want {
				t.Fatalf("step %s at level %d, want %d", id, levelOf[id], want)
			}
		}
	})
}

func TestStepError_Format(t *testing.T) {
	t.Parallel()

	step := newFakeStep("app:run:build")
	err := NewApplyFailedError(step, errors.New("exit status 2"))

	assert.Equal(t, `step "app:run:build": execution failed: exit status 2`, err.Error())
	formatted := err.Format()
	assert.Contains(t, formatted, "[APPLY_FAILED]")
	assert.Contains(t, formatted, "Module: app")
	assert.Contains(t, formatted, "Cause: exit status 2")

	check := NewCheckFailedError(step, errors.New("dpkg-query missing"))
	assert.Equal(t, ErrCodeCheckFailed, check.Code)
	assert.Contains(t, check.Format(), "Suggestion:")

	timeout := NewTimeoutError(step, errors.New("deadline"))
	assert.Equal(t, ErrCodeTimeout, timeout.Code)
}
