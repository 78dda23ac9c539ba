package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/testutil/mocks"
)

// clock hands out a global sequence so tests can order events across
// goroutines.
type clock struct{ n atomic.Int64 }

func (c *clock) tick() int64 { return c.n.Add(1) }

type fakeStep struct {
	id     compiler.StepID
	module string
	deps   []compiler.StepID

	needsApply bool
	checkErr   error
	applyErr   error
	applyFn    func(ctx compiler.RunContext) error

	clock    *clock
	mu       sync.Mutex
	checked  int
	applied  int
	started  int64
	finished int64
}

func newFake(id string, deps ...string) *fakeStep {
	s := &fakeStep{
		id:         compiler.MustNewStepID(id),
		module:     strings.SplitN(id, ":", 2)[0],
		needsApply: true,
	}
	for _, d := range deps {
		s.deps = append(s.deps, compiler.MustNewStepID(d))
	}
	return s
}

func (s *fakeStep) ID() compiler.StepID { return s.id }
func (s *fakeStep) Module() string { return s.module }
func (s *fakeStep) DependsOn() []compiler.StepID { return s.deps }
func (s *fakeStep) Describe() string { return "fake " + s.id.String() }

func (s *fakeStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked++
	if s.clock != nil && s.started == 0 {
		s.started = s.clock.tick()
	}
	if s.checkErr != nil {
		return compiler.StatusUnknown, s.checkErr
	}
	return compiler.StatusFor(s.needsApply), nil
}

func (s *fakeStep) Apply(ctx compiler.RunContext) error {
	if s.applyFn != nil {
		if err := s.applyFn(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied++
	if s.clock != nil {
		s.finished = s.clock.tick()
	}
	if s.applyErr != nil {
		return s.applyErr
	}
	s.needsApply = false
	return nil
}

func (s *fakeStep) appliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

func (s *fakeStep) checkedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked
}

type tb interface {
	require.TestingT
	Helper()
}

func graphOf(t tb, steps ...*fakeStep) *compiler.StepGraph {
	t.Helper()
	all := make([]compiler.Step, len(steps))
	for i, s := range steps {
		all[i] = s
	}
	g, err := compiler.BuildStepGraph(all)
	require.NoError(t, err)
	return g
}

func newExecutor(t tb, mutate func(*Options), options ...Option) *Executor {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	e, err := NewExecutor(opts, options...)
	require.NoError(t, err)
	return e
}

func outcomes(s *Summary) map[string]Outcome {
	out := make(map[string]Outcome, len(s.Results))
	for _, r := range s.Results {
		out[r.StepID.String()] = r.Outcome
	}
	return out
}

func TestExecutor_RunsDependenciesFirst(t *testing.T) {
	t.Parallel()

	c := &clock{}
	a := newFake("base:a")
	b := newFake("base:b", "base:a")
	d := newFake("app:d", "base:b")
	for _, s := range []*fakeStep{a, b, d} {
		s.clock = c
	}

	summary, err := newExecutor(t, nil).Run(context.Background(), graphOf(t, d, b, a))
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Completed)
	assert.Less(t, a.finished, b.started)
	assert.Less(t, b.finished, d.started)
	assert.Equal(t, []int{0, 1, 2}, []int{summary.Results[0].Level, summary.Results[1].Level, summary.Results[2].Level})
}

func TestExecutor_DependentNeverStartsEarly(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "steps")
		c := &clock{}
		steps := make([]*fakeStep, n)
		for i := range n {
			var deps []string
			for j := range i {
				if rapid.Bool().Draw(rt, fmt.Sprintf("edge-%d-%d", j, i)) {
					deps = append(deps, fmt.Sprintf("m:s%d", j))
				}
			}
			steps[i] = newFake(fmt.Sprintf("m:s%d", i), deps...)
			steps[i].clock = c
			steps[i].needsApply = rapid.Bool().Draw(rt, fmt.Sprintf("needs-%d", i))
		}
		workers := rapid.IntRange(1, 4).Draw(rt, "workers")

		e := newExecutor(rt, func(o *Options) { o.Concurrency = workers })
		summary, err := e.Run(context.Background(), graphOf(rt, steps...))
		require.NoError(rt, err)
		require.Equal(rt, n, summary.Completed+summary.Skipped)

		index := make(map[string]*fakeStep, n)
		for _, s := range steps {
			index[s.id.String()] = s
		}
		for _, s := range steps {
			for _, dep := range s.deps {
				d := index[dep.String()]
				// A skipped dependency never finishes Apply; its Check must
				// still precede the dependent's Check.
				done := d.finished
				if done == 0 {
					done = d.started
				}
				if done >= s.started {
					rt.Fatalf("%s started at %d before %s finished at %d", s.id, s.started, d.id, done)
				}
			}
		}
	})
}

func TestExecutor_SkipsSatisfiedSteps(t *testing.T) {
	t.Parallel()

	s := newFake("base:ok")
	s.needsApply = false

	summary, err := newExecutor(t, nil).Run(context.Background(), graphOf(t, s))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Completed)
	assert.Zero(t, s.appliedCount())
	assert.True(t, summary.Success())
}

func TestExecutor_DryRunNeverApplies(t *testing.T) {
	t.Parallel()

	a := newFake("base:a")
	b := newFake("base:b", "base:a")
	sat := newFake("base:c")
	sat.needsApply = false

	summary, err := newExecutor(t, func(o *Options) { o.DryRun = true }).
		Run(context.Background(), graphOf(t, a, b, sat))
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
	for _, s := range []*fakeStep{a, b, sat} {
		assert.Equal(t, 1, s.checkedCount(), s.id.String())
		assert.Zero(t, s.appliedCount(), s.id.String())
	}
}

func TestExecutor_SecondRunIsNoop(t *testing.T) {
	t.Parallel()

	a := newFake("base:a")
	b := newFake("base:b", "base:a")
	g := graphOf(t, a, b)
	e := newExecutor(t, nil)

	first, err := e.Run(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Completed)

	second, err := e.Run(context.Background(), g)
	require.NoError(t, err)
	assert.Zero(t, second.Completed)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 1, a.appliedCount())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestExecutor_FailurePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failFast bool
		want     map[string]Outcome
	}{
		{
			name:     "fail fast stops after the failed level",
			failFast: true,
			want: map[string]Outcome{
				"m:bad":       OutcomeFailed,
				"m:good":      OutcomeCompleted,
				"m:after-bad": OutcomeNotAttempted,
				"m:after-ok":  OutcomeNotAttempted,
				"m:last":      OutcomeNotAttempted,
			},
		},
		{
			name:     "continue runs independent branches",
			failFast: false,
			want: map[string]Outcome{
				"m:bad":       OutcomeFailed,
				"m:good":      OutcomeCompleted,
				"m:after-bad": OutcomeNotAttempted,
				"m:after-ok":  OutcomeCompleted,
				"m:last":      OutcomeNotAttempted,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bad := newFake("m:bad")
			bad.applyErr = errors.New("disk full")
			good := newFake("m:good")
			afterBad := newFake("m:after-bad", "m:bad")
			afterOK := newFake("m:after-ok", "m:good")
			last := newFake("m:last", "m:after-bad", "m:after-ok")

			summary, err := newExecutor(t, func(o *Options) { o.FailFast = tt.failFast }).
				Run(context.Background(), graphOf(t, bad, good, afterBad, afterOK, last))
			require.NoError(t, err)

			assert.Equal(t, tt.want, outcomes(summary))
			assert.Zero(t, afterBad.checkedCount())
			assert.Zero(t, last.checkedCount())
			require.Len(t, summary.Failed, 1)
			assert.Equal(t, "m:bad", summary.Failed[0].StepID)
			assert.Equal(t, "execution failed: disk full", summary.Failed[0].Message)
			assert.False(t, summary.Success())
		})
	}
}

func TestExecutor_CheckErrorFailsStep(t *testing.T) {
	t.Parallel()

	s := newFake("m:broken")
	s.checkErr = errors.New("permission denied")

	summary, err := newExecutor(t, nil).Run(context.Background(), graphOf(t, s))
	require.NoError(t, err)

	require.Len(t, summary.Failed, 1)
	var se *compiler.StepError
	require.ErrorAs(t, summary.Failed[0].Err, &se)
	assert.Equal(t, compiler.ErrCodeCheckFailed, se.Code)
	assert.Zero(t, s.appliedCount())
}

func TestExecutor_StepTimeout(t *testing.T) {
	t.Parallel()

	slow := newFake("m:slow")
	slow.applyFn = func(rc compiler.RunContext) error {
		<-rc.Context().Done()
		return rc.Context().Err()
	}

	summary, err := newExecutor(t, func(o *Options) { o.StepTimeout = 20 * time.Millisecond }).
		Run(context.Background(), graphOf(t, slow))
	require.NoError(t, err)

	require.Len(t, summary.Failed, 1)
	var se *compiler.StepError
	require.ErrorAs(t, summary.Failed[0].Err, &se)
	assert.Equal(t, compiler.ErrCodeTimeout, se.Code)
	assert.ErrorIs(t, summary.Err(), context.DeadlineExceeded)
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	steps := make([]*fakeStep, 8)
	for i := range steps {
		steps[i] = newFake(fmt.Sprintf("m:s%d", i))
		steps[i].applyFn = func(compiler.RunContext) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}
	}

	summary, err := newExecutor(t, func(o *Options) { o.Concurrency = 2 }).
		Run(context.Background(), graphOf(t, steps...))
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Completed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecutor_GraphErrorsBeforeSideEffects(t *testing.T) {
	t.Parallel()

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()

		a := newFake("m:a", "m:b")
		b := newFake("m:b", "m:a")
		g := compiler.NewStepGraph()
		require.NoError(t, g.Add(a))
		require.NoError(t, g.Add(b))

		_, err := newExecutor(t, nil).Run(context.Background(), g)
		require.ErrorIs(t, err, compiler.ErrCyclicDependency)
		assert.Zero(t, a.checkedCount()+b.checkedCount())
	})

	t.Run("unknown dependency", func(t *testing.T) {
		t.Parallel()

		a := newFake("m:a", "m:ghost")
		g := compiler.NewStepGraph()
		require.NoError(t, g.Add(a))

		_, err := newExecutor(t, nil).Run(context.Background(), g)
		require.ErrorIs(t, err, compiler.ErrMissingDep)
		assert.Zero(t, a.checkedCount())
	})
}

func TestExecutor_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newFake("m:a")
	b := newFake("m:b", "m:a")
	summary, err := newExecutor(t, nil).Run(ctx, graphOf(t, a, b))
	require.NoError(t, err)

	assert.Equal(t, []string{"m:a", "m:b"}, summary.NotAttempted)
	assert.Zero(t, a.checkedCount())
	assert.Contains(t, summary.Err().Error(), "2 not attempted")
}

func TestExecutor_RecordsMetrics(t *testing.T) {
	t.Parallel()

	ok := newFake("m:ok")
	skip := newFake("m:skip")
	skip.needsApply = false
	bad := newFake("m:bad")
	bad.applyErr = errors.New("nope")

	m := mocks.NewMetrics()
	_, err := newExecutor(t, nil, WithMetrics(m)).Run(context.Background(), graphOf(t, ok, skip, bad))
	require.NoError(t, err)

	assert.Equal(t, 1, m.StepCount(string(OutcomeCompleted)))
	assert.Equal(t, 1, m.StepCount(string(OutcomeSkipped)))
	assert.Equal(t, 1, m.StepCount(string(OutcomeFailed)))
	assert.Equal(t, 1, m.Runs["failure"])
}

func TestNewExecutor_NormalizesOptions(t *testing.T) {
	t.Parallel()

	e, err := NewExecutor(Options{Concurrency: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Options().Concurrency)

	_, err = NewExecutor(Options{StepTimeout: -time.Second})
	require.Error(t, err)
}
