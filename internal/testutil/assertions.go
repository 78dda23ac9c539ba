package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhd-cli/dhd/internal/domain/execution"
)

// AssertFileContains asserts that a file contains the expected substring.
func AssertFileContains(t testing.TB, path, expected string, msgAndArgs ...interface{}) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)
	assert.Contains(t, string(content), expected, msgAndArgs...)
}

// AssertMode asserts the permission bits of path.
func AssertMode(t testing.TB, path string, want os.FileMode) {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, want, info.Mode().Perm(), "mode of %s", path)
}

// AssertOutcomes asserts the outcome of each listed step. Steps not in want
// are ignored.
func AssertOutcomes(t testing.TB, s *execution.Summary, want map[string]execution.Outcome) {
	t.Helper()
	require.NotNil(t, s)

	for id, outcome := range want {
		r, ok := s.Result(id)
		if !assert.True(t, ok, "no result for step %s", id) {
			continue
		}
		assert.Equal(t, outcome, r.Outcome, "outcome of %s", id)
	}
}

// AssertRanBefore asserts that step before finished before step after
// started.
func AssertRanBefore(t testing.TB, s *execution.Summary, before, after string) {
	t.Helper()
	require.NotNil(t, s)

	b, ok := s.Result(before)
	require.True(t, ok, "no result for step %s", before)
	a, ok := s.Result(after)
	require.True(t, ok, "no result for step %s", after)
	require.True(t, b.Attempted() && a.Attempted(), "%s and %s must both have run", before, after)
	assert.False(t, a.Started.Before(b.Finished), "%s started before %s finished", after, before)
}
