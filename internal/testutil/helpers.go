// Package testutil provides builders, fixtures and assertions shared by
// dhd tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTempFile writes content to dir/name, creating parent directories.
func WriteTempFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "failed to create parent of %s", name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "failed to write temp file: %s", name)
	return path
}

// WriteModules writes each module as dir/<name>.dhd.yaml.
func WriteModules(t testing.TB, dir string, mods ...*ModuleBuilder) {
	t.Helper()

	for _, m := range mods {
		WriteTempFile(t, dir, m.Name()+".dhd.yaml", m.ToYAML())
	}
}

// ModulesDir creates a temporary modules directory holding mods.
func ModulesDir(t testing.TB, mods ...*ModuleBuilder) string {
	t.Helper()

	dir := t.TempDir()
	WriteModules(t, dir, mods...)
	return dir
}
