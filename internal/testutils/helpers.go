// Package testutils holds helpers shared by templine tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templine/internal/config"
)

// CreateTempProject creates a temporary project with a views and a data
// directory.
func CreateTempProject(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	for _, dir := range []string{"views", "data"} {
		err := os.MkdirAll(filepath.Join(tempDir, dir), 0755)
		require.NoError(t, err)
	}

	return tempDir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// CreateTestTemplate writes an ERB template below the project's views
// directory and returns its path.
func CreateTestTemplate(t *testing.T, projectDir, name, content string) string {
	t.Helper()
	return WriteFile(t, filepath.Join(projectDir, "views", filepath.FromSlash(name)), content)
}

// CreateTestConfig returns a configuration that scans the project's views
// directory and writes into its output directory.
func CreateTestConfig(projectDir string) *config.Config {
	cfg := config.Default()
	cfg.Build.ScanPaths = []string{filepath.Join(projectDir, "views")}
	cfg.Build.Workers = 2
	return cfg
}

// AssertFileContent fails unless path holds exactly expected.
func AssertFileContent(t *testing.T, path, expected string) {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, expected, string(content), "unexpected content in %s", path)
}

// AssertFilePermissions checks the permission bits of a file.
func AssertFilePermissions(t *testing.T, path string, expectedMode os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)

	actualMode := info.Mode()
	require.Equal(t, expectedMode, actualMode&os.FileMode(0777),
		"File %s has incorrect permissions: got %o, want %o",
		path, actualMode&os.FileMode(0777), expectedMode)
}

// WaitForFile waits until check accepts the content of path, which is
// useful for testing the watcher.
func WaitForFile(t *testing.T, path string, timeout time.Duration, check func(string) bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if content, err := os.ReadFile(path); err == nil && check(string(content)) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s did not reach the expected state within %v", path, timeout)
}
