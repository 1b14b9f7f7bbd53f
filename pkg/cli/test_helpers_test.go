package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateEnv points HOME and every FOG_* setting at temporary locations so
// tests never read the developer's profile or environment.
func isolateEnv(t *testing.T) (home, datasets string) {
	t.Helper()
	home = t.TempDir()
	datasets = filepath.Join(t.TempDir(), "datasets")
	t.Setenv("HOME", home)
	t.Setenv("FOG_DATASET_PATH", datasets)
	for _, k := range []string{
		"FOG_SOURCE_URI", "FOG_DATASET_VERSION", "FOG_SPLIT", "FOG_SAMPLE_SIZE",
		"FOG_SEED", "FOG_PARALLELISM", "FOG_OUTPUT", "META_DB_PATH", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return home, datasets
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err)
	return out
}
