package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"short", "abc", "****"},
		{"exactly_10", "1234567890", "****"},
		{"long_key", "c3RvcmFnZWFjY291bnRrZXk=", "c3Rv****ZXk="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSecret(tt.input))
		})
	}
}

func TestMaskConfig(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {
				Source:           "az://rtx",
				AzureAccountName: "robotdata",
				AzureAccountKey:  "c3RvcmFnZWFjY291bnRrZXk=",
			},
		},
	}

	masked := maskConfig(cfg)

	assert.Equal(t, "az://rtx", masked.Profiles["default"].Source)
	assert.Equal(t, "robotdata", masked.Profiles["default"].AzureAccountName)
	assert.Contains(t, masked.Profiles["default"].AzureAccountKey, "****")

	// Original config not mutated.
	assert.Equal(t, "c3RvcmFnZWFjY291bnRrZXk=", cfg.Profiles["default"].AzureAccountKey)
}

func TestConfigCommands(t *testing.T) {
	isolateEnv(t)

	mustRunCLI(t, "config", "set-profile", "--name", "lab",
		"--dataset-path", "/data/rtx", "--default-output", "json",
		"--azure-account-name", "robotdata", "--azure-account-key", "c3RvcmFnZWFjY291bnRrZXk=")

	out := mustRunCLI(t, "config", "use-profile", "lab", "-o", "json")
	var status map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "lab", status["active_profile"])

	// The profile's default output applies without -o.
	out = mustRunCLI(t, "config", "show")
	var shown UserConfig
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "lab", shown.CurrentProfile)
	assert.Equal(t, "/data/rtx", shown.Profiles["lab"].DatasetPath)
	assert.Contains(t, shown.Profiles["lab"].AzureAccountKey, "****")

	out = mustRunCLI(t, "config", "show", "--reveal", "-o", "table")
	assert.Contains(t, out, "c3RvcmFnZWFjY291bnRrZXk=")

	_, err := runCLI(t, "config", "use-profile", "missing")
	require.Error(t, err)

	_, err = runCLI(t, "config", "set-profile", "--name", "bad", "--default-output", "xml")
	require.Error(t, err)
}
