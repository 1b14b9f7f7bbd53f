package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "empty ok", output: "", wantErr: false},
		{name: "table ok", output: "table", wantErr: false},
		{name: "json ok", output: "json", wantErr: false},
		{name: "yaml rejected", output: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputFormat(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPrintTable_NotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, []string{"NAME", "PREPARED"}, [][]string{
		{"kuka", "true"},
		{"bc_z", "false"},
	}))
	assert.Equal(t, "NAME\tPREPARED\nkuka\ttrue\nbc_z\tfalse\n", buf.String())
	assert.False(t, isTerminal(&buf))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"episodes": 3}))
	assert.JSONEq(t, `{"episodes": 3}`, buf.String())
}
