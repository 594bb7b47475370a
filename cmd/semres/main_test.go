package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semres/api"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind    string
		raw     string
		want    variant.Variant
		wantErr bool
	}{
		{kind: "string", raw: "hello", want: variant.NewString("hello")},
		{kind: "int", raw: "42", want: variant.NewInt(42)},
		{kind: "double", raw: "1.5", want: variant.NewDouble(1.5)},
		{kind: "bool", raw: "true", want: variant.NewBool(true)},
		{kind: "resource", raw: "urn:x", want: variant.NewResource("urn:x")},
		{kind: "int", raw: "forty", wantErr: true},
		{kind: "bool", raw: "maybe", wantErr: true},
		{kind: "blob", raw: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.raw, func(t *testing.T) {
			got, err := parseValue(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

// memoryConfig writes a config that keeps everything in process.
func memoryConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semres.yaml")
	content := `
store:
  backend: memory
nats:
  embedded: false
graph:
  publish: false
log:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "semres version "+Version)
}

func TestSetCommand(t *testing.T) {
	cfg := memoryConfig(t)

	out, err := execute(t, "--config", cfg, "set", "urn:r", nao.PredicatePrefLabel, "from the cli")
	require.NoError(t, err)

	var view api.ResourceView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "urn:r", view.URI)
	assert.False(t, view.Modified)
	assert.Equal(t, "from the cli", view.Properties[nao.PrefLabel].ToString())
}

func TestSetCommandRejectsBadValue(t *testing.T) {
	cfg := memoryConfig(t)

	_, err := execute(t, "--config", cfg, "set", "--kind", "int", "urn:r", "urn:p", "forty")
	assert.ErrorIs(t, err, variant.ErrKindMismatch)
}

func TestTagCommand(t *testing.T) {
	cfg := memoryConfig(t)

	out, err := execute(t, "--config", cfg, "tag", "file:///a.txt", "work", "urgent")
	require.NoError(t, err)
	assert.Contains(t, out, "work")
	assert.Contains(t, out, "urgent")
}

func TestRateCommand(t *testing.T) {
	cfg := memoryConfig(t)

	_, err := execute(t, "--config", cfg, "rate", "urn:r", "7")
	require.NoError(t, err)

	_, err = execute(t, "--config", cfg, "rate", "urn:r", "11")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "rate", "urn:r", "high")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	cfg := memoryConfig(t)
	output := filepath.Join(t.TempDir(), "out.nt")

	_, err := execute(t, "--config", cfg, "export", "-f", "nt", "-o", output)
	require.NoError(t, err)
	_, err = os.Stat(output)
	require.NoError(t, err)

	_, err = execute(t, "--config", cfg, "export", "-f", "rdfxml")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "get", "urn:r")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "load config"))
}
