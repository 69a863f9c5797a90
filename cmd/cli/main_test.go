package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"impactsim/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testkit.QuietLogger()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCmd_PrintsEffectiveConfig(t *testing.T) {
	t.Setenv("IMPACTSIM_SEED", "123")

	out, err := execute(t, "config")
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	run := parsed["run"].(map[string]interface{})
	assert.Equal(t, 123, run["seed"])
}

func TestConfigCmd_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impactsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  iterations: 7\n"), 0o644))

	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "iterations: 7")
}

func TestSimulateAndRenderCmd(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "simulate",
		"--min-n", "500", "--max-n", "1000", "--step", "500", "--iterations", "2",
		"--workers", "2", "--out-dir", dir, "--format", "svg", "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, out, "fingerprint")
	assert.FileExists(t, filepath.Join(dir, "manifest.json"))
	assert.FileExists(t, filepath.Join(dir, "ratio.svg"))

	renderDir := filepath.Join(dir, "again")
	out, err = execute(t, "render", filepath.Join(dir, "results.csv"), "--out-dir", renderDir, "--format", "svg")
	require.NoError(t, err)
	assert.Contains(t, out, "pvalue.svg")
	assert.FileExists(t, filepath.Join(renderDir, "summary.html"))
}

func TestSimulateCmd_InvalidFlag(t *testing.T) {
	_, err := execute(t, "simulate", "--step", "0", "--out-dir", t.TempDir())
	assert.Error(t, err)
}
