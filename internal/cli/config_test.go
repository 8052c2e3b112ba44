package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kompass/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0o644))
	return dir
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadConfig_Fields(t *testing.T) {
	dir := writeConfig(t, `
proof_dir: out/proofs
start_symbol: entry
max_depth: 100
max_iterations: 0
engine: kmir-engine --json
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out/proofs"), cfg.ProofDir)
	assert.Equal(t, "entry", cfg.StartSymbol)
	require.NotNil(t, cfg.MaxDepth)
	assert.Equal(t, 100, *cfg.MaxDepth)
	require.NotNil(t, cfg.MaxIterations, "an explicit zero is kept")
	assert.Equal(t, 0, *cfg.MaxIterations)
	assert.Equal(t, "kmir-engine --json", cfg.Engine)
}

func TestLoadConfig_AbsoluteProofDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "proofs")
	dir := writeConfig(t, "proof_dir: "+abs+"\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.ProofDir)
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Nil(t, cfg.MaxIterations)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "max_iters: 3\n", "field max_iters not found"},
		{"negative depth", "max_depth: -1\n", "max_depth must be >= 0"},
		{"negative iterations", "max_iterations: -5\n", "max_iterations must be >= 0"},
		{"wrong type", "max_depth: deep\n", "cannot unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), ConfigFile)
		})
	}
}

func TestEngineCommand(t *testing.T) {
	cfg := Config{Engine: "from-config --a"}

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EngineEnv, "from-env")
		cmd, args := EngineCommand("from-flag -x -y", cfg)
		assert.Equal(t, "from-flag", cmd)
		assert.Equal(t, []string{"-x", "-y"}, args)
	})

	t.Run("env over config", func(t *testing.T) {
		t.Setenv(EngineEnv, "from-env")
		cmd, args := EngineCommand("", cfg)
		assert.Equal(t, "from-env", cmd)
		assert.Empty(t, args)
	})

	t.Run("config", func(t *testing.T) {
		t.Setenv(EngineEnv, "")
		cmd, args := EngineCommand("", cfg)
		assert.Equal(t, "from-config", cmd)
		assert.Equal(t, []string{"--a"}, args)
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(EngineEnv, "  ")
		cmd, args := EngineCommand("", Config{})
		assert.Equal(t, engine.DefaultCommand, cmd)
		assert.Nil(t, args)
	})
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name           string
		verbose, debug bool
		wantInfo       bool
		wantDebug      bool
	}{
		{"default", false, false, false, false},
		{"verbose", true, false, true, false},
		{"debug", false, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(buf, tt.verbose, tt.debug)

			logger.Warn("ledger unavailable")
			logger.Info("proof advanced", "proof", "linked.smir.main")
			logger.Debug("extended node", "node", 3)

			out := buf.String()
			assert.Contains(t, out, "ledger unavailable")
			assert.Contains(t, out, "kompass")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("proof advanced")))
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("extended node")))
		})
	}
}
