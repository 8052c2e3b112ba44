package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kompass/internal/engine"
)

// ConfigFile is the optional per-project defaults file.
const ConfigFile = "kompass.yaml"

// EngineEnv names the environment variable holding the engine command.
const EngineEnv = "KOMPASS_ENGINE"

// Config holds project defaults. Flags given on the command line always
// win over these.
type Config struct {
	ProofDir      string `yaml:"proof_dir"`
	StartSymbol   string `yaml:"start_symbol"`
	MaxDepth      *int   `yaml:"max_depth"`
	MaxIterations *int   `yaml:"max_iterations"`
	Engine        string `yaml:"engine"`
}

// ConfigError reports a kompass.yaml that exists but cannot be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// LoadConfig reads kompass.yaml from projectDir (the working directory when
// empty). A missing file yields an empty Config. Unknown keys are rejected
// and a relative proof_dir is resolved against the project directory.
func LoadConfig(projectDir string) (Config, error) {
	if projectDir == "" {
		projectDir = "."
	}
	path := filepath.Join(projectDir, ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, &ConfigError{Path: path, Err: err}
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Path: path, Err: err}
	}

	if cfg.MaxDepth != nil && *cfg.MaxDepth < 0 {
		return Config{}, &ConfigError{Path: path, Err: errors.New("max_depth must be >= 0")}
	}
	if cfg.MaxIterations != nil && *cfg.MaxIterations < 0 {
		return Config{}, &ConfigError{Path: path, Err: errors.New("max_iterations must be >= 0")}
	}
	if cfg.ProofDir != "" && !filepath.IsAbs(cfg.ProofDir) {
		cfg.ProofDir = filepath.Join(projectDir, cfg.ProofDir)
	}
	return cfg, nil
}

// EngineCommand picks the engine command line: the --engine flag, then
// $KOMPASS_ENGINE, then kompass.yaml, then engine.DefaultCommand. The
// result is split on whitespace into the program and its arguments.
func EngineCommand(flag string, cfg Config) (string, []string) {
	line := flag
	if line == "" {
		line = os.Getenv(EngineEnv)
	}
	if line == "" {
		line = cfg.Engine
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return engine.DefaultCommand, nil
	}
	return fields[0], fields[1:]
}
