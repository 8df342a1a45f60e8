// Package config loads server configuration from YAML files and environment
// variables. Precedence, lowest to highest: built-in defaults, config file,
// environment. The resulting Config is built once at startup and handed to
// the tool module explicitly; nothing deeper in the call tree reads the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration of the server.
type Config struct {
	GitHub GitHubConfig `yaml:"github"`
	Git    GitConfig    `yaml:"git"`
	Log    LogConfig    `yaml:"log"`
}

// GitHubConfig covers the remote API. APIEndpoint is overridable for GitHub
// Enterprise deployments. Token is never read from YAML, only from the
// environment variable named by TokenEnv.
type GitHubConfig struct {
	APIEndpoint    string `yaml:"api_endpoint"`
	TokenEnv       string `yaml:"token_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// Token is resolved from the environment during Load.
	Token string `yaml:"-"`
}

// Timeout is the per-request HTTP timeout.
func (c GitHubConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GitConfig covers the local version-control invoker.
type GitConfig struct {
	Binary              string `yaml:"binary"`
	CloneTimeoutSeconds int    `yaml:"clone_timeout_seconds"`
}

// CloneTimeout bounds a single git clone subprocess.
func (c GitConfig) CloneTimeout() time.Duration {
	return time.Duration(c.CloneTimeoutSeconds) * time.Second
}

// LogConfig controls where structured logs go. Stdout is reserved for the
// MCP protocol, so the only valid sinks are stderr and a file.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIEndpoint:    "https://api.github.com",
			TokenEnv:       "GITHUB_TOKEN",
			TimeoutSeconds: 30,
		},
		Git: GitConfig{
			Binary:              "git",
			CloneTimeoutSeconds: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config. If path is non-empty the file must exist and parse;
// otherwise the standard locations are probed and silently skipped when
// absent:
//   - .shepherd.yaml (current directory)
//   - ~/.shepherd/config.yaml
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, errors.Wrap(err, "load config file")
		}
	} else {
		for _, candidate := range []string{
			".shepherd.yaml",
			filepath.Join(os.Getenv("HOME"), ".shepherd", "config.yaml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				if err := loadFile(candidate, cfg); err != nil {
					return nil, errors.Wrapf(err, "load config from %s", candidate)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.GitHub.Token = strings.TrimSpace(os.Getenv(cfg.GitHub.TokenEnv))
	return cfg, nil
}

// Authenticated reports whether a credential is configured. Without one the
// remote API allows 60 requests/hour instead of 5000 and the write-capable
// tools (create_pull_request, fork_repo) are unavailable.
func (c *Config) Authenticated() bool {
	return c.GitHub.Token != ""
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "parse yaml")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHEPHERD_API_ENDPOINT"); v != "" {
		cfg.GitHub.APIEndpoint = v
	}
	if v := os.Getenv("SHEPHERD_GIT_BINARY"); v != "" {
		cfg.Git.Binary = v
	}
	if v := os.Getenv("SHEPHERD_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("SHEPHERD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
