package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend kinds understood by the entrypoint.
const (
	BackendOllama    = "ollama"
	BackendOllamaCLI = "ollama-cli"
	BackendStatic    = "static"
)

// Config captures the settings required to run the helpdesk assistant.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Backend  BackendConfig  `yaml:"backend"`
	Store    StoreConfig    `yaml:"store"`
	Rules    RulesConfig    `yaml:"rules"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig controls structured logging. When File is set, logs go to a
// rotating file instead of stderr.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// BackendConfig selects and tunes the local completion backend.
type BackendConfig struct {
	Kind         string        `yaml:"kind"`
	URL          string        `yaml:"url"`
	Model        string        `yaml:"model"`
	Command      string        `yaml:"command"`
	Timeout      time.Duration `yaml:"timeout"`
	Temperature  float64       `yaml:"temperature"`
	NumPredict   int           `yaml:"numPredict"`
	SystemPrompt string        `yaml:"systemPrompt"`
	StaticAnswer string        `yaml:"staticAnswer"`
}

// StoreConfig selects the on-disk incident layout.
type StoreConfig struct {
	Mode string `yaml:"mode"`
	Path string `yaml:"path"`
	Dir  string `yaml:"dir"`
}

// RulesConfig controls rule-pack loading for the classifier.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig tunes query orchestration. NodeID defaults to the process ID
// modulo 1024 so helpdesk processes sharing one store mint distinct record IDs.
type PipelineConfig struct {
	NodeID        int64 `yaml:"nodeID"`
	LatencyWindow int   `yaml:"latencyWindow"`
}

// MetricsConfig enables the Prometheus listener. An empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Load initialises Config from an optional .env file, a YAML file and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	envFile := os.Getenv("HELPDESK_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// Variables already set in the environment win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	if path == "" {
		path = os.Getenv("HELPDESK_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Backend: BackendConfig{
			Kind:        BackendOllama,
			URL:         "http://127.0.0.1:11434",
			Model:       "phi",
			Command:     "ollama",
			Timeout:     60 * time.Second,
			Temperature: 0.2,
		},
		Store: StoreConfig{
			Mode: "array",
			Path: "data/incidents.json",
			Dir:  "Tickets/Unprocessed",
		},
		Rules:    RulesConfig{Path: "configs/rules/default.yaml"},
		Pipeline: PipelineConfig{NodeID: defaultNodeID(), LatencyWindow: 256},
	}
}

func defaultNodeID() int64 {
	return int64(os.Getpid() % 1024)
}

func (c *Config) validate() error {
	var problems []string

	switch c.Backend.Kind {
	case BackendOllama, BackendOllamaCLI, BackendStatic:
	default:
		problems = append(problems, fmt.Sprintf("backend.kind %q must be one of %s, %s, %s", c.Backend.Kind, BackendOllama, BackendOllamaCLI, BackendStatic))
	}
	if c.Backend.Kind != BackendStatic && strings.TrimSpace(c.Backend.Model) == "" {
		problems = append(problems, "backend.model must be set")
	}
	if c.Backend.Timeout <= 0 {
		problems = append(problems, "backend.timeout must be positive")
	}

	switch c.Store.Mode {
	case "array":
		if strings.TrimSpace(c.Store.Path) == "" {
			problems = append(problems, "store.path must be set for array mode")
		}
	case "directory":
		if strings.TrimSpace(c.Store.Dir) == "" {
			problems = append(problems, "store.dir must be set for directory mode")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.mode %q must be array or directory", c.Store.Mode))
	}

	if c.Pipeline.NodeID < 0 || c.Pipeline.NodeID > 1023 {
		problems = append(problems, "pipeline.nodeID must be between 0 and 1023")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HELPDESK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HELPDESK_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("HELPDESK_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("HELPDESK_BACKEND"); v != "" {
		cfg.Backend.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("HELPDESK_OLLAMA_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("HELPDESK_MODEL"); v != "" {
		cfg.Backend.Model = v
	}
	if v := os.Getenv("HELPDESK_OLLAMA_COMMAND"); v != "" {
		cfg.Backend.Command = v
	}
	if v := os.Getenv("HELPDESK_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	if v := os.Getenv("HELPDESK_STORE_MODE"); v != "" {
		cfg.Store.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("HELPDESK_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HELPDESK_TICKET_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("HELPDESK_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("HELPDESK_NODE_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Pipeline.NodeID = id
		}
	}
	if v := os.Getenv("HELPDESK_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
}
