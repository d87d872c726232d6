// Package config loads a fuzzing campaign description from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config describes one campaign.
type Config struct {
	Campaign  CampaignConfig  `yaml:"campaign"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Seeds     SeedsConfig     `yaml:"seeds"`
	Solutions SolutionsConfig `yaml:"solutions"`
	Target    TargetConfig    `yaml:"target"`
	Mutator   MutatorConfig   `yaml:"mutator"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// CampaignConfig controls the outer loop.
type CampaignConfig struct {
	Name      string `yaml:"name"`
	Seed      uint64 `yaml:"seed"`      // 0 picks a time-based seed
	Instances int    `yaml:"instances"` // parallel in-process instances
	StageRuns uint64 `yaml:"stage_runs"`
}

// CorpusConfig selects where testcases live.
type CorpusConfig struct {
	Backend      string `yaml:"backend"` // memory, disk, sqlite
	Dir          string `yaml:"dir"`
	KeepInMemory bool   `yaml:"keep_in_memory"`
	Compress     bool   `yaml:"compress"`
	Scheduler    string `yaml:"scheduler"` // random, queue
}

type SeedsConfig struct {
	Dir string `yaml:"dir"`
}

type SolutionsConfig struct {
	Dir string `yaml:"dir"`
}

// TargetConfig names either a built-in harness or an external command.
type TargetConfig struct {
	Builtin string   `yaml:"builtin"`
	Command []string `yaml:"command,omitempty"` // "@@" is replaced by an input file
	Timeout string   `yaml:"timeout"`
	MapSize int      `yaml:"map_size"`
}

type MutatorConfig struct {
	MaxSize     int    `yaml:"max_size"`
	MaxStackPow uint64 `yaml:"max_stack_pow"`
	Adaptive    bool   `yaml:"adaptive"`
}

// SyncConfig shares testcases with other processes through a directory.
type SyncConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

type MonitorConfig struct {
	TUI      bool   `yaml:"tui"`
	Interval string `yaml:"interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Campaign: CampaignConfig{
			Name:      "mutafuzz",
			Instances: 1,
		},
		Corpus: CorpusConfig{
			Backend:   "memory",
			Dir:       "corpus",
			Compress:  true,
			Scheduler: "random",
		},
		Solutions: SolutionsConfig{
			Dir: "solutions",
		},
		Target: TargetConfig{
			Builtin: "magic",
			Timeout: "1s",
		},
		Mutator: MutatorConfig{
			MaxSize:     4096,
			MaxStackPow: 7,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Monitor: MonitorConfig{
			Interval: "5s",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if cfg, err = Parse(data); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MUTAFUZZ_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Campaign.Seed = seed
		}
	}
	if v := os.Getenv("MUTAFUZZ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MUTAFUZZ_SYNC_DIR"); v != "" {
		c.Sync.Dir = v
	}
}

// GetTimeout returns the per-execution timeout.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Target.Timeout)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GetMonitorInterval returns how often progress is reported.
func (c *Config) GetMonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.Monitor.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

var (
	validBackends   = []string{"memory", "disk", "sqlite"}
	validSchedulers = []string{"random", "queue"}
	validLevels     = []string{"debug", "info", "warn", "error"}
)

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}

// Validate reports the first problem found, wrapping ErrInvalid.
func (c *Config) Validate() error {
	if c.Campaign.Instances < 1 {
		return fmt.Errorf("%w: campaign.instances must be at least 1, got %d", ErrInvalid, c.Campaign.Instances)
	}
	if !oneOf(c.Corpus.Backend, validBackends) {
		return fmt.Errorf("%w: corpus.backend %q (valid: %v)", ErrInvalid, c.Corpus.Backend, validBackends)
	}
	if c.Corpus.Backend != "memory" && c.Corpus.Dir == "" {
		return fmt.Errorf("%w: corpus.dir is required for the %s backend", ErrInvalid, c.Corpus.Backend)
	}
	if !oneOf(c.Corpus.Scheduler, validSchedulers) {
		return fmt.Errorf("%w: corpus.scheduler %q (valid: %v)", ErrInvalid, c.Corpus.Scheduler, validSchedulers)
	}
	if c.Target.Builtin == "" && len(c.Target.Command) == 0 {
		return fmt.Errorf("%w: target needs builtin or command", ErrInvalid)
	}
	if c.Target.Builtin != "" && len(c.Target.Command) > 0 {
		return fmt.Errorf("%w: target.builtin and target.command are exclusive", ErrInvalid)
	}
	if _, err := time.ParseDuration(c.Target.Timeout); err != nil {
		return fmt.Errorf("%w: target.timeout: %v", ErrInvalid, err)
	}
	if c.Target.MapSize < 0 {
		return fmt.Errorf("%w: target.map_size must not be negative", ErrInvalid)
	}
	if c.Mutator.MaxSize < 1 {
		return fmt.Errorf("%w: mutator.max_size must be positive", ErrInvalid)
	}
	if c.Mutator.MaxStackPow < 1 || c.Mutator.MaxStackPow > 16 {
		return fmt.Errorf("%w: mutator.max_stack_pow must be in [1,16], got %d", ErrInvalid, c.Mutator.MaxStackPow)
	}
	if !oneOf(c.Logging.Level, validLevels) {
		return fmt.Errorf("%w: logging.level %q (valid: %v)", ErrInvalid, c.Logging.Level, validLevels)
	}
	if _, err := time.ParseDuration(c.Monitor.Interval); err != nil {
		return fmt.Errorf("%w: monitor.interval: %v", ErrInvalid, err)
	}
	return nil
}
