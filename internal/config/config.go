package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/state"
)

// EnvPrefix prefixes environment overrides, e.g. TASKLOOM_TAG.
const EnvPrefix = "TASKLOOM"

// Config is the merged taskloom configuration.
type Config struct {
	DataFile        string `json:"data_file" yaml:"data_file" mapstructure:"data_file"`
	AuditLog        string `json:"audit_log" yaml:"audit_log" mapstructure:"audit_log"`
	Tag             string `json:"tag" yaml:"tag" mapstructure:"tag"`
	Color           bool   `json:"color" yaml:"color" mapstructure:"color"`
	DefaultPriority string `json:"default_priority" yaml:"default_priority" mapstructure:"default_priority"`
	RepairMode      string `json:"repair_mode" yaml:"repair_mode" mapstructure:"repair_mode"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataFile:        filepath.Join(state.DefaultDir, state.DefaultFile),
		AuditLog:        filepath.Join(state.DefaultDir, state.DefaultAuditFile),
		Tag:             state.DefaultTag,
		Color:           true,
		DefaultPriority: string(graph.PriorityMedium),
		RepairMode:      graph.RepairReportOnly.String(),
	}
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"file":  "data_file",
	"audit": "audit_log",
	"tag":   "tag",
}

// Load merges defaults, the global and project config files, TASKLOOM_*
// environment variables and any changed flags, in that order.
func Load(flags *pflag.FlagSet) (*Config, error) {
	return LoadFrom(GlobalConfigPath(), ProjectConfigPath(), flags)
}

// LoadFrom is Load with explicit file locations. Missing files are skipped.
func LoadFrom(globalPath, projectPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	def := DefaultConfig()
	v.SetDefault("data_file", def.DataFile)
	v.SetDefault("audit_log", def.AuditLog)
	v.SetDefault("tag", def.Tag)
	v.SetDefault("color", def.Color)
	v.SetDefault("default_priority", def.DefaultPriority)
	v.SetDefault("repair_mode", def.RepairMode)

	for _, path := range []string{globalPath, projectPath} {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Validate checks the enumerated keys.
func (c *Config) Validate() error {
	if _, ok := graph.ParsePriority(c.DefaultPriority); !ok {
		return fmt.Errorf("config: invalid default_priority %q", c.DefaultPriority)
	}
	if _, err := graph.ParseRepairMode(c.RepairMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Tag == "" {
		return fmt.Errorf("config: tag must not be empty")
	}
	if c.DataFile == "" {
		return fmt.Errorf("config: data_file must not be empty")
	}
	return nil
}

// Priority returns the parsed default priority.
func (c *Config) Priority() graph.Priority {
	p, _ := graph.ParsePriority(c.DefaultPriority)
	return p
}

// Repair returns the parsed repair mode.
func (c *Config) Repair() graph.RepairMode {
	m, _ := graph.ParseRepairMode(c.RepairMode)
	return m
}

// YAML renders the merged configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, state.DefaultDir, "config.yaml")
}

// ProjectConfigPath returns the path to the project config file
func ProjectConfigPath() string {
	return filepath.Join(state.DefaultDir, "config.yaml")
}

// WriteDefault writes the default project configuration to a file
func WriteDefault(path string) error {
	content := `# taskloom project configuration

# Task file and audit log, relative to the working directory
data_file: .taskloom/tasks.json
audit_log: .taskloom/audit.log  # empty disables the audit log

# Tag used when --tag is not given
tag: master

# Colored output (NO_COLOR and --no-color also disable it)
color: true

# Priority for new tasks added without --priority: low, medium or high
default_priority: medium

# What validate does without --fix: "report" or "prune" (drop dangling dependencies)
repair_mode: report
`
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
