package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/taskloom/internal/graph"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.DataFile != filepath.Join(".taskloom", "tasks.json") {
		t.Errorf("Expected default data file, got '%s'", cfg.DataFile)
	}
	if cfg.Tag != "master" {
		t.Errorf("Expected tag 'master', got '%s'", cfg.Tag)
	}
	if !cfg.Color {
		t.Error("Expected color to be enabled by default")
	}
	if cfg.Priority() != graph.PriorityMedium {
		t.Errorf("Expected medium priority, got '%s'", cfg.Priority())
	}
	if cfg.Repair() != graph.RepairReportOnly {
		t.Errorf("Expected report-only repair mode, got %s", cfg.Repair())
	}
}

func TestLoadFrom_NoFiles(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadFrom(filepath.Join(tmpDir, "missing.yaml"), "", nil)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadFrom_ProjectOverridesGlobal(t *testing.T) {
	tmpDir := t.TempDir()
	global := filepath.Join(tmpDir, "home", "config.yaml")
	project := filepath.Join(tmpDir, "project", "config.yaml")

	writeFile(t, global, "tag: feature\ndefault_priority: low\ncolor: false\n")
	writeFile(t, project, "tag: release\n")

	cfg, err := LoadFrom(global, project, nil)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Tag != "release" {
		t.Errorf("Expected project tag 'release', got '%s'", cfg.Tag)
	}
	if cfg.DefaultPriority != "low" {
		t.Errorf("Expected global priority 'low', got '%s'", cfg.DefaultPriority)
	}
	if cfg.Color {
		t.Error("Expected color disabled by global config")
	}
}

func TestLoadFrom_EnvOverridesFiles(t *testing.T) {
	tmpDir := t.TempDir()
	project := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, project, "tag: release\nrepair_mode: report\n")

	t.Setenv("TASKLOOM_TAG", "hotfix")
	t.Setenv("TASKLOOM_REPAIR_MODE", "prune")

	cfg, err := LoadFrom("", project, nil)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Tag != "hotfix" {
		t.Errorf("Expected env tag 'hotfix', got '%s'", cfg.Tag)
	}
	if cfg.Repair() != graph.RepairPrune {
		t.Errorf("Expected prune from env, got %s", cfg.Repair())
	}
}

func TestLoadFrom_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("TASKLOOM_TAG", "hotfix")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("tag", "", "")
	flags.String("file", "", "")
	if err := flags.Parse([]string{"--tag", "cli"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadFrom("", "", flags)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Tag != "cli" {
		t.Errorf("Expected flag tag 'cli', got '%s'", cfg.Tag)
	}
	// an unset flag does not mask the default
	if cfg.DataFile != DefaultConfig().DataFile {
		t.Errorf("Expected default data file, got '%s'", cfg.DataFile)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := map[string]string{
		"priority": "default_priority: urgent\n",
		"repair":   "repair_mode: fix-everything\n",
		"tag":      "tag: \"\"\n",
		"yaml":     "tag: [unclosed\n",
	}
	for name, content := range tests {
		path := filepath.Join(tmpDir, name+".yaml")
		writeFile(t, path, content)
		if _, err := LoadFrom("", path, nil); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, ".taskloom", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := LoadFrom("", path, nil)
	if err != nil {
		t.Fatalf("Written config does not load: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Expected written config to match defaults, got %+v", cfg)
	}
}

func TestYAML(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Tag = "feature"

	data, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	if !strings.Contains(string(data), "tag: feature") {
		t.Errorf("Expected tag in output, got:\n%s", data)
	}

	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != *cfg {
		t.Errorf("Expected %+v, got %+v", *cfg, decoded)
	}
}
