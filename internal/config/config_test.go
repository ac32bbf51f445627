package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults_AreValid(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Bridge.Port = 12345
	cfg.Executor.DocumentName = "Bracket"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Bridge.Port != 12345 {
		t.Fatalf("expected port 12345, got %d", loaded.Bridge.Port)
	}
	if loaded.Executor.DocumentName != "Bracket" {
		t.Fatalf("expected document Bracket, got %q", loaded.Executor.DocumentName)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("CADBRIDGE_TEST_HOST", "cadhost")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{"bridge": {"host": "${CADBRIDGE_TEST_HOST}", "port": ${CADBRIDGE_TEST_PORT:-9876}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bridge.Host != "cadhost" {
		t.Fatalf("expected env var expanded, got %q", cfg.Bridge.Host)
	}
	if cfg.Bridge.Port != 9876 {
		t.Fatalf("expected default-value expansion 9876, got %d", cfg.Bridge.Port)
	}
}

func TestExpandEnvVars_KeepsUnknown(t *testing.T) {
	got := ExpandEnvVars("path: ${DEFINITELY_NOT_SET_XYZ}")
	if got != "path: ${DEFINITELY_NOT_SET_XYZ}" {
		t.Fatalf("expected unknown var kept verbatim, got %q", got)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.General.LogLevel = "verbose" }, "logLevel"},
		{"bad port", func(c *Config) { c.Bridge.Port = 70000 }, "bridge.port"},
		{"zero dial timeout", func(c *Config) { c.Bridge.DialTimeoutSeconds = 0 }, "dialTimeoutSeconds"},
		{"zero retention", func(c *Config) { c.History.RetentionDays = 0 }, "retentionDays"},
		{"empty output dir", func(c *Config) { c.Script.OutputDir = "" }, "outputDir"},
	}
	for _, tc := range cases {
		cfg := Defaults()
		tc.mutate(cfg)
		err := Validate(cfg)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q in error, got %v", tc.name, tc.want, err)
		}
	}
}

func TestAccessor_GetSet(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "bridge.port")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val.(float64) != 9876 {
		t.Fatalf("expected 9876, got %v", val)
	}

	if err := SetByPath(cfg, "bridge.port", "7000"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Bridge.Port != 7000 {
		t.Fatalf("expected port 7000, got %d", cfg.Bridge.Port)
	}

	if err := SetByPath(cfg, "history.enabled", "false"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if cfg.History.Enabled {
		t.Fatal("expected history disabled")
	}

	if _, err := GetByPath(cfg, "bridge.nonexistent"); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestAccessor_ListPaths(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, want := range []string{"bridge.port", "executor.documentName", "script.outputDir", "history.retentionDays"} {
		if _, ok := paths[want]; !ok {
			t.Fatalf("expected path %q listed", want)
		}
	}
}

func TestExpandPath_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := ExpandPath("~/x/y")
	if got != filepath.Join(home, "x/y") {
		t.Fatalf("expected home expansion, got %q", got)
	}
	if ExpandPath("/abs/path") != "/abs/path" {
		t.Fatal("absolute path must pass through")
	}
}
