package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Model != "gpt-4o" {
		t.Errorf("default model: %q", cfg.API.Model)
	}
	if cfg.Workspace.Root != "/workspace" {
		t.Errorf("default workspace root: %q", cfg.Workspace.Root)
	}
	if cfg.Workspace.SessionTTL != 4*time.Hour {
		t.Errorf("default session ttl: %v", cfg.Workspace.SessionTTL)
	}
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("CHATCLAW_TEST_MODEL", "gpt-4o-mini")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
api:
  model: ${CHATCLAW_TEST_MODEL}
  api_key: ${CHATCLAW_TEST_UNSET_KEY}
workspace:
  root: /data/ws
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Model != "gpt-4o-mini" {
		t.Errorf("env reference not expanded: %q", cfg.API.Model)
	}
	// Unset variables keep the literal reference so the secret chain can
	// recognize and clear them later.
	if !IsEnvReference(cfg.API.APIKey) {
		t.Errorf("unset reference must stay literal: %q", cfg.API.APIKey)
	}
	if cfg.Workspace.Root != "/data/ws" {
		t.Errorf("workspace root: %q", cfg.Workspace.Root)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := Default()
	bad.Workspace.Root = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty workspace root must fail validation")
	}

	bad = Default()
	bad.API.Model = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty model must fail validation")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.API.Model = "gpt-4o-mini"
	cfg.Telegram.Enabled = true
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file permissions: %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.API.Model != "gpt-4o-mini" || !loaded.Telegram.Enabled {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}
