package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"workbench/internal/config"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Storage.Driver != "sqlite" || cfg.Executor.Mode != "simulated" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Executor.Timeout != 30*time.Second || cfg.Schema.TTL != 10*time.Minute {
		t.Errorf("durations not decoded: %v %v", cfg.Executor.Timeout, cfg.Schema.TTL)
	}
	if !cfg.History.AllowClear || cfg.MCP.AllowWrites {
		t.Errorf("unexpected gates: clear=%v writes=%v", cfg.History.AllowClear, cfg.MCP.AllowWrites)
	}
	if !strings.HasSuffix(cfg.Storage.Path, filepath.Join("sql-workbench", "workbench.db")) {
		t.Errorf("unexpected default storage path %q", cfg.Storage.Path)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := inTempDir(t)
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "server:\n  port: 9000\nexecutor:\n  mode: live\n  max_rows: 50\nhistory:\n  allow_clear: false\n"
	if err := os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKBENCH_EXECUTOR_MAX_ROWS", "75")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Executor.Mode != "live" || cfg.History.AllowClear {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Executor.MaxRows != 75 {
		t.Errorf("expected env override 75, got %d", cfg.Executor.MaxRows)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WORKBENCH_MCP_ALLOW_WRITES=true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("WORKBENCH_MCP_ALLOW_WRITES") })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.MCP.AllowWrites {
		t.Error("expected .env to enable mcp.allow_writes")
	}
}

func TestLoad_Rejects(t *testing.T) {
	inTempDir(t)

	t.Setenv("WORKBENCH_EXECUTOR_MODE", "turbo")
	if _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), "Mode") {
		t.Errorf("expected invalid executor mode, got %v", err)
	}

	t.Setenv("WORKBENCH_EXECUTOR_MODE", "simulated")
	t.Setenv("WORKBENCH_SCHEMA_CACHE", "redis")
	if _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), "redis.addr") {
		t.Errorf("expected missing redis addr, got %v", err)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an explicit missing file to fail")
	}
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr())
	}
}
