package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgegate/edgegate/internal/config"
)

func TestConfigExists(t *testing.T) {
	dir := t.TempDir()

	if ConfigExists(filepath.Join(dir, "missing.yaml")) {
		t.Fatalf("missing file should not exist")
	}
	if ConfigExists(dir) {
		t.Fatalf("a directory is not a config file")
	}

	path := filepath.Join(dir, "config.yaml")
	if errWrite := os.WriteFile(path, []byte("database-dsn: file:test.db\n"), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	if !ConfigExists(path) {
		t.Fatalf("written file should exist")
	}
}

func TestResolveDSNMissingConfig(t *testing.T) {
	t.Setenv(config.EnvDBConnection, "")

	_, errResolve := resolveDSN(filepath.Join(t.TempDir(), "missing.yaml"))
	if errResolve == nil {
		t.Fatalf("expected an error without config file or env override")
	}
	if !strings.Contains(errResolve.Error(), config.EnvDBConnection) {
		t.Fatalf("error should point at the env override, got %v", errResolve)
	}
}

func TestResolveDSNEnvOverride(t *testing.T) {
	t.Setenv(config.EnvDBConnection, "file:env-test.db")

	dsn, errResolve := resolveDSN(filepath.Join(t.TempDir(), "missing.yaml"))
	if errResolve != nil {
		t.Fatalf("env override should satisfy resolution: %v", errResolve)
	}
	if dsn != "file:env-test.db" {
		t.Fatalf("expected env DSN, got %q", dsn)
	}
}

func TestResolveDSNFromConfigFile(t *testing.T) {
	t.Setenv(config.EnvDBConnection, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte("database-dsn: file:file-test.db\n"), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	dsn, errResolve := resolveDSN(path)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if dsn != "file:file-test.db" {
		t.Fatalf("expected file DSN, got %q", dsn)
	}
}
