package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "fresh", "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil {
		t.Fatal("expected an error when the file already exists")
	}
}

func TestConfigShowPrintsEffectiveValues(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	out, _, err := runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "Username: tester")
	requireContains(t, out, "Archive ledger: yes")
	requireContains(t, out, filepath.Join(base, "downloads"))
}

func TestConfigPathPrintsResolvedPath(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	out, _, err := runCLI(t, configPath, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, configPath)
}
