package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, base string) string {
	t.Helper()
	downloadDir := filepath.Join(base, "downloads")
	logDir := filepath.Join(base, "logs")
	content := fmt.Sprintf(`[paths]
download_dir = %q
log_dir = %q

[pixiv]
username = "tester"
password = "hunter2"

[archive]
enabled = true
`, downloadDir, logDir)

	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
