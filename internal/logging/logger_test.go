package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixie/internal/config"
	"pixie/internal/logging"
)

func TestNewConsoleWritesComponentPrefix(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.With("component", "download").Info("page attempt failed", "illust_id", 42, "attempt", 2)

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	for _, want := range []string{"INFO download: page attempt failed", "illust_id=42", "attempt=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("fetch complete", "source", "ranking")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"source":"ranking"`) || !strings.Contains(string(raw), `"ts"`) {
		t.Fatalf("unexpected json line: %s", raw)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(raw), "quiet") || !strings.Contains(string(raw), "loud") {
		t.Fatalf("level filter failed: %s", raw)
	}
}

func TestUnsupportedFormatFails(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected an error for unsupported format")
	}
}

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}
	logger.Info("hello")

	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "pixie.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}
