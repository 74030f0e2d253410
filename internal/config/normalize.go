package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePixiv(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePixiv() error {
	c.Pixiv.Username = strings.TrimSpace(c.Pixiv.Username)
	if c.Pixiv.Username == "" {
		if value, ok := os.LookupEnv("PIXIV_USERNAME"); ok {
			c.Pixiv.Username = strings.TrimSpace(value)
		}
	}
	if c.Pixiv.Password == "" {
		if value, ok := os.LookupEnv("PIXIV_PASSWORD"); ok {
			c.Pixiv.Password = value
		}
	}
	if c.Pixiv.TokenMarginSeconds <= 0 {
		c.Pixiv.TokenMarginSeconds = defaultTokenMarginSeconds
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	if c.Download.Workers <= 0 {
		c.Download.Workers = defaultWorkers
	}
	if c.Download.MaxTries < 0 {
		c.Download.MaxTries = 0
	}
	if c.Download.FetchMaxTries <= 0 {
		c.Download.FetchMaxTries = defaultFetchMaxTries
	}

	dirs := make([]string, 0, len(c.Download.CheckExists))
	for _, dir := range c.Download.CheckExists {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("download.check_exists: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Download.CheckExists = dirs
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
