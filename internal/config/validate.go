package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Credentials are not
// required here: commands that never touch the network (history, config)
// should not demand a login.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.Workers <= 0 {
		return errors.New("download.workers must be positive")
	}
	if c.Download.MaxTries < 0 {
		return errors.New("download.max_tries must be >= 0")
	}
	if c.Download.FetchMaxTries <= 0 {
		return errors.New("download.fetch_max_tries must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	return nil
}

// RequireCredentials checks that a username and password are available for
// commands that need to log in.
func (c *Config) RequireCredentials() error {
	if c.Pixiv.Username == "" || c.Pixiv.Password == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/pixie/config.toml"
		}
		return fmt.Errorf("pixiv credentials are required. Set PIXIV_USERNAME and PIXIV_PASSWORD env vars or edit %s (create with 'pixie config init')", defaultPath)
	}
	return nil
}
