package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"pixie/internal/archive"
	"pixie/internal/config"
	"pixie/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openLedger opens the outcome ledger when archiving is enabled; it returns
// nil without error when it is not.
func (c *commandContext) openLedger() (*archive.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	store, err := archive.Open(cfg.Paths.LogDir)
	if err != nil {
		return nil, fmt.Errorf("open archive ledger: %w", err)
	}
	return store, nil
}

// acquireLock takes the single-instance lock guarding the ledger database.
// The caller must release the returned lock.
func (c *commandContext) acquireLock() (*flock.Flock, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "pixie.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another pixie instance is already running")
	}
	return lock, nil
}
