package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/wagiedev/linebridge-go/internal/config"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.File
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the configuration file once. Without --config the
// built-in defaults are used.
func (c *commandContext) ensureConfig() (*config.File, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		if path == "" {
			cfg := config.DefaultFile()
			c.config = &cfg
		} else {
			cfg, err := config.LoadFile(path)
			if err != nil {
				c.configErr = err
				return
			}
			c.config = cfg
		}

		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			c.config.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
			if err := c.config.Validate(); err != nil {
				c.config = nil
				c.configErr = err
			}
		}
	})
	return c.config, c.configErr
}

// bridgeOptions builds bridge options from the configuration, logging to w.
func (c *commandContext) bridgeOptions(w io.Writer) (*config.Options, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := cfg.Logger(w)
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, err
	}

	opts.Logger = logger

	return opts, logger, nil
}
