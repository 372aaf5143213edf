package doctor

import (
	"context"
	stderrors "errors"
	"path/filepath"

	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/util"
)

// ConfigFileCheck reports which config file is used. Running on the
// built-in defaults is a warning, not a failure.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return CategoryConfig }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return fail("Check the --config path or run 'gorgon init'",
			"Error finding config: %s", headline(err))
	}
	if path == "" {
		return warn("Run 'gorgon init' to create a .gorgon.yaml",
			"No config file found, using the built-in local crab")
	}
	return pass("Config file: %s", filepath.Base(path))
}

// ConfigValidCheck loads and validates the config.
type ConfigValidCheck struct {
	ConfigPath string
}

func (c *ConfigValidCheck) Name() string     { return "config_valid" }
func (c *ConfigValidCheck) Category() string { return CategoryConfig }

func (c *ConfigValidCheck) Run(context.Context) CheckResult {
	cfg, _, err := config.LoadOrDefault(c.ConfigPath)
	if err != nil {
		return fail(suggestion(err, "Check the YAML syntax in your config file"),
			"Failed to load config: %s", headline(err))
	}
	if err := config.Validate(cfg); err != nil {
		return fail(suggestion(err, "Fix the config and re-run 'gorgon doctor'"),
			"Invalid config: %s", headline(err))
	}

	sensors := 0
	for _, crab := range cfg.Crabs {
		sensors += len(crab.Sensors)
	}
	return pass("%d %s with %d %s, policy %s",
		len(cfg.Crabs), util.Pluralize(len(cfg.Crabs), "crab", "crabs"),
		sensors, util.Pluralize(sensors, "sensor", "sensors"),
		cfg.Hub.FailurePolicy)
}

// headline returns the message of a structured error, or the plain text.
func headline(err error) string {
	var gErr *errors.Error
	if stderrors.As(err, &gErr) {
		return gErr.Message
	}
	return err.Error()
}

func suggestion(err error, fallback string) string {
	var gErr *errors.Error
	if stderrors.As(err, &gErr) && gErr.Suggestion != "" {
		return gErr.Suggestion
	}
	return fallback
}
