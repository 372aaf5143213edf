package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/gorgon/internal/bell"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/util"
)

// SensorKinds lists every supported sensor kind.
var SensorKinds = []string{KindCPU, KindMemory, KindCommand, KindFixed}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but gorgon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest gorgon: https://github.com/rileyhilliard/gorgon/releases")
	}

	if err := validateHub(cfg.Hub); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'hub' section in your .gorgon.yaml.")
	}

	if cfg.SSH.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("ssh.timeout can't be negative (got %s)", cfg.SSH.Timeout),
			"Use a positive duration like '10s', or leave it out for the default.")
	}

	if len(cfg.Crabs) == 0 {
		return errors.New(errors.ErrConfig,
			"No crabs configured",
			"Add at least one entry under 'crabs', or run 'gorgon init' to generate one.")
	}

	seen := make(map[string]bool, len(cfg.Crabs))
	for i, crab := range cfg.Crabs {
		if strings.TrimSpace(crab.Name) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Crab at position %d has no name", i),
				"Give every crab a unique 'name'.")
		}
		if seen[crab.Name] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Crab '%s' is defined more than once", crab.Name),
				"Crab names must be unique. Rename or remove the duplicate.")
		}
		seen[crab.Name] = true

		if err := validateCrab(crab); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check your crab config in .gorgon.yaml.")
		}
	}

	if err := validateBell(cfg.Bell, cfg.CrabNames()); err != nil {
		return err
	}

	return nil
}

func validateHub(h HubConfig) error {
	if h.BufferSize != nil && *h.BufferSize < 1 {
		return fmt.Errorf("hub.buffer_size must be at least 1 (got %d)", *h.BufferSize)
	}
	if _, err := hub.ParseFailurePolicy(h.FailurePolicy); err != nil {
		return fmt.Errorf("hub.failure_policy '%s' isn't valid - use 'abort' or 'partial'", h.FailurePolicy)
	}
	if h.Parallel < 0 {
		return fmt.Errorf("hub.parallel can't be negative (got %d)", h.Parallel)
	}
	if err := validateDuration("hub.interval", h.Interval); err != nil {
		return err
	}
	return nil
}

// validateCrab checks a single crab configuration.
func validateCrab(c CrabConfig) error {
	if c.BufferSize != nil && *c.BufferSize < 1 {
		return fmt.Errorf("crab '%s' buffer_size must be at least 1 (got %d)", c.Name, *c.BufferSize)
	}
	if err := validateDuration(fmt.Sprintf("crab '%s' interval", c.Name), c.Interval); err != nil {
		return err
	}
	if err := validateDuration(fmt.Sprintf("crab '%s' read_timeout", c.Name), c.ReadTimeout); err != nil {
		return err
	}
	if strings.ContainsAny(c.Host, " \t") {
		return fmt.Errorf("crab '%s' host '%s' contains whitespace", c.Name, c.Host)
	}

	names := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if err := validateSensor(c.Name, i, s); err != nil {
			return err
		}
		name := s.SensorName()
		if names[name] {
			return fmt.Errorf("crab '%s' has two sensors named '%s'", c.Name, name)
		}
		names[name] = true
	}
	return nil
}

func validateSensor(crab string, pos int, s SensorConfig) error {
	switch s.Kind {
	case KindCPU, KindMemory:
		return nil
	case KindCommand:
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("crab '%s' sensor '%s' needs a 'command' to run", crab, s.SensorName())
		}
		if s.Name == "" {
			return fmt.Errorf("crab '%s' command sensor at position %d needs a 'name'", crab, pos)
		}
		return nil
	case KindFixed:
		if s.Name == "" {
			return fmt.Errorf("crab '%s' fixed sensor at position %d needs a 'name'", crab, pos)
		}
		return nil
	case "":
		return fmt.Errorf("crab '%s' sensor at position %d has no 'kind' (use one of: %s)", crab, pos, strings.Join(SensorKinds, ", "))
	}

	msg := fmt.Sprintf("crab '%s' sensor kind '%s' isn't supported", crab, s.Kind)
	if similar := util.SuggestSimilar(s.Kind, SensorKinds, 3); len(similar) > 0 {
		return fmt.Errorf("%s - did you mean '%s'?", msg, similar[0])
	}
	return fmt.Errorf("%s (use one of: %s)", msg, strings.Join(SensorKinds, ", "))
}

func validateBell(b BellConfig, crabs []string) error {
	if b.Crab != "" && !contains(crabs, b.Crab) {
		suggestion := "Available crabs: " + strings.Join(crabs, ", ")
		if similar := util.SuggestSimilar(b.Crab, crabs, 3); len(similar) > 0 {
			suggestion = fmt.Sprintf("Did you mean '%s'? %s", similar[0], suggestion)
		}
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("bell.crab '%s' doesn't match any crab", b.Crab),
			suggestion)
	}

	if b.Iterations < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("bell.iterations can't be negative (got %d)", b.Iterations),
			"Use a positive count, or leave it out for the default.")
	}

	if err := validateDuration("bell.interval", b.Interval); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'bell' section in your .gorgon.yaml.")
	}

	for i, m := range b.Metrics {
		if m.Key == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("bell metric at position %d has no 'key'", i),
				"Set 'key' to the sensor name to report, like 'cpu'.")
		}
		if err := (bell.Thresholds{Warn: m.Warn, Crit: m.Crit}).Validate(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("bell metric '%s' has bad thresholds: %v", m.Key, err),
				"Thresholds are percentages and 'warn' must not be above 'crit'.")
		}
	}

	return nil
}

func validateDuration(field string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s can't be negative (got %s)", field, d)
	}
	return nil
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// BellMetrics converts the configured metrics into bell metrics, falling back
// to the stock cpu and memory metrics when none are set.
func (b BellConfig) BellMetrics() []bell.Metric {
	if len(b.Metrics) == 0 {
		return bell.DefaultMetrics()
	}
	metrics := make([]bell.Metric, 0, len(b.Metrics))
	for _, m := range b.Metrics {
		label := m.Label
		if label == "" {
			label = strings.ToUpper(m.Key)
		}
		metrics = append(metrics, bell.Metric{
			Key:        m.Key,
			Label:      label,
			Thresholds: bell.Thresholds{Warn: m.Warn, Crit: m.Crit},
		})
	}
	return metrics
}
