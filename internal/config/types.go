package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Sensor kinds understood by the topology builder.
const (
	KindCPU     = "cpu"
	KindMemory  = "memory"
	KindCommand = "command"
	KindFixed   = "fixed"
)

// DefaultCrabName is the crab created by DefaultConfig.
const DefaultCrabName = "local_system"

// Config represents the complete .gorgon.yaml configuration file.
type Config struct {
	Version int          `yaml:"version" mapstructure:"version"`
	Hub     HubConfig    `yaml:"hub" mapstructure:"hub"`
	SSH     SSHConfig    `yaml:"ssh,omitempty" mapstructure:"ssh"`
	Crabs   []CrabConfig `yaml:"crabs" mapstructure:"crabs"`
	Bell    BellConfig   `yaml:"bell,omitempty" mapstructure:"bell"`
}

// HubConfig controls the octopus that polls every crab.
type HubConfig struct {
	// BufferSize is how many hub records are kept. Nil means the hub default.
	BufferSize *int `yaml:"buffer_size,omitempty" mapstructure:"buffer_size"`

	// FailurePolicy is "abort" (default) or "partial".
	FailurePolicy string `yaml:"failure_policy,omitempty" mapstructure:"failure_policy"`

	// Parallel polls up to this many crabs at once. Zero keeps polling sequential.
	Parallel int `yaml:"parallel,omitempty" mapstructure:"parallel"`

	// Interval between hub cycles for serve and watch.
	Interval time.Duration `yaml:"interval,omitempty" mapstructure:"interval"`
}

// SSHConfig holds connection settings shared by every remote crab.
type SSHConfig struct {
	// Config is the ssh_config file used to resolve host aliases.
	Config string `yaml:"config,omitempty" mapstructure:"config"`

	// KnownHosts is the known_hosts file used to verify host keys.
	KnownHosts string `yaml:"known_hosts,omitempty" mapstructure:"known_hosts"`

	// Timeout bounds dialing and the handshake.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// CrabConfig defines one agent and the sensors it owns.
type CrabConfig struct {
	Name string `yaml:"name" mapstructure:"name"`

	// Host is an SSH target (alias, host, user@host:port). Empty means local.
	Host string `yaml:"host,omitempty" mapstructure:"host"`

	Interval    time.Duration `yaml:"interval,omitempty" mapstructure:"interval"`
	BufferSize  *int          `yaml:"buffer_size,omitempty" mapstructure:"buffer_size"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" mapstructure:"read_timeout"`

	Sensors []SensorConfig `yaml:"sensors" mapstructure:"sensors"`
}

// Remote reports whether the crab reads its sensors over SSH.
func (c CrabConfig) Remote() bool {
	return c.Host != ""
}

// SensorConfig defines one sensor of a crab.
type SensorConfig struct {
	// Name is the snapshot key. Defaults to the kind for cpu and memory.
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Kind is one of cpu, memory, command or fixed.
	Kind string `yaml:"kind" mapstructure:"kind"`

	// Command is the shell command for the command kind.
	Command string `yaml:"command,omitempty" mapstructure:"command"`

	// Value is the constant reading for the fixed kind.
	Value float64 `yaml:"value,omitempty" mapstructure:"value"`
}

// SensorName returns the snapshot key of the sensor.
func (s SensorConfig) SensorName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// BellConfig controls the bell command.
type BellConfig struct {
	// Crab is watched when the bell command gets no argument.
	Crab string `yaml:"crab,omitempty" mapstructure:"crab"`

	Iterations int           `yaml:"iterations,omitempty" mapstructure:"iterations"`
	Interval   time.Duration `yaml:"interval,omitempty" mapstructure:"interval"`

	// Metrics replaces the default cpu and memory thresholds when set.
	Metrics []MetricConfig `yaml:"metrics,omitempty" mapstructure:"metrics"`
}

// MetricConfig is one snapshot key the bell reports with its thresholds.
type MetricConfig struct {
	Key   string  `yaml:"key" mapstructure:"key"`
	Label string  `yaml:"label,omitempty" mapstructure:"label"`
	Warn  float64 `yaml:"warn" mapstructure:"warn"`
	Crit  float64 `yaml:"crit" mapstructure:"crit"`
}

// DefaultCrabs is the local crab with the stock cpu and memory sensors.
func DefaultCrabs() []CrabConfig {
	return []CrabConfig{
		{
			Name: DefaultCrabName,
			Sensors: []SensorConfig{
				{Kind: KindCPU},
				{Kind: KindMemory},
			},
		},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Hub: HubConfig{
			FailurePolicy: "abort",
			Interval:      5 * time.Second,
		},
		SSH: SSHConfig{
			Config:     "~/.ssh/config",
			KnownHosts: "~/.ssh/known_hosts",
			Timeout:    10 * time.Second,
		},
		Crabs: DefaultCrabs(),
		Bell: BellConfig{
			Crab:       DefaultCrabName,
			Iterations: 5,
		},
	}
}

// Crab returns the crab config with the given name.
func (c *Config) Crab(name string) (CrabConfig, bool) {
	for _, crab := range c.Crabs {
		if crab.Name == name {
			return crab, true
		}
	}
	return CrabConfig{}, false
}

// CrabNames returns crab names in config order.
func (c *Config) CrabNames() []string {
	names := make([]string, 0, len(c.Crabs))
	for _, crab := range c.Crabs {
		names = append(names, crab.Name)
	}
	return names
}
