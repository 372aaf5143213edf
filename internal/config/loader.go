package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".gorgon.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/gorgon"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. GORGON_HUB_INTERVAL.
	EnvPrefix = "GORGON"
)

// envKeys are the scalar settings that can be overridden from the
// environment. Lists (crabs, sensors, metrics) only come from files.
var envKeys = []string{
	"hub.buffer_size",
	"hub.failure_policy",
	"hub.parallel",
	"hub.interval",
	"ssh.config",
	"ssh.known_hosts",
	"ssh.timeout",
	"bell.crab",
	"bell.iterations",
	"bell.interval",
}

// Load reads the config file at path. Environment overrides apply on top.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Run 'gorgon init' to create one, or point --config at an existing file")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file: "+path,
			"Check that the file is valid YAML")
	}
	return decode(v, path)
}

// LoadOrDefault loads the config Find returns, or the built-in local crab
// when there is none. The returned path is empty in that case. Environment
// overrides apply either way.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg, err := decode(newViper(), "")
	if err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// Find returns the first config file in this order:
//  1. explicit (the --config flag), which must exist
//  2. .gorgon.yaml in the working directory
//  3. .gorgon.yaml in a parent, stopping at the git root or below home
//  4. ~/.config/gorgon/config.yaml
//
// An empty path with a nil error means no file was found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if err := checkExplicit(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	home, _ := os.UserHomeDir()

	for _, candidate := range searchPaths(cwd, home) {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

func checkExplicit(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Specified config file not found: "+path,
			"Check the path passed to --config")
	case err != nil:
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot access config file: "+path,
			"Check file permissions")
	case info.IsDir():
		return errors.New(errors.ErrConfig,
			"Config path is a directory: "+path,
			"Pass the file itself, e.g. --config "+filepath.Join(path, ConfigFileName))
	}
	return nil
}

// searchPaths lists the implicit candidates in lookup order.
func searchPaths(cwd, home string) []string {
	paths := []string{filepath.Join(cwd, ConfigFileName)}

	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			break
		}
		dir = parent
		paths = append(paths, filepath.Join(dir, ConfigFileName))
	}

	if home != "" {
		paths = append(paths, filepath.Join(home, GlobalConfigDir, GlobalConfigFile))
	}
	return paths
}

// newViper returns a viper instance that reads GORGON_* overrides for envKeys.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// decode turns viper settings into a Config on top of the defaults.
// path is only used in messages and is empty without a file.
func decode(v *viper.Viper, path string) (*Config, error) {
	// Lists start empty so default crabs never merge into the user's.
	cfg := DefaultConfig()
	cfg.Crabs = nil
	cfg.Bell.Crab = ""

	if err := v.Unmarshal(cfg); err != nil {
		hint := "Check the values of the " + EnvPrefix + "_* environment variables"
		if path != "" {
			hint = "Check the YAML in " + path + " and any " + EnvPrefix + "_* environment variables"
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Invalid config format", hint)
	}

	if !v.IsSet("crabs") {
		cfg.Crabs = DefaultCrabs()
	}
	for i := range cfg.Crabs {
		cfg.Crabs[i].Name = Expand(cfg.Crabs[i].Name)
		cfg.Crabs[i].Host = Expand(cfg.Crabs[i].Host)
	}
	cfg.SSH.Config = ExpandTilde(cfg.SSH.Config)
	cfg.SSH.KnownHosts = ExpandTilde(cfg.SSH.KnownHosts)

	if cfg.Bell.Crab == "" && len(cfg.Crabs) > 0 {
		cfg.Bell.Crab = cfg.Crabs[0].Name
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}
