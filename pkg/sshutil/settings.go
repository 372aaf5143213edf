package sshutil

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// settings holds resolved connection parameters for one host.
type settings struct {
	hostname     string
	port         string
	user         string
	identityFile string
	// matchLine is the line of the first Match block in the config, 0 if none.
	matchLine int
	// fromConfig is true when the ssh config had an entry for the host.
	fromConfig bool
}

func (s *settings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSettings parses user@host:port and fills the gaps from the ssh
// config at configPath. A missing or unreadable config leaves defaults.
func resolveSettings(host, configPath string) *settings {
	s := &settings{
		port: "22",
		user: currentUser(),
	}

	if at := strings.Index(host, "@"); at != -1 {
		s.user = host[:at]
		host = host[at+1:]
	}

	if colon := strings.LastIndex(host, ":"); colon != -1 && isDigits(host[colon+1:]) {
		s.port = host[colon+1:]
		host = host[:colon]
	}
	s.hostname = host

	cfg, matchLine, err := loadSSHConfig(configPath)
	if err != nil {
		return s
	}
	s.matchLine = matchLine

	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.hostname = v
		s.fromConfig = true
	}
	if v, _ := cfg.Get(host, "Port"); v != "" {
		s.port = v
		s.fromConfig = true
	}
	if v, _ := cfg.Get(host, "User"); v != "" {
		s.user = v
		s.fromConfig = true
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.identityFile = expandPath(v)
		s.fromConfig = true
	}
	return s
}

// loadSSHConfig decodes the part of the config before the first Match
// directive, which ssh_config cannot parse.
func loadSSHConfig(configPath string) (*ssh_config.Config, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	matchLine := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			matchLine = i + 1
			lines = lines[:i]
			break
		}
	}

	cfg, err := ssh_config.Decode(bytes.NewReader([]byte(strings.Join(lines, "\n"))))
	if err != nil {
		return nil, matchLine, err
	}
	return cfg, matchLine, nil
}

// HostEntry is a concrete host alias from an ssh config.
type HostEntry struct {
	Alias    string
	Hostname string
	User     string
	Port     string
}

// String renders the entry for pickers, e.g. "web (10.0.0.5, user: deploy)".
func (h HostEntry) String() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return h.Alias + " (" + strings.Join(parts, ", ") + ")"
}

// Hosts lists the concrete aliases in the ssh config at configPath, sorted.
// Wildcard patterns are skipped. A missing config yields no hosts.
func Hosts(configPath string) ([]HostEntry, error) {
	cfg, _, err := loadSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var hosts []HostEntry
	seen := make(map[string]bool)
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?") || seen[alias] {
				continue
			}
			seen[alias] = true

			entry := HostEntry{Alias: alias}
			entry.Hostname, _ = cfg.Get(alias, "HostName")
			entry.User, _ = cfg.Get(alias, "User")
			entry.Port, _ = cfg.Get(alias, "Port")
			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Alias < hosts[j].Alias })
	return hosts, nil
}

// DefaultConfigPath returns ~/.ssh/config.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
