package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitNonInteractive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)

	var buf bytes.Buffer
	require.NoError(t, Init(&buf, InitOptions{Dir: dir, NonInteractive: true}))
	assert.Contains(t, buf.String(), "Created "+path)
	assert.Contains(t, buf.String(), "gorgon collect")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))
	assert.Equal(t, []string{config.DefaultCrabName}, cfg.CrabNames())
	assert.Equal(t, "abort", cfg.Hub.FailurePolicy)

	t.Run("existing file needs force", func(t *testing.T) {
		err := Init(&bytes.Buffer{}, InitOptions{Dir: dir, NonInteractive: true})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("force overwrites", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("garbage: ["), 0644))
		require.NoError(t, Init(&bytes.Buffer{}, InitOptions{Dir: dir, NonInteractive: true, Overwrite: true}))

		_, err := config.Load(path)
		require.NoError(t, err)
	})
}

func TestInitJSON(t *testing.T) {
	useMachineMode(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, Init(&buf, InitOptions{Dir: dir, NonInteractive: true}))
	assert.Contains(t, buf.String(), `"success": true`)
	assert.Contains(t, buf.String(), `"local_system"`)
}

func TestBuildInitConfig(t *testing.T) {
	tests := []struct {
		name      string
		answers   initAnswers
		wantCrabs []string
		wantHosts []string
		policy    string
	}{
		{
			name:      "defaults",
			answers:   initAnswers{},
			wantCrabs: []string{"local_system"},
			wantHosts: []string{""},
			policy:    "abort",
		},
		{
			name:      "renamed local crab",
			answers:   initAnswers{LocalName: "  laptop ", Policy: "partial"},
			wantCrabs: []string{"laptop"},
			wantHosts: []string{""},
			policy:    "partial",
		},
		{
			name:      "remote hosts",
			answers:   initAnswers{LocalName: "laptop", RemoteHosts: []string{"gpu-box", "web"}},
			wantCrabs: []string{"laptop", "gpu-box", "web"},
			wantHosts: []string{"", "gpu-box", "web"},
			policy:    "abort",
		},
		{
			name:      "alias clashing with local name is skipped",
			answers:   initAnswers{LocalName: "web", RemoteHosts: []string{"web", "db"}},
			wantCrabs: []string{"web", "db"},
			wantHosts: []string{"", "db"},
			policy:    "abort",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildInitConfig(tt.answers)
			require.NoError(t, config.Validate(cfg))

			assert.Equal(t, tt.wantCrabs, cfg.CrabNames())
			var hosts []string
			for _, c := range cfg.Crabs {
				hosts = append(hosts, c.Host)
				assert.Len(t, c.Sensors, 2)
			}
			assert.Equal(t, tt.wantHosts, hosts)
			assert.Equal(t, tt.policy, cfg.Hub.FailurePolicy)
			assert.Equal(t, tt.wantCrabs[0], cfg.Bell.Crab)
		})
	}
}
