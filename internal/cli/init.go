package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/ui"
	"github.com/rileyhilliard/gorgon/pkg/sshutil"
	"github.com/spf13/cobra"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Dir            string // directory to write .gorgon.yaml into
	Overwrite      bool   // overwrite an existing config without asking
	NonInteractive bool   // skip prompts, write the defaults
}

// initAnswers are the choices that shape a new config.
type initAnswers struct {
	LocalName   string
	Policy      string
	RemoteHosts []string // ssh aliases that become remote crabs
}

var (
	initForce          bool
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .gorgon.yaml in the current directory",
	Long: `Create a .gorgon.yaml config file in the current directory.

Interactively, you pick a name for the local crab, the hub failure policy,
and any hosts from ~/.ssh/config to poll as remote crabs. Without a
terminal (or with --non-interactive) the defaults are written: one local
crab with cpu and memory sensors.

Examples:
  gorgon init
  gorgon init --non-interactive
  gorgon init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nonInteractive := initNonInteractive || machineMode || !isTerminal(os.Stdin)
		return Init(cmd.OutOrStdout(), InitOptions{
			Dir:            ".",
			Overwrite:      initForce,
			NonInteractive: nonInteractive,
		})
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "write the defaults without prompting")
	rootCmd.AddCommand(initCmd)
}

// Init writes a new .gorgon.yaml into opts.Dir.
func Init(w io.Writer, opts InitOptions) error {
	configPath := filepath.Join(opts.Dir, config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	answers := initAnswers{LocalName: config.DefaultCrabName, Policy: "abort"}
	if !opts.NonInteractive {
		if err := askInitQuestions(&answers); err != nil {
			return err
		}
	}

	cfg := buildInitConfig(answers)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(w, map[string]interface{}{
			"path":  configPath,
			"crabs": cfg.CrabNames(),
		})
	}

	fmt.Fprintf(w, "%s Created %s\n\n", ui.SymbolSuccess, configPath)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  gorgon crabs     - List configured crabs")
	fmt.Fprintln(w, "  gorgon collect   - Run one collection cycle")
	fmt.Fprintln(w, "  gorgon watch     - Live dashboard")
	return nil
}

func askInitQuestions(answers *initAnswers) error {
	hosts, err := sshutil.Hosts(sshutil.DefaultConfigPath())
	if err != nil {
		// An unreadable ssh config only costs us the host picker.
		hosts = nil
	}

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Title("Local crab name").
				Description("Snapshot key for the crab polling this machine").
				Placeholder(config.DefaultCrabName).
				Value(&answers.LocalName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("crab name is required")
					}
					if strings.ContainsAny(s, " \t\n") {
						return fmt.Errorf("crab name cannot contain whitespace")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("When a crab fails during a hub cycle").
				Options(
					huh.NewOption("Abort the cycle, keep nothing (abort)", "abort"),
					huh.NewOption("Keep the other crabs' readings (partial)", "partial"),
				).
				Value(&answers.Policy),
		),
	}

	if len(hosts) > 0 {
		options := make([]huh.Option[string], len(hosts))
		for i, h := range hosts {
			options[i] = huh.NewOption(h.String(), h.Alias)
		}
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Remote crabs").
				Description("Hosts from ~/.ssh/config to poll for cpu and memory over SSH").
				Options(options...).
				Value(&answers.RemoteHosts),
		))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive flag")
	}
	return nil
}

// buildInitConfig turns init answers into a config. Remote crabs are named
// after their ssh alias and get the cpu and memory sensors.
func buildInitConfig(a initAnswers) *config.Config {
	cfg := config.DefaultConfig()

	local := strings.TrimSpace(a.LocalName)
	if local == "" {
		local = config.DefaultCrabName
	}
	cfg.Crabs[0].Name = local
	cfg.Bell.Crab = local

	if a.Policy != "" {
		cfg.Hub.FailurePolicy = a.Policy
	}

	for _, alias := range a.RemoteHosts {
		if alias == local {
			continue
		}
		cfg.Crabs = append(cfg.Crabs, config.CrabConfig{
			Name: alias,
			Host: alias,
			Sensors: []config.SensorConfig{
				{Kind: config.KindCPU},
				{Kind: config.KindMemory},
			},
		})
	}
	return cfg
}
