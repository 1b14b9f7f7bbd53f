// Package cli implements the fogx command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/KeplerC/fog-rtx/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// state is resolved once per invocation, before any subcommand runs.
type state struct {
	cfg    *config.Config
	output string
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		output   string
		profile  string
		logLevel string
		envFile  string
		path     string
	)
	st := &state{}

	rootCmd := &cobra.Command{
		Use:           "fogx",
		Short:         "Organize RT-X robot datasets",
		Long:          "Samples episodes from Open X-Embodiment datasets and records their metadata in local DuckDB stores.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			ucfg, err := LoadUserConfig()
			if err != nil {
				// Config file is optional
				ucfg = &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
			}
			p := ucfg.ActiveProfile(profile)
			if err := applyProfile(cfg, p); err != nil {
				return err
			}

			// Apply precedence: flag > env > profile > default
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("FOGX_OUTPUT"); v != "" {
					output = v
				} else if p.Output != "" {
					output = p.Output
				}
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("path") {
				expanded, err := config.ExpandHome(path)
				if err != nil {
					return err
				}
				cfg.DatasetPath = expanded
				if os.Getenv("META_DB_PATH") == "" {
					cfg.MetaDBPath = config.MetaDBPathFor(expanded)
				}
			}

			st.cfg = cfg
			st.output = output
			st.logger = newLogger(cmd.ErrOrStderr(), cfg)
			slog.SetDefault(st.logger)
			for _, w := range cfg.Warnings {
				st.logger.Warn(w)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional KEY=VALUE file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&path, "path", config.DefaultDatasetPath, "Directory holding the dataset stores and run catalog")

	rootCmd.AddCommand(newPrepareCmd(st))
	rootCmd.AddCommand(newDatasetsCmd(st))
	rootCmd.AddCommand(newTablesCmd(st))
	rootCmd.AddCommand(newShowCmd(st))
	rootCmd.AddCommand(newExportCmd(st))
	rootCmd.AddCommand(newRunsCmd(st))
	rootCmd.AddCommand(newConfigCmd(st))
	rootCmd.AddCommand(newVersionCmd(st))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// applyProfile fills settings from the profile where the environment left
// them unset.
func applyProfile(cfg *config.Config, p Profile) error {
	if p.DatasetPath != "" && os.Getenv("FOG_DATASET_PATH") == "" {
		path, err := config.ExpandHome(p.DatasetPath)
		if err != nil {
			return fmt.Errorf("expand profile dataset-path: %w", err)
		}
		if os.Getenv("META_DB_PATH") == "" {
			cfg.MetaDBPath = config.MetaDBPathFor(path)
		}
		cfg.DatasetPath = path
	}
	if p.Source != "" && os.Getenv("FOG_SOURCE_URI") == "" {
		cfg.SourceURI = p.Source
	}
	if p.Version != "" && os.Getenv("FOG_DATASET_VERSION") == "" {
		cfg.DatasetVersion = p.Version
	}
	if p.LogLevel != "" && os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = p.LogLevel
	}
	if p.GCSKeyFile != "" && cfg.Storage.GCSKeyFile == "" {
		cfg.Storage.GCSKeyFile = p.GCSKeyFile
	}
	if p.AzureAccountName != "" && cfg.Storage.AzureAccountName == "" {
		cfg.Storage.AzureAccountName = p.AzureAccountName
		cfg.Storage.AzureAccountKey = p.AzureAccountKey
	}
	return nil
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
