package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pixie/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintf(out, "Download dir: %s\n", cfg.Paths.DownloadDir)
			fmt.Fprintf(out, "Log dir: %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Username: %s\n", cfg.Pixiv.Username)
			fmt.Fprintf(out, "Auto relogin: %s\n", yesNo(cfg.Pixiv.AutoRelogin))
			fmt.Fprintf(out, "Workers: %d\n", cfg.Download.Workers)
			fmt.Fprintf(out, "Max tries: %d\n", cfg.Download.MaxTries)
			fmt.Fprintf(out, "Fetch max tries: %d\n", cfg.Download.FetchMaxTries)
			fmt.Fprintf(out, "Name template: %s\n", cfg.Download.Name)
			fmt.Fprintf(out, "Convert ugoira: %s\n", yesNo(cfg.Download.ConvertUgoira))
			fmt.Fprintf(out, "Skip archived: %s\n", yesNo(cfg.Download.SkipArchived))
			fmt.Fprintf(out, "Archive ledger: %s\n", yesNo(cfg.Archive.Enabled))
			fmt.Fprintf(out, "Log format: %s (%s)\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set your account credentials (or export PIXIV_USERNAME and PIXIV_PASSWORD) before downloading.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctx.configPath)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
