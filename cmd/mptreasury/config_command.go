package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mptreasury/internal/config"
)

func newInitConfigCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Create a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configPath
			if path == "" {
				path = config.GetDefaultConfigPath()
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Fprintf(out, "Config file already exists at: %s\n", path)
				fmt.Fprintln(out, "Use --force to overwrite it.")
				return nil
			}

			if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}

			fmt.Fprintf(out, "Created default config file at: %s\n", path)
			fmt.Fprintln(out, "Set discogs_token (or DISCOGS_TOKEN) before importing, or use catalogs: [musicbrainz].")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
