package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/davintoo/wiki-export-demo/internal/config"
)

//go:embed templates/wikiexport.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new wikiexport settings file",
		Long: `Initialize creates a new .wikiexport settings file in the current directory.

The generated file includes:
- Default root page and download settings
- Commented examples for extra headers and optional outputs
- Documentation for all available options

The API token is never stored in the settings file.

Examples:
  # Create .wikiexport in current directory
  wikiexport init

  # Create settings file at a specific path
  wikiexport init -o ~/.config/wikiexport/config.yaml

  # Force overwrite existing file
  wikiexport init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the settings file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing settings file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("settings file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/wikiexport.yaml")
	if err != nil {
		return fmt.Errorf("failed to read settings template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created settings file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Wiki host and root page")
	fmt.Fprintln(out, "  - Extra request headers")
	fmt.Fprintln(out, "  - Markdown pages, run report and metrics output")
	fmt.Fprintln(out, "\nSet API_TOKEN in the environment or a .env file.")

	return nil
}
