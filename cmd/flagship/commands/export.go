package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flagwell/flagwell/internal/cli"
	"github.com/flagwell/flagwell/internal/client"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportOutput string
)

// ExportFormat represents the structure for exporting flags
type ExportFormat struct {
	Flags []model.Flag `yaml:"flags" json:"flags"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export flags to a file",
	Long: `Export all flags defined for a project to a YAML or JSON file.

Examples:
  flagship export --project acme --output flags.yaml
  flagship export --project acme --output flags.json --format json
  flagship export --project acme > backup.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if project == "" {
			return fmt.Errorf("--project is required")
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		ctx := context.Background()
		flags, err := c.ListFlags(ctx, project)
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}

		exportData := ExportFormat{Flags: flags}

		var output *os.File
		if exportOutput == "" || exportOutput == "-" {
			output = os.Stdout
		} else {
			output, err = os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer output.Close()
		}

		switch format {
		case "json":
			encoder := json.NewEncoder(output)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(exportData); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
		case "yaml", "table":
			// Default to YAML for export
			encoder := yaml.NewEncoder(output)
			defer encoder.Close()
			encoder.SetIndent(2)
			if err := encoder.Encode(exportData); err != nil {
				return fmt.Errorf("failed to encode YAML: %w", err)
			}
		default:
			return fmt.Errorf("unsupported export format: %s", format)
		}

		if exportOutput != "" && exportOutput != "-" && !quiet {
			fmt.Fprintf(os.Stderr, "Successfully exported %d flag(s) to %s\n", len(flags), exportOutput)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
