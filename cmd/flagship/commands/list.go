package commands

import (
	"context"
	"fmt"

	"github.com/flagwell/flagwell/internal/cli"
	"github.com/flagwell/flagwell/internal/client"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/spf13/cobra"
)

var (
	listActiveOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all feature flags",
	Long: `List all feature flags defined for a project.

Examples:
  flagship list --project acme
  flagship list --project acme --format json
  flagship list --project acme --active-only`,
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

		if listActiveOnly {
			var active []model.Flag
			for _, f := range flags {
				if !f.Archived {
					active = append(active, f)
				}
			}
			flags = active
		}

		if !quiet {
			if len(flags) == 0 {
				fmt.Println("No flags found")
				return nil
			}
			return cli.PrintFlags(flags, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listActiveOnly, "active-only", false, "Hide archived flags")
}
