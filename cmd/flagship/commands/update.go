package commands

import (
	"context"
	"fmt"

	"github.com/flagwell/flagwell/internal/cli"
	"github.com/flagwell/flagwell/internal/client"
	"github.com/spf13/cobra"
)

var (
	updateEnvironment      string
	updateEnabled          bool
	updateDisabled         bool
	updateDefaultVariantID string
	updateDescription      string
)

var updateCmd = &cobra.Command{
	Use:   "update <key>",
	Short: "Update a feature flag",
	Long: `Update an existing feature flag's metadata or per-environment state.

Examples:
  flagship update feature_x --project acme --environment prod --enabled
  flagship update feature_x --project acme --environment prod --default-variant on
  flagship update feature_x --project acme --description "Checkout redesign rollout"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if project == "" {
			return fmt.Errorf("--project is required")
		}
		if updateEnabled && updateDisabled {
			return fmt.Errorf("--enabled and --disabled are mutually exclusive")
		}
		if (updateEnabled || updateDisabled || updateDefaultVariantID != "") && updateEnvironment == "" {
			return fmt.Errorf("--environment is required when setting enabled state or default variant")
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		params := client.UpdateFlagParams{
			Description:      updateDescription,
			EnvironmentID:    updateEnvironment,
			DefaultVariantID: updateDefaultVariantID,
		}
		if updateEnabled {
			enabled := true
			params.Enabled = &enabled
		}
		if updateDisabled {
			enabled := false
			params.Enabled = &enabled
		}

		ctx := context.Background()
		flag, err := c.UpdateFlag(ctx, project, key, params)
		if err != nil {
			return fmt.Errorf("failed to update flag: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully updated flag '%s' in project '%s'\n", flag.Key, project)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringVar(&updateEnvironment, "environment", "", "Environment ID to target")
	updateCmd.Flags().BoolVar(&updateEnabled, "enabled", false, "Enable the flag in the target environment")
	updateCmd.Flags().BoolVar(&updateDisabled, "disabled", false, "Disable the flag in the target environment")
	updateCmd.Flags().StringVar(&updateDefaultVariantID, "default-variant", "", "Default variant ID for the target environment")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "Flag description")
}
