package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flagwell/flagwell/internal/cli"
	"github.com/flagwell/flagwell/internal/client"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/spf13/cobra"
)

var (
	createName        string
	createType        string
	createDescription string
	createVariants    string
)

var createCmd = &cobra.Command{
	Use:   "create <key>",
	Short: "Create a new feature flag",
	Long: `Create a new feature flag with the specified key and variants.

Examples:
  flagship create feature_x --project acme --type boolean --variants '[{"key":"on","value":true},{"key":"off","value":false}]'
  flagship create feature_y --project acme --type string --name "Checkout copy" --description "New feature Y"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if project == "" {
			return fmt.Errorf("--project is required")
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		var variants []model.Variant
		if createVariants != "" {
			if err := json.Unmarshal([]byte(createVariants), &variants); err != nil {
				return fmt.Errorf("invalid variants JSON: %w", err)
			}
		}

		name := createName
		if name == "" {
			name = key
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		ctx := context.Background()
		flag, err := c.CreateFlag(ctx, project, client.CreateFlagParams{
			Key:         key,
			Name:        name,
			Description: createDescription,
			FlagType:    model.FlagType(createType),
			Variants:    variants,
		})
		if err != nil {
			return fmt.Errorf("failed to create flag: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully created flag '%s' in project '%s'\n", flag.Key, project)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createName, "name", "", "Display name (defaults to the key)")
	createCmd.Flags().StringVar(&createType, "type", string(model.FlagTypeBoolean), "Variant type (boolean, string, number, json)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Flag description")
	createCmd.Flags().StringVar(&createVariants, "variants", "", "Variants as a JSON array")
}
