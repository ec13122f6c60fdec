package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	project string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagship",
	Short: "CLI tool for managing feature flags",
	Long: `Flagship is a command-line tool for managing feature flags in the flagwell service.

It provides commands for creating, reading, updating, and deleting flags,
as well as importing and exporting flag configurations.

Examples:
  flagship list --project acme --env prod
  flagship create my_flag --project acme --type boolean
  flagship get my_flag --project acme
  flagship export --project acme --output flags.yaml
  flagship import flags.yaml --project acme`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the flagwell API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Management API token")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "CLI config profile (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&project, "project", "", "Project ID")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}
