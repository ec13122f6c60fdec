package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags outputs flags in the specified format
func PrintFlags(flags []model.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(flags)
	case FormatYAML:
		return printYAML(flags)
	case FormatTable:
		return printTable(flags)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintFlag outputs a single flag in the specified format
func PrintFlag(flag *model.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(flag)
	case FormatYAML:
		return printYAML(flag)
	case FormatTable:
		return printTable([]model.Flag{*flag})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	// Wrap slices of model.Flag in a "flags" key for consistency with documentation
	if flags, ok := data.([]model.Flag); ok {
		return encoder.Encode(map[string][]model.Flag{"flags": flags})
	}
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTable(flags []model.Flag) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header("Key", "Name", "Type", "Variants", "Archived", "Tags")

	for _, flag := range flags {
		archived := "false"
		if flag.Archived {
			archived = "true"
		}

		variantKeys := make([]string, len(flag.Variants))
		for i, v := range flag.Variants {
			variantKeys[i] = v.Key
		}

		table.Append(
			flag.Key,
			flag.Name,
			string(flag.FlagType),
			strings.Join(variantKeys, ","),
			archived,
			strings.Join(flag.Tags, ","),
		)
	}

	return table.Render()
}
