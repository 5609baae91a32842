package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/classmux/classmux/pkg/config"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate a JSON schema for the configuration",
	Long: `Generate a JSON schema describing every classmux configuration key.

Point your editor at the generated file to get completion and inline
validation while editing config.yaml.

Examples:
  # Print the schema to stdout
  classmux config schema

  # Write it next to the config file
  classmux config schema --output config.schema.json`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write the schema to this file instead of stdout")
}

func runSchema(cmd *cobra.Command, args []string) error {
	// DoNotReference inlines the section types so the schema works in
	// editors that do not resolve $ref across definitions.
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "classmux Configuration"
	schema.Description = "Configuration schema for the classmux load balancer and application server"

	encoded, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}

	if schemaOutput == "" {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", encoded)
		return err
	}
	if err := os.WriteFile(schemaOutput, encoded, 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
	return err
}
