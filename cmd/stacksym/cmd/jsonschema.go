/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/internal/config"
)

const schemaFileName = "config.schema.json"

func init() {
	rootCmd.AddCommand(jsonschemaCmd)
	jsonschemaCmd.Flags().StringP("output", "o", "-", "Where to save the JSONSchema file (a folder gets "+schemaFileName+")")
	viper.BindPFlag("jsonschema.output", jsonschemaCmd.Flags().Lookup("output"))
}

// configSchema describes the config file, with nested sections inlined so
// editors can complete them without following references.
func configSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := r.Reflect(&config.Config{})
	schema.Title = "stacksym"
	schema.Description = "stacksym configuration definition file"
	return json.MarshalIndent(schema, "", "\t")
}

// jsonschemaCmd represents the jsonschema command
var jsonschemaCmd = &cobra.Command{
	Use:     "jsonschema",
	Aliases: []string{"schema"},
	Short:   "Output the config file JSON schema",
	Example: heredoc.Doc(`
		# Save the schema next to the config file
		❯ stacksym jsonschema -o ~/.config/stacksym`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Hidden:        true,
	RunE: func(cmd *cobra.Command, args []string) error {
		bts, err := configSchema()
		if err != nil {
			return fmt.Errorf("failed to create jsonschema: %w", err)
		}
		output := viper.GetString("jsonschema.output")
		if output == "-" {
			fmt.Println(string(bts))
			return nil
		}
		if fi, err := os.Stat(output); err == nil && fi.IsDir() {
			output = filepath.Join(output, schemaFileName)
		}
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("failed to write jsonschema file: %w", err)
		}
		if err := os.WriteFile(output, bts, 0o644); err != nil {
			return fmt.Errorf("failed to write jsonschema file: %w", err)
		}
		log.WithField("path", output).Info("Created config schema")

		return nil
	},
}
