package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/subloop-cli/subloop/inline"
)

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.SetOut(os.Stdout)
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the records written by watch --inline",
	Run: func(cmd *cobra.Command, args []string) {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		handleErr(encoder.Encode(inline.Schema()))
	},
}
