package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints one indented document, for commands that answer once.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONLine prints v as a single compact line so streams stay parseable
// with line-oriented tools.
func writeJSONLine(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}
