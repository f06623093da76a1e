package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"mediaforge/internal/asset"
)

func joinStages(stages []asset.Stage) string {
	if len(stages) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, string(stage))
	}
	return strings.Join(names, ", ")
}

// writeJSON encodes v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
