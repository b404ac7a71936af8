package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/orion/cli"
	"github.com/spf13/cobra"
)

// emit writes v as indented JSON under --json, otherwise the result of human.
func emit(cmd *cobra.Command, v interface{}, human func() string) error {
	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), human())
	return nil
}
