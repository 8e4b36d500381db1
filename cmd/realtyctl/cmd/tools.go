package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/austindbirch/realty_relay/internal/realty"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or call the realty agent's tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tool catalogue",
	Run: func(cmd *cobra.Command, args []string) {
		tools := realty.Tools()
		if outputJSON {
			printOutput(cmd.OutOrStdout(), map[string]any{"tools": tools})
			return
		}
		for _, t := range tools {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  %s\n", t.Name, t.Description)
			if len(t.Parameters.Required) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  required: %s\n", strings.Join(t.Parameters.Required, ", "))
			}
		}
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call [name] [json-args]",
	Short: "Call a tool by name with JSON arguments",
	Long: `Call a tool by name. Arguments are a JSON object matching the tool's
parameters and default to {}.

Examples:
  realtyctl tools call get_property_details '{"property_id":"P-101"}'
  realtyctl tools call search_by_amenities '{"amenities":["pool"]}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw json.RawMessage
		if len(args) == 2 {
			raw = json.RawMessage(args[1])
		}

		agent, err := newAgent()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out, err := agent.Dispatch(ctx, args[0], raw, sessionID)
		if err != nil {
			return err
		}
		printOutput(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
}
