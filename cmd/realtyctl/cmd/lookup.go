package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// lookupCmd sends a free-text message to the realty agent.
var lookupCmd = &cobra.Command{
	Use:   "lookup [message...]",
	Short: "Send a free-text query to the realty agent",
	Long: `Send a free-text query to the realty agent webhook and print its output.

Examples:
  realtyctl lookup "2 BHK villas near the beach"
  realtyctl lookup --session demo-1 what about pools`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out, err := agent.Lookup(ctx, strings.Join(args, " "), sessionID)
		if err != nil {
			return err
		}
		printOutput(cmd.OutOrStdout(), out)
		return nil
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details [property-id]",
	Short: "Get detailed information about a property",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out, err := agent.PropertyDetails(ctx, args[0], sessionID)
		if err != nil {
			return err
		}
		printOutput(cmd.OutOrStdout(), out)
		return nil
	},
}

var compareEach bool

// compareCmd compares properties in one agent call, or with --each fetches
// the details of every property concurrently.
var compareCmd = &cobra.Command{
	Use:   "compare [property-id...]",
	Short: "Compare multiple properties",
	Long: `Compare multiple properties side by side.

IDs may be given as separate arguments or comma-separated. With --each the
details of every property are fetched concurrently instead of asking the
agent for a single comparison.

Examples:
  realtyctl compare P-101 P-204
  realtyctl compare P-101,P-204,P-330 --each --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := splitList(args)
		if len(ids) < 2 {
			return fmt.Errorf("compare needs at least two property IDs, got %d", len(ids))
		}

		agent, err := newAgent()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if !compareEach {
			out, err := agent.CompareProperties(ctx, ids, sessionID)
			if err != nil {
				return err
			}
			printOutput(cmd.OutOrStdout(), out)
			return nil
		}

		results := make([]json.RawMessage, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				out, err := agent.PropertyDetails(gctx, id, sessionID)
				if err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if outputJSON {
			byID := make(map[string]json.RawMessage, len(ids))
			for i, id := range ids {
				byID[id] = results[i]
			}
			printOutput(cmd.OutOrStdout(), byID)
			return nil
		}
		for i, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", id)
			printOutput(cmd.OutOrStdout(), results[i])
		}
		return nil
	},
}

var amenitiesLocation string

var amenitiesCmd = &cobra.Command{
	Use:   "amenities [amenity...]",
	Short: "Search for properties with specific amenities",
	Long: `Search for properties with specific amenities.

Examples:
  realtyctl amenities pool gym
  realtyctl amenities "pool,sea view" --location Goa`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out, err := agent.SearchByAmenities(ctx, splitList(args), amenitiesLocation, sessionID)
		if err != nil {
			return err
		}
		printOutput(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(amenitiesCmd)

	compareCmd.Flags().BoolVar(&compareEach, "each", false, "fetch each property's details concurrently")
	amenitiesCmd.Flags().StringVar(&amenitiesLocation, "location", "", "preferred location")
}
