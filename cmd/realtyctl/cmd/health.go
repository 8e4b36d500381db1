package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// probeCmd pings the webhook directly with a test message.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the realty agent webhook responds",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newWebhookClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		start := time.Now()
		err = client.Ping(ctx)
		latency := time.Since(start)

		if outputJSON {
			result := map[string]any{
				"webhook":   client.Endpoint(),
				"ok":        err == nil,
				"latencyMs": latency.Milliseconds(),
			}
			if err != nil {
				result["error"] = err.Error()
			}
			printOutput(cmd.OutOrStdout(), result)
			return err
		}
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ Webhook is unreachable: %v\n", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Webhook responded in %s\n", latency.Round(time.Millisecond))
		return nil
	},
}

// healthCmd reads the proxy's /healthz.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of a running realty proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		resp, err := makeHTTPRequest(ctx, http.MethodGet, "/healthz", nil)
		if err != nil {
			return fmt.Errorf("HTTP health check failed: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if outputJSON {
			if json.Valid(body) {
				printOutput(cmd.OutOrStdout(), json.RawMessage(body))
			} else {
				printOutput(cmd.OutOrStdout(), map[string]any{"status": resp.StatusCode})
			}
			return nil
		}

		if resp.StatusCode == http.StatusOK {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Service is healthy")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ Service is unhealthy (HTTP %d)\n", resp.StatusCode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(healthCmd)
}
