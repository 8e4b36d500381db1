package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response  json.RawMessage `json:"response"`
	SessionID string          `json:"sessionId,omitempty"`
}

// chatCmd talks to a running realty-proxy rather than the webhook.
var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send a chat message through the realty proxy",
	Long: `Send a chat message to a running realty-proxy (see --server).

A session ID is generated when --session is not set and printed to stderr so
the conversation can be continued.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session := sessionID
		if session == "" {
			session = uuid.NewString()
			fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", session)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		resp, err := makeHTTPRequest(ctx, http.MethodPost, "/api/chat", chatRequest{
			Message:   strings.Join(args, " "),
			SessionID: session,
		})
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read chat response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("proxy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var out chatResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("invalid chat response: %w", err)
		}
		if outputJSON {
			out.SessionID = session
			printOutput(cmd.OutOrStdout(), out)
			return nil
		}
		printOutput(cmd.OutOrStdout(), out.Response)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
