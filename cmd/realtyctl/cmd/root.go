package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/austindbirch/realty_relay/internal/config"
	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/realty"
	"github.com/austindbirch/realty_relay/internal/retry"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

var (
	cfgFile     string
	webhookURL  string
	webhookArg  string
	serverAddr  string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	sessionID   string
	outputJSON  bool
	prettyJSON  bool
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "realtyctl",
	Short: "Realty relay CLI - query the realty agent webhook",
	Long: `Realty relay CLI (realtyctl) is a command line tool for the realty agent.

It sends lookups straight to the n8n webhook (with the same retry and
response handling the proxy uses), calls the agent's tools, and talks to a
running realty-proxy for chat and health checks.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logging.Default().SetLevel(logging.LevelDebug)
		} else {
			logging.Default().SetLevel(logging.LevelError)
		}
		logging.Default().SetOutput(cmd.ErrOrStderr())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.realtyctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&webhookURL, "webhook", config.DefaultWebhookURL, "n8n realty-agent webhook URL")
	rootCmd.PersistentFlags().StringVar(&webhookArg, "param", webhook.ParamContactMessage, "query parameter carrying the message (contactMessage or message)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:3000", "realty-proxy base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall request timeout")
	rootCmd.PersistentFlags().IntVar(&maxAttempts, "attempts", retry.DefaultMaxAttempts, "webhook attempts per lookup")
	rootCmd.PersistentFlags().DurationVar(&backoff, "backoff", retry.DefaultInitialBackoff, "initial retry backoff, doubled after each failure")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "chat session ID sent as sessionId")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&prettyJSON, "pretty", false, "use jq for pretty JSON formatting (requires jq)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log webhook requests and retries to stderr")

	bindFlags()
}

// configKeys are the settings persisted in the config file.
var configKeys = []string{"webhook", "param", "server", "timeout", "attempts", "backoff", "json", "pretty"}

func bindFlags() {
	for _, key := range configKeys {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".realtyctl")
	}

	viper.SetEnvPrefix("REALTYCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	flags := rootCmd.PersistentFlags()
	if !flags.Changed("webhook") {
		if s := viper.GetString("webhook"); s != "" {
			webhookURL = s
		}
	}
	if !flags.Changed("param") {
		if s := viper.GetString("param"); s != "" {
			webhookArg = s
		}
	}
	if !flags.Changed("server") {
		if s := viper.GetString("server"); s != "" {
			serverAddr = s
		}
	}
	if !flags.Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !flags.Changed("attempts") {
		if n := viper.GetInt("attempts"); n > 0 {
			maxAttempts = n
		}
	}
	if !flags.Changed("backoff") {
		if d := viper.GetDuration("backoff"); d > 0 {
			backoff = d
		}
	}
	if !flags.Changed("json") {
		outputJSON = viper.GetBool("json")
	}
	if !flags.Changed("pretty") {
		prettyJSON = viper.GetBool("pretty")
	}
}

// newWebhookClient builds a client for the configured webhook.
func newWebhookClient() (*webhook.Client, error) {
	return webhook.New(webhookURL,
		webhook.WithParam(webhookArg),
		webhook.WithPolicy(retry.Policy{
			MaxAttempts:       maxAttempts,
			InitialBackoff:    backoff,
			RetryClientErrors: true,
		}),
		webhook.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

func newAgent() (*realty.Agent, error) {
	client, err := newWebhookClient()
	if err != nil {
		return nil, err
	}
	return realty.NewAgent(client), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

// makeHTTPRequest calls the realty-proxy at serverAddr.
func makeHTTPRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	client := &http.Client{Timeout: timeout}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := strings.TrimRight(serverAddr, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return client.Do(req)
}

// checkJQAvailable checks if jq is available in PATH
func checkJQAvailable() bool {
	_, err := exec.LookPath("jq")
	return err == nil
}

// formatWithJQ formats JSON using jq for pretty printing
func formatWithJQ(jsonData []byte) (string, error) {
	if !checkJQAvailable() {
		return "", fmt.Errorf("jq not found in PATH")
	}

	cmd := exec.Command("jq", ".")
	cmd.Stdin = bytes.NewReader(jsonData)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("jq formatting failed: %s", stderr.String())
	}

	return out.String(), nil
}

// printOutput writes v to w as JSON when --json is set. Otherwise a JSON
// string result is printed bare and anything else is indented.
func printOutput(w io.Writer, v any) {
	if outputJSON {
		jsonData, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling to JSON: %v\n", err)
			return
		}
		if prettyJSON {
			formatted, jqErr := formatWithJQ(jsonData)
			if jqErr == nil {
				fmt.Fprint(w, formatted)
				return
			}
			fmt.Fprintf(os.Stderr, "Warning: %v, falling back to standard formatting\n", jqErr)
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, jsonData, "", "  "); err != nil {
			fmt.Fprintln(w, string(jsonData))
			return
		}
		fmt.Fprintln(w, indented.String())
		return
	}

	// Human-readable format
	switch val := v.(type) {
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			fmt.Fprintln(w, s)
			return
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, val, "", "  "); err == nil {
			fmt.Fprintln(w, indented.String())
			return
		}
		fmt.Fprintln(w, string(val))
	case string:
		fmt.Fprintln(w, val)
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
}

// splitList accepts both repeated and comma-separated values.
func splitList(args []string) []string {
	var out []string
	for _, a := range args {
		out = append(out, strings.Split(a, ",")...)
	}
	return realty.CleanList(out)
}
