package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/austindbirch/realty_relay/internal/config"
	"github.com/austindbirch/realty_relay/internal/retry"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

const configFileName = ".realtyctl.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage realtyctl configuration",
	Long:  `Manage realtyctl configuration settings.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		if outputJSON {
			printOutput(w, map[string]any{
				"webhook":  webhookURL,
				"param":    webhookArg,
				"server":   serverAddr,
				"timeout":  timeout.String(),
				"attempts": maxAttempts,
				"backoff":  backoff.String(),
				"json":     outputJSON,
				"pretty":   prettyJSON,
			})
			return
		}

		fmt.Fprintln(w, "Current configuration:")
		fmt.Fprintf(w, "  Webhook: %s\n", webhookURL)
		fmt.Fprintf(w, "  Param: %s\n", webhookArg)
		fmt.Fprintf(w, "  Server: %s\n", serverAddr)
		fmt.Fprintf(w, "  Timeout: %s\n", timeout)
		fmt.Fprintf(w, "  Attempts: %d\n", maxAttempts)
		fmt.Fprintf(w, "  Backoff: %s\n", backoff)
		fmt.Fprintf(w, "  JSON Output: %v\n", outputJSON)
		fmt.Fprintf(w, "  Pretty JSON: %v\n", prettyJSON)

		if prettyJSON && !checkJQAvailable() {
			fmt.Fprintln(w, "  ⚠️  Warning: pretty=true but jq not found in PATH")
		}
		if viper.ConfigFileUsed() != "" {
			fmt.Fprintf(w, "  Config file: %s\n", viper.ConfigFileUsed())
		} else {
			fmt.Fprintln(w, "  Config file: none (using defaults)")
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the config file.

Examples:
  realtyctl config set webhook https://n8n.example.com/webhook/realty-agent
  realtyctl config set param message
  realtyctl config set attempts 5
  realtyctl config set pretty true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		parsed, err := parseConfigValue(key, value)
		if err != nil {
			return err
		}
		if key == "pretty" && parsed == true && !checkJQAvailable() {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠️  Warning: jq not found in PATH. Pretty formatting will fall back to standard formatting.")
		}
		viper.Set(key, parsed)

		configPath, err := configFilePath()
		if err != nil {
			return err
		}
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", configPath)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a default configuration file in the home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := configFilePath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(configPath); err == nil {
			overwrite, _ := cmd.Flags().GetBool("force")
			if !overwrite {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
			}
		}

		defaults := map[string]any{
			"webhook":  config.DefaultWebhookURL,
			"param":    webhook.ParamContactMessage,
			"server":   "http://localhost:3000",
			"timeout":  "30s",
			"attempts": retry.DefaultMaxAttempts,
			"backoff":  retry.DefaultInitialBackoff.String(),
			"json":     false,
			"pretty":   false,
		}
		for _, key := range configKeys {
			viper.Set(key, defaults[key])
		}

		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", configPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Default settings:")
		for _, key := range configKeys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", key, defaults[key])
		}
		return nil
	},
}

func configFilePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configFileName), nil
}

// parseConfigValue validates key and converts value to the type stored for it.
func parseConfigValue(key, value string) (any, error) {
	switch key {
	case "json", "pretty":
		switch value {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return nil, oops.With("key", key).Errorf("invalid boolean value for %s: %s (use true/false)", key, value)
	case "timeout", "backoff":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, oops.With("key", key).Errorf("invalid duration for %s: %s", key, value)
		}
		return d.String(), nil
	case "attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, oops.With("key", key).Errorf("attempts must be a positive integer, got %s", value)
		}
		return n, nil
	case "param":
		if value != webhook.ParamContactMessage && value != webhook.ParamMessage {
			return nil, oops.With("key", key).Errorf("param must be %s or %s", webhook.ParamContactMessage, webhook.ParamMessage)
		}
		return value, nil
	case "webhook", "server":
		if value == "" {
			return nil, oops.With("key", key).Errorf("%s must not be empty", key)
		}
		return value, nil
	}
	return nil, fmt.Errorf("invalid configuration key: %s. Valid keys are: webhook, param, server, timeout, attempts, backoff, json, pretty", key)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite existing config file")
}
