package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a tracekit configuration file without decoding anything.

Checks:
  - YAML syntax
  - Logging level and format
  - Message type threshold
  - HCI preprocessing and unmapped packet policy
  - Serial baud rate and duration
  - Webhook URLs, triggers and timeouts`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Logging:  level %s, format %s\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Fprintf(w, "  Threads:  type threshold %d, denylist %q\n", cfg.Threads.TypeThreshold, cfg.Threads.TypeDenylist)
	fmt.Fprintf(w, "  Rules:    %d\n", len(cfg.Threads.Rules))
	for i, rule := range cfg.Threads.Rules {
		fmt.Fprintf(w, "    %d. %s (%s)\n", i+1, rule.Name, rule.Type)
	}
	fmt.Fprintf(w, "  HCI:      skip %d chars, bluetrum clock %t, unmapped packets %s\n",
		cfg.HCI.SkipChars, cfg.HCI.BluetrumTimestamps, cfg.HCI.UnmappedPolicy)

	port := cfg.Serial.Port
	if port == "" {
		port = "(none)"
	}
	fmt.Fprintf(w, "  Serial:   port %s at %d baud for %s\n", port, cfg.Serial.BaudRate, cfg.Serial.Duration)

	fmt.Fprintf(w, "  Webhooks: %d\n", len(cfg.Webhooks))
	for i, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		fmt.Fprintf(w, "    %d. %s (trigger %s)\n", i+1, name, wh.Trigger)
	}

	return nil
}
