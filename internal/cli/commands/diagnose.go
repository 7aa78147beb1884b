package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/config"
)

// probeTimeout bounds a webhook reachability probe when the webhook sets none.
const probeTimeout = 5 * time.Second

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// CheckStatus is the outcome of one setup check.
type CheckStatus string

const (
	StatusOK      CheckStatus = "ok"
	StatusWarning CheckStatus = "warning"
	StatusError   CheckStatus = "error"
)

func (s CheckStatus) label() string {
	switch s {
	case StatusOK:
		return "PASS"
	case StatusWarning:
		return "WARN"
	default:
		return "FAIL"
	}
}

// DiagnosticResult is the outcome of one setup check with what to do about it.
type DiagnosticResult struct {
	Check    string
	Status   CheckStatus
	Message  string
	Details  []string
	Suggests []string
}

func passed(check, format string, args ...any) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: StatusOK, Message: fmt.Sprintf(format, args...)}
}

func warned(check, format string, args ...any) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: StatusWarning, Message: fmt.Sprintf(format, args...)}
}

func failed(check, format string, args ...any) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Check a tracekit setup before a capture session",
		Long: `Check a tracekit setup before a capture session.

Checks run in order and stop at the first that makes the rest meaningless:
  Config File       the file exists and is readable
  Config Syntax     the file parses and validates
  Decoder Settings  which settings differ from the defaults
  Serial Port       the configured port is plugged in
  Webhook           each webhook has a token (and answers, with -v)

Example:
  tracekit diagnose tracekit.yaml
  tracekit diagnose -v tracekit.yaml  # also probe webhook endpoints

Exit codes:
  0 - All checks passed
  1 - Usable, with warnings
  2 - At least one check failed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show details and probe webhook endpoints")

	return cmd
}

func runDiagnose(cmd *cobra.Command, configPath string, opts *DiagnoseOptions) error {
	ctx := commandContext(cmd)
	results := []DiagnosticResult{checkConfigExists(configPath)}

	var cfg *config.Config
	if results[0].Status != StatusError {
		var parsed DiagnosticResult
		cfg, parsed = checkConfigParseable(ctx, configPath)
		results = append(results, parsed)
	}

	if cfg != nil {
		results = append(results, checkDecoderSettings(cfg), checkSerialPort(cfg))
		results = append(results, checkWebhooks(ctx, cfg, opts)...)
	}

	printDiagnostics(cmd.OutOrStdout(), results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	const check = "Config File"

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		r := failed(check, "Config file not found: %s", path)
		r.Suggests = []string{
			"Check the file path is correct",
			"Every setting has a default; the config file is optional for decode commands",
		}
		return r
	case err != nil:
		r := failed(check, "Cannot access config file: %v", err)
		r.Suggests = []string{"Check file permissions"}
		return r
	case info.IsDir():
		return failed(check, "%s is a directory, not a file", path)
	}

	return passed(check, "Found: %s (%d bytes)", path, info.Size())
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	const check = "Config Syntax"

	cfg, err := config.Load(ctx, path)
	if err != nil {
		r := failed(check, "Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			r.Suggests = []string{"YAML indentation must use spaces, not tabs"}
		}
		return nil, r
	}

	r := passed(check, "Config file parsed successfully")
	r.Details = []string{
		fmt.Sprintf("Log level: %s (%s)", cfg.Logging.Level, cfg.Logging.Format),
		fmt.Sprintf("Message rules: %d", len(cfg.Threads.Rules)),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, r
}

func checkDecoderSettings(cfg *config.Config) DiagnosticResult {
	const check = "Decoder Settings"

	var changed []string
	if cfg.Threads.TypeThreshold != config.DefaultTypeThreshold {
		changed = append(changed, fmt.Sprintf("threads.type_threshold: %d (default %d)", cfg.Threads.TypeThreshold, config.DefaultTypeThreshold))
	}
	if cfg.Threads.TypeDenylist != config.DefaultTypeDenylist {
		changed = append(changed, fmt.Sprintf("threads.type_denylist: %q", cfg.Threads.TypeDenylist))
	}
	if n := len(cfg.Threads.Rules); n > 0 {
		changed = append(changed, fmt.Sprintf("threads.rules: %d message rule(s)", n))
	}
	if cfg.HCI.SkipChars > 0 {
		changed = append(changed, fmt.Sprintf("hci.skip_chars: %d", cfg.HCI.SkipChars))
	}
	if cfg.HCI.BluetrumTimestamps {
		changed = append(changed, "hci.bluetrum_timestamps: true")
	}
	if cfg.HCI.UnmappedPolicy == config.UnmappedAbort {
		changed = append(changed, "hci.unmapped_policy: abort")
	}

	if len(changed) == 0 {
		return passed(check, "All decoders use default settings")
	}

	r := passed(check, "%d setting(s) differ from the defaults", len(changed))
	r.Details = changed
	if cfg.Threads.TypeThreshold < 5 {
		r.Status = StatusWarning
		r.Suggests = []string{"A very low type_threshold filters message types even in clean captures"}
	}
	return r
}

func checkSerialPort(cfg *config.Config) DiagnosticResult {
	const check = "Serial Port"

	if cfg.Serial.Port == "" {
		return passed(check, "No serial port configured (only needed for capture)")
	}

	ports, err := listPorts()
	if err != nil {
		return warned(check, "Cannot list serial ports: %v", err)
	}
	if !slices.Contains(ports, cfg.Serial.Port) {
		r := warned(check, "%s is not present on this host", cfg.Serial.Port)
		r.Details = ports
		r.Suggests = []string{"Plug the device in, or run 'tracekit capture --list' to see available ports"}
		return r
	}

	return passed(check, "%s present, %d baud, %s window", cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.Duration)
}

// checkWebhooks reports each webhook's settings, followed in verbose mode by
// a reachability probe of its endpoint.
func checkWebhooks(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			return []DiagnosticResult{passed("Webhooks", "No webhooks configured (optional)")}
		}
		return nil
	}

	results := make([]DiagnosticResult, 0, 2*len(cfg.Webhooks))
	for _, wh := range cfg.Webhooks {
		label := wh.Name
		if label == "" {
			label = wh.URL
		}
		check := "Webhook: " + label

		// config.Load already rejected bad URLs and triggers; an empty token
		// here usually means the referenced variable is unset.
		r := passed(check, "Trigger: %s", wh.Trigger)
		if wh.Token == "" && wh.Trigger != config.WebhookTriggerNever {
			r = warned(check, "No token (unauthenticated, or the token variable is unset)")
		}
		if opts.Verbose {
			r.Details = []string{"URL: " + wh.URL, "Timeout: " + wh.Timeout.String()}
		}
		results = append(results, r)

		if opts.Verbose {
			probe := checkWebhookConnectivity(ctx, wh)
			probe.Check = "Webhook Connectivity: " + label
			results = append(results, probe)
		}
	}

	return results
}

// checkWebhookConnectivity sends a HEAD request to the webhook endpoint.
// Reports are POSTed, so any answer at all counts as reachable.
func checkWebhookConnectivity(ctx context.Context, wh config.WebhookConfig) DiagnosticResult {
	timeout := wh.Timeout
	if timeout <= 0 {
		timeout = probeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wh.URL, nil)
	if err != nil {
		return warned("", "Cannot create request: %v", err)
	}
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r := warned("", "Cannot connect: %v", err)
		r.Suggests = []string{"Check the webhook URL and that this host can reach it"}
		return r
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return passed("", "Reachable (status %d)", resp.StatusCode)
	}

	r := warned("", "Reachable but returned status %d", resp.StatusCode)
	r.Suggests = []string{
		"The endpoint may only accept POST (decode reports are POSTed)",
		"A 401 or 403 means the token was refused",
	}
	return r
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== tracekit Diagnostics ===")
	fmt.Fprintln(w)

	counts := make(map[CheckStatus]int, 3)
	for _, r := range results {
		counts[r.Status]++

		fmt.Fprintf(w, "[%s] %s\n", r.Status.label(), r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)
		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}
		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n",
		counts[StatusOK], counts[StatusWarning], counts[StatusError])

	switch {
	case counts[StatusError] > 0:
		fmt.Fprintln(w, "\nFix the errors above before decoding.")
		ExitCode = ExitError
	case counts[StatusWarning] > 0:
		fmt.Fprintln(w, "\nSetup is usable but has warnings.")
		ExitCode = ExitFindings
	default:
		fmt.Fprintln(w, "\nSetup looks good!")
	}
}
