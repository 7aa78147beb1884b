package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logging"
	"github.com/ccollicutt/tracekit/pkg/output"
	"github.com/ccollicutt/tracekit/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK       = 0
	ExitFindings = 1
	ExitError    = 2
)

// Runtime is the state shared by all subcommands of one invocation.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Logger     *logrus.Logger
}

type runtimeKey struct{}

// WithRuntime attaches rt to ctx.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// runtimeFor returns the runtime set up by the root command, or defaults
// with a discarding logger when the command runs on its own.
func runtimeFor(cmd *cobra.Command) *Runtime {
	if ctx := cmd.Context(); ctx != nil {
		if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok {
			return rt
		}
	}
	return &Runtime{
		Config: config.DefaultConfig(),
		Logger: logging.Discard(),
	}
}

// NewRuntime loads the configuration at path (optional) and builds the
// logger, letting non-empty logLevel and logFormat override the file.
func NewRuntime(ctx context.Context, path, logLevel, logFormat string) (*Runtime, error) {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: logging.Format(cfg.Logging.Format),
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{Config: cfg, ConfigPath: path, Logger: logger}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ReportOptions are the flags shared by commands that emit a decode report.
type ReportOptions struct {
	Output  string
	Verbose bool
	Quiet   bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

func (o *ReportOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Output, "output", "o", "text", "Report format (text|json)")
	cmd.Flags().BoolVarP(&o.Verbose, "verbose", "v", false, "Show decoder statistics")
	cmd.Flags().BoolVarP(&o.Quiet, "quiet", "q", false, "Summary only, no details")

	cmd.Flags().StringVar(&o.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&o.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&o.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")
}

// emitReport formats the report on the command's stdout, posts webhooks and
// sets ExitCode from the results.
func emitReport(cmd *cobra.Command, rt *Runtime, opts *ReportOptions, results []*output.Result, started time.Time) error {
	report := output.NewReport(results, output.Metadata{
		ConfigFile: rt.ConfigPath,
		Command:    cmd.Name(),
		StartedAt:  started,
		Duration:   time.Since(started),
	})

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	hooks := collectWebhooks(rt.Config, opts)
	if len(hooks) > 0 {
		webhook.NewClient(webhook.WithLogger(rt.Logger)).Dispatch(ctx, hooks, report)
	}

	switch {
	case report.HasFailures():
		ExitCode = ExitError
	case report.HasIssues():
		ExitCode = ExitFindings
	}

	return nil
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ReportOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
