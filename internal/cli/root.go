// Package cli provides the command-line interface for tracekit.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ccollicutt/tracekit/internal/cli/commands"
	"github.com/ccollicutt/tracekit/internal/cli/plugins"
)

// ConfigName is the file name searched for when --config is not given.
const ConfigName = "tracekit"

// standalone commands load their own configuration, or none.
var standalone = map[string]bool{
	"version":    true,
	"validate":   true,
	"diagnose":   true,
	"help":       true,
	"completion": true,
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	v := newViper()
	rootCmd := newRootCommand(v)

	if name, ok := pluginCandidate(rootCmd, os.Args[1:]); ok {
		if pluginPath, err := plugins.FindPlugin(name); err == nil {
			configPath, _ := resolveConfigPath(v)
			return plugins.Execute(context.Background(), plugins.Invocation{
				Path:       pluginPath,
				Args:       os.Args[2:],
				ConfigPath: configPath,
				LogLevel:   v.GetString("log-level"),
			})
		}
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if name, ok := pluginCandidate(rootCmd, os.Args[1:]); ok {
			_, _ = fmt.Fprintln(os.Stderr, plugins.FormatNotFoundError(name))
			return commands.ExitError
		}
		// SilenceErrors keeps cobra from printing this itself.
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// pluginCandidate returns the first argument when it names no built-in
// command and is not a flag.
func pluginCandidate(rootCmd *cobra.Command, args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	name := args[0]
	if name == "" || name[0] == '-' || isBuiltinCommand(rootCmd, name) {
		return "", false
	}
	return name, true
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// newViper binds TRACEKIT_* environment variables and the config search
// path: ./tracekit.yaml, then ~/.tracekit/tracekit.yaml.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TRACEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".tracekit"))
	}
	return v
}

// resolveConfigPath returns --config (or TRACEKIT_CONFIG) when set, else the
// first config file on the search path, else "" for built-in defaults.
func resolveConfigPath(v *viper.Viper) (string, error) {
	if path := v.GetString("config"); path != "" {
		return path, nil
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("searching for %s.yaml: %w", ConfigName, err)
	}
	return v.ConfigFileUsed(), nil
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newViper())
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tracekit",
		Short: "Decode hardware debugging captures",
		Long: `tracekit turns raw captures from embedded hardware into something a
human or a standard tool can read.

Decoders:
  threads   Rebuild text messages from a logic analyzer SPI export
  regdump   Extract the register table from a crash dump console log
  btsnoop   Transcode a textual HCI trace into a BTSnoop capture

Every decoder reads UTF-8, UTF-16 and UTF-32 text with or without a
byte-order mark. Settings come from --config, TRACEKIT_CONFIG, or a
tracekit.yaml in the current directory or ~/.tracekit/.

Exit codes:
  0 - Decoded with no findings
  1 - Decoded, but something needs a look (no messages, partial dump,
      skipped trace lines)
  2 - Configuration or runtime error

PLUGINS:
  Unknown commands run a tracekit-<command> binary when one is found in
  the directory of the tracekit binary, ~/.tracekit/plugins/ or PATH.

  Available plugins:
    threadplot   Per-type message rates from a threads output file
    monitor      Live crash dump decoding from a serial console`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if standalone[cmd.Name()] {
				return nil
			}

			configPath, err := resolveConfigPath(v)
			if err != nil {
				return err
			}

			rt, err := commands.NewRuntime(cmd.Context(), configPath, v.GetString("log-level"), v.GetString("log-format"))
			if err != nil {
				return err
			}
			rt.Logger.WithField("config", configPath).Debug("Configuration loaded")

			cmd.SetContext(commands.WithRuntime(cmd.Context(), rt))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default ./tracekit.yaml or ~/.tracekit/tracekit.yaml)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (default from config, info)")
	flags.String("log-format", "", "Log format: text or json (default from config, text)")
	for _, name := range []string{"config", "log-level", "log-format"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(commands.NewThreadsCommand())
	rootCmd.AddCommand(commands.NewRegdumpCommand())
	rootCmd.AddCommand(commands.NewBTSnoopCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewCaptureCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
