// Package plugins runs external tracekit-<command> binaries for commands the
// CLI does not build in, in the style of git and kubectl.
//
// A plugin receives the remaining arguments unchanged. The config file and
// log level chosen for the invocation are passed in TRACEKIT_CONFIG and
// TRACEKIT_LOG_LEVEL so plugins decode with the same settings.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix is prepended to a command name to form the plugin binary name.
const Prefix = "tracekit-"

// Environment passed to plugins.
const (
	EnvConfig   = "TRACEKIT_CONFIG"
	EnvLogLevel = "TRACEKIT_LOG_LEVEL"
)

// KnownPlugins lists plugins with official implementations.
var KnownPlugins = map[string]string{
	"threadplot": "Plots per-type message rates from a threads output file over time.",
	"monitor":    "Streams a serial console and decodes crash dumps as they arrive.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// SearchDirs returns the directories searched before PATH: the directory of
// the tracekit binary, then ~/.tracekit/plugins.
func SearchDirs() []string {
	var dirs []string
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".tracekit", "plugins"))
	}
	return dirs
}

// FindPlugin returns the path of the tracekit-<command> binary, searching
// SearchDirs and then PATH.
func FindPlugin(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	name := Prefix + command

	for _, dir := range SearchDirs() {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// Invocation describes one plugin run.
type Invocation struct {
	Path       string
	Args       []string
	ConfigPath string
	LogLevel   string
}

// Env returns the process environment extended with the invocation settings.
func (inv Invocation) Env() []string {
	env := os.Environ()
	if inv.ConfigPath != "" {
		env = append(env, EnvConfig+"="+inv.ConfigPath)
	}
	if inv.LogLevel != "" {
		env = append(env, EnvLogLevel+"="+inv.LogLevel)
	}
	return env
}

// Execute runs the plugin attached to the terminal and returns its exit code.
func Execute(ctx context.Context, inv Invocation) int {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = inv.Env()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 2
	}
	return 0
}

// FormatNotFoundError explains where a missing plugin could be installed.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"tracekit\"\n", command)

	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "\n%q is available as a plugin.\n", command)
		sb.WriteString(info)
		sb.WriteString("\n\nInstall the plugin binary as one of:\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	}

	fmt.Fprintf(&sb, "  - %s%s in the same directory as tracekit\n", Prefix, command)
	fmt.Fprintf(&sb, "  - ~/.tracekit/plugins/%s%s\n", Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)

	sb.WriteString("\nRun 'tracekit --help' for usage.")

	return sb.String()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
