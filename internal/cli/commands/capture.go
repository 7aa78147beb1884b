package commands

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/serialcap"
)

// CaptureOptions holds command-line options for the capture command.
type CaptureOptions struct {
	Port     string
	BaudRate int
	Duration time.Duration
	List     bool
}

// newCapturer builds the serial capturer; tests replace it.
var newCapturer = func(opts ...serialcap.Option) *serialcap.Capturer {
	return serialcap.New(opts...)
}

// listPorts enumerates serial ports; tests replace it.
var listPorts = serialcap.ListPorts

// NewCaptureCommand creates the capture command.
func NewCaptureCommand() *cobra.Command {
	opts := &CaptureOptions{}

	cmd := &cobra.Command{
		Use:   "capture [--port P] [--baud B] [--duration D] <output-file>",
		Short: "Record a device's serial console to a capture file",
		Long: `Record the UART console of a device (crash dumps, HCI traces) into a
file that regdump, btsnoop and detect can read. The port is opened 8N1.

The capture ends after --duration, when the device closes the port or on
Ctrl-C; what was received so far is kept. A duration of 0 records until
interrupted.

Port, baud rate and duration default to the serial section of the config
file (TRACEKIT_SERIAL_PORT overrides the port).

Example:
  tracekit capture --list
  tracekit capture --port /dev/ttyUSB0 --baud 921600 --duration 2m console.log`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "Serial port device")
	cmd.Flags().IntVarP(&opts.BaudRate, "baud", "b", 0, "Baud rate")
	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "Capture window (0 records until interrupted)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "List available serial ports and exit")

	return cmd
}

func runCapture(cmd *cobra.Command, args []string, opts *CaptureOptions) error {
	w := cmd.OutOrStdout()

	if opts.List {
		ports, err := listPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(w, "No serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(w, p)
		}
		return nil
	}

	rt := runtimeFor(cmd)
	sc := rt.Config.Serial
	capOpts := serialcap.Options{
		Port:     sc.Port,
		BaudRate: sc.BaudRate,
		Duration: sc.Duration,
	}
	if cmd.Flags().Changed("port") {
		capOpts.Port = opts.Port
	}
	if cmd.Flags().Changed("baud") {
		capOpts.BaudRate = opts.BaudRate
	}
	if cmd.Flags().Changed("duration") {
		capOpts.Duration = opts.Duration
	}
	if capOpts.Port == "" {
		return fmt.Errorf("%w (use --port or serial.port in config; --list shows ports)", serialcap.ErrNoPort)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	stats, err := newCapturer(serialcap.WithLogger(rt.Logger)).CaptureFile(ctx, capOpts, args[0])
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	fmt.Fprintf(w, "Captured %d bytes (%d lines) from %s in %s to %s\n",
		stats.Bytes, stats.Lines, stats.Port, stats.Elapsed.Round(time.Millisecond), args[0])
	if stats.Bytes == 0 {
		fmt.Fprintln(w, "Warning: nothing was received; check the port and baud rate")
		ExitCode = ExitFindings
	}
	return nil
}
