// Package serialcap records a device's UART console into a capture file
// that the decoders can read.
package serialcap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/ccollicutt/tracekit/pkg/logging"
)

// DefaultReadTimeout bounds each blocking read so a quiet port still
// notices the end of the capture window.
const DefaultReadTimeout = 100 * time.Millisecond

// ErrNoPort is returned when no port name was given.
var ErrNoPort = errors.New("no serial port given")

// Port is the part of a serial port a capture needs.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens a named port with the given mode.
type Opener func(name string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real device through go.bug.st/serial.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

// Options describes one capture.
type Options struct {
	Port     string
	BaudRate int
	// Duration is the capture window. Zero captures until ctx ends.
	Duration time.Duration
}

// Stats summarizes a capture.
type Stats struct {
	Port        string        `json:"port"`
	Bytes       int64         `json:"bytes"`
	Lines       int           `json:"lines"`
	Elapsed     time.Duration `json:"elapsed"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// Capturer reads console output from serial ports.
type Capturer struct {
	open        Opener
	readTimeout time.Duration
	logger      logrus.FieldLogger
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithOpener replaces the port opener, for tests and alternative drivers.
func WithOpener(o Opener) Option {
	return func(c *Capturer) {
		c.open = o
	}
}

// WithReadTimeout sets the per-read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Capturer) {
		c.logger = l
	}
}

// New creates a Capturer that opens real serial devices.
func New(opts ...Option) *Capturer {
	c := &Capturer{
		open:        OpenSerial,
		readTimeout: DefaultReadTimeout,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture copies bytes from the port to w until the capture window closes,
// ctx is cancelled or the port reports end of file. Cancellation of ctx is a
// normal end and marks the stats as interrupted.
func (c *Capturer) Capture(ctx context.Context, opts Options, w io.Writer) (*Stats, error) {
	if opts.Port == "" {
		return nil, ErrNoPort
	}
	if opts.BaudRate <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", opts.BaudRate)
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := c.open(opts.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", opts.Port, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(c.readTimeout); err != nil {
		return nil, fmt.Errorf("setting read timeout on %s: %w", opts.Port, err)
	}

	window := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		window, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	log := c.logger.WithFields(logrus.Fields{"port": opts.Port, "baud": opts.BaudRate})
	log.WithField("duration", opts.Duration).Info("Capture started")

	stats := &Stats{Port: opts.Port}
	start := time.Now()
	buf := make([]byte, 4096)

	for window.Err() == nil {
		n, err := port.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				stats.Elapsed = time.Since(start)
				return stats, fmt.Errorf("writing capture: %w", werr)
			}
			stats.Bytes += int64(n)
			stats.Lines += bytes.Count(buf[:n], []byte{'\n'})
		}
		if errors.Is(err, io.EOF) {
			log.Debug("Port closed by device")
			break
		}
		if err != nil {
			stats.Elapsed = time.Since(start)
			return stats, fmt.Errorf("reading %s: %w", opts.Port, err)
		}
	}

	stats.Elapsed = time.Since(start)
	stats.Interrupted = ctx.Err() != nil
	log.WithFields(logrus.Fields{
		"bytes":       stats.Bytes,
		"lines":       stats.Lines,
		"interrupted": stats.Interrupted,
	}).Info("Capture finished")

	return stats, nil
}

// CaptureFile captures into path, replacing any existing file. The bytes
// captured before an error are kept.
func (c *Capturer) CaptureFile(ctx context.Context, opts Options, path string) (*Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}

	stats, capErr := c.Capture(ctx, opts, f)
	if err := f.Close(); err != nil && capErr == nil {
		capErr = fmt.Errorf("closing capture file: %w", err)
	}
	return stats, capErr
}
