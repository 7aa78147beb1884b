// Package btsnoop converts ASCII HCI traces into BTSnoop capture files.
//
// A BTSnoop file is a 16-byte header followed by packet records. Every
// integer is big-endian. Each record carries a 24-byte header (original
// length, included length, flags, cumulative drops, timestamp) followed by
// the packet bytes. Timestamps count microseconds since midnight, January 1st
// of year 0 AD.
package btsnoop

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// File format constants.
const (
	Version         uint32 = 1
	DatalinkHCIUART uint32 = 1002

	// EpochOffset is the number of microseconds between year 0 AD and the
	// Unix epoch.
	EpochOffset uint64 = 0x00DCDDB30F2F8000

	fileHeaderLen   = 16
	recordHeaderLen = 24
)

// Magic identifies a BTSnoop file.
var Magic = [8]byte{'b', 't', 's', 'n', 'o', 'o', 'p', 0}

var (
	// ErrBadMagic is returned when a file does not start with Magic.
	ErrBadMagic = errors.New("not a btsnoop file")

	// ErrUnsupportedVersion is returned for any version other than Version.
	ErrUnsupportedVersion = errors.New("unsupported btsnoop version")

	// ErrUnsupportedDatalink is returned for captures that are not HCI UART.
	ErrUnsupportedDatalink = errors.New("unsupported btsnoop datalink")
)

// Flag bits.
const (
	// FlagReceived marks a packet sent by the controller to the host.
	FlagReceived uint32 = 1 << 0
	// FlagCommandEvent marks HCI commands and events, as opposed to data.
	FlagCommandEvent uint32 = 1 << 1
)

// FileHeader is the fixed file preamble.
type FileHeader struct {
	Magic    [8]byte
	Version  uint32
	Datalink uint32
}

// recordHeader is the wire layout of a record header.
type recordHeader struct {
	OriginalLen uint32
	IncludedLen uint32
	Flags       uint32
	Drops       uint32
	Timestamp   uint64
}

// Record is one captured packet.
type Record struct {
	OriginalLen uint32
	IncludedLen uint32
	Flags       uint32
	Drops       uint32
	Timestamp   uint64
	Data        []byte
}

// NewRecord builds a record carrying data in full.
func NewRecord(flags uint32, ts uint64, data []byte) Record {
	n := uint32(len(data)) // #nosec G115 -- HCI packets are far below 4 GiB
	return Record{
		OriginalLen: n,
		IncludedLen: n,
		Flags:       flags,
		Timestamp:   ts,
		Data:        data,
	}
}

// Received reports whether the packet travelled from controller to host.
func (r Record) Received() bool {
	return r.Flags&FlagReceived != 0
}

// CommandOrEvent reports whether the packet is an HCI command or event.
func (r Record) CommandOrEvent() bool {
	return r.Flags&FlagCommandEvent != 0
}

// Time converts the record timestamp to wall-clock time.
func (r Record) Time() time.Time {
	return time.UnixMicro(int64(r.Timestamp - EpochOffset)).UTC() // #nosec G115 -- offset result fits in int64
}

// Timestamp converts a Unix time in microseconds to a BTSnoop timestamp.
func Timestamp(unixMicros uint64) uint64 {
	return unixMicros + EpochOffset
}

// Writer streams records to an io.Writer. Records are never retained.
type Writer struct {
	w       *bufio.Writer
	records int
}

// NewWriter writes the file header and returns a Writer for the records.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriter(w)
	hdr := FileHeader{Magic: Magic, Version: Version, Datalink: DatalinkHCIUART}
	if err := binary.Write(bw, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("writing file header: %w", err)
	}
	return &Writer{w: bw}, nil
}

// WriteRecord appends one record.
func (w *Writer) WriteRecord(r Record) error {
	hdr := recordHeader{
		OriginalLen: r.OriginalLen,
		IncludedLen: r.IncludedLen,
		Flags:       r.Flags,
		Drops:       r.Drops,
		Timestamp:   r.Timestamp,
	}
	if err := binary.Write(w.w, binary.BigEndian, &hdr); err != nil {
		return fmt.Errorf("writing record header: %w", err)
	}
	if _, err := w.w.Write(r.Data); err != nil {
		return fmt.Errorf("writing record data: %w", err)
	}
	w.records++
	return nil
}

// Records returns the number of records written.
func (w *Writer) Records() int {
	return w.records
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader reads records from a BTSnoop stream.
type Reader struct {
	r      *bufio.Reader
	Header FileHeader
}

// NewReader reads and validates the file header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var hdr FileHeader
	if err := binary.Read(br, binary.BigEndian, &hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file shorter than %d bytes", ErrBadMagic, fileHeaderLen)
		}
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	if hdr.Magic != Magic {
		return nil, ErrBadMagic
	}
	if hdr.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	if hdr.Datalink != DatalinkHCIUART {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDatalink, hdr.Datalink)
	}

	return &Reader{r: br, Header: hdr}, nil
}

// Next returns the next record. It returns io.EOF after the last record and
// io.ErrUnexpectedEOF when a record is truncated.
func (r *Reader) Next() (*Record, error) {
	var hdr recordHeader
	if err := binary.Read(r.r, binary.BigEndian, &hdr); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading record header: %w", err)
	}

	data := make([]byte, hdr.IncludedLen)
	if _, err := io.ReadFull(r.r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading record data: %w", err)
	}

	return &Record{
		OriginalLen: hdr.OriginalLen,
		IncludedLen: hdr.IncludedLen,
		Flags:       hdr.Flags,
		Drops:       hdr.Drops,
		Timestamp:   hdr.Timestamp,
		Data:        data,
	}, nil
}
