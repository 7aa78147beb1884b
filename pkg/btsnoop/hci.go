package btsnoop

import (
	"encoding/hex"
	"errors"
	"strings"
)

// PacketType is the HCI packet kind named in a trace line.
type PacketType string

const (
	PacketCommand PacketType = "CMD"
	PacketACL     PacketType = "ACL"
	PacketEvent   PacketType = "EVT"
)

// Direction is the transfer direction named in a trace line.
type Direction string

const (
	// HostToController is written "=>" in traces.
	HostToController Direction = "=>"
	// ControllerToHost is written "<=" in traces.
	ControllerToHost Direction = "<="
)

// h4Types maps packet types to their UART framing byte.
var h4Types = map[PacketType]byte{
	PacketCommand: 0x01,
	PacketACL:     0x02,
	PacketEvent:   0x04,
}

type route struct {
	packet    PacketType
	direction Direction
}

// recordFlags maps packet type and direction to BTSnoop record flags.
// Commands only flow to the controller and events only flow to the host.
var recordFlags = map[route]uint32{
	{PacketCommand, HostToController}: 0x02,
	{PacketEvent, ControllerToHost}:   0x03,
	{PacketACL, HostToController}:     0x00,
	{PacketACL, ControllerToHost}:     0x01,
}

// H4Type returns the UART framing byte for a packet type.
func H4Type(p PacketType) (byte, bool) {
	b, ok := h4Types[p]
	return b, ok
}

// Flags returns the record flags for a packet type and direction.
func Flags(p PacketType, d Direction) (uint32, bool) {
	f, ok := recordFlags[route{p, d}]
	return f, ok
}

// Route recovers the packet type and direction of a record written by the
// transcoder from its framing byte and flags.
func (r Record) Route() (PacketType, Direction, bool) {
	if len(r.Data) == 0 {
		return "", "", false
	}
	var pt PacketType
	for p, b := range h4Types {
		if b == r.Data[0] {
			pt = p
		}
	}
	if pt == "" {
		return "", "", false
	}
	dir := HostToController
	if r.Received() {
		dir = ControllerToHost
	}
	if f, ok := Flags(pt, dir); !ok || f != r.Flags {
		return "", "", false
	}
	return pt, dir, true
}

// SkipReason says why a trace line produced no record.
type SkipReason string

const (
	ReasonTooFewFields  SkipReason = "too few fields"
	ReasonNoClock       SkipReason = "clock not bracketed"
	ReasonPacketType    SkipReason = "unknown packet type"
	ReasonDirection     SkipReason = "unknown direction"
	ReasonPayload       SkipReason = "payload byte not two hex digits"
	ReasonUnmappedRoute SkipReason = "no flags for packet type and direction"
)

// ErrInvalidLine matches every LineError.
var ErrInvalidLine = errors.New("invalid HCI trace line")

// LineError reports a line that fails the trace line filter.
type LineError struct {
	Reason SkipReason
}

func (e *LineError) Error() string {
	return ErrInvalidLine.Error() + ": " + string(e.Reason)
}

// Is makes errors.Is(err, ErrInvalidLine) match.
func (e *LineError) Is(target error) bool {
	return target == ErrInvalidLine
}

// Line is one valid HCI trace line, such as
//
//	[00:00:02.740] CMD => 03 0c 00
type Line struct {
	Clock     string
	Type      PacketType
	Direction Direction
	Payload   []byte
}

// Packet returns the framing byte followed by the payload.
func (l *Line) Packet() ([]byte, bool) {
	h4, ok := H4Type(l.Type)
	if !ok {
		return nil, false
	}
	pkt := make([]byte, 0, len(l.Payload)+1)
	pkt = append(pkt, h4)
	return append(pkt, l.Payload...), true
}

// ParseLine applies the trace line filter. The clock field is only checked
// for its brackets; ParseClock validates its contents.
func ParseLine(s string) (*Line, error) {
	fields := strings.Fields(s)
	if len(fields) < 4 {
		return nil, &LineError{Reason: ReasonTooFewFields}
	}

	clock := fields[0]
	if !strings.HasPrefix(clock, "[") || !strings.HasSuffix(clock, "]") {
		return nil, &LineError{Reason: ReasonNoClock}
	}

	pt := PacketType(fields[1])
	if _, ok := h4Types[pt]; !ok {
		return nil, &LineError{Reason: ReasonPacketType}
	}

	dir := Direction(fields[2])
	if dir != HostToController && dir != ControllerToHost {
		return nil, &LineError{Reason: ReasonDirection}
	}

	payload := make([]byte, 0, len(fields)-3)
	for _, tok := range fields[3:] {
		if len(tok) != 2 {
			return nil, &LineError{Reason: ReasonPayload}
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, &LineError{Reason: ReasonPayload}
		}
		payload = append(payload, b[0])
	}

	return &Line{
		Clock:     clock,
		Type:      pt,
		Direction: dir,
		Payload:   payload,
	}, nil
}
