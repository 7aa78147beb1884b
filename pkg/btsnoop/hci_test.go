package btsnoop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsTable(t *testing.T) {
	tests := []struct {
		packet PacketType
		dir    Direction
		want   uint32
		ok     bool
	}{
		{PacketCommand, HostToController, 0x02, true},
		{PacketEvent, ControllerToHost, 0x03, true},
		{PacketACL, HostToController, 0x00, true},
		{PacketACL, ControllerToHost, 0x01, true},
		{PacketCommand, ControllerToHost, 0, false},
		{PacketEvent, HostToController, 0, false},
	}

	for _, tt := range tests {
		got, ok := Flags(tt.packet, tt.dir)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.packet, tt.dir)
		assert.Equal(t, tt.want, got, "%s %s", tt.packet, tt.dir)
	}
}

func TestH4Table(t *testing.T) {
	tests := map[PacketType]byte{
		PacketCommand: 0x01,
		PacketACL:     0x02,
		PacketEvent:   0x04,
	}
	for pt, want := range tests {
		got, ok := H4Type(pt)
		require.True(t, ok, pt)
		assert.Equal(t, want, got, pt)
	}

	_, ok := H4Type("SCO")
	assert.False(t, ok)
}

func TestParseLine(t *testing.T) {
	line, err := ParseLine("  [00:00:02.740]\tCMD  =>  01 0A ff ")
	require.NoError(t, err)
	assert.Equal(t, "[00:00:02.740]", line.Clock)
	assert.Equal(t, PacketCommand, line.Type)
	assert.Equal(t, HostToController, line.Direction)
	assert.Equal(t, []byte{0x01, 0x0a, 0xff}, line.Payload)

	pkt, ok := line.Packet()
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x01, 0x0a, 0xff}, pkt)
}

func TestParseLine_Rejects(t *testing.T) {
	tests := []struct {
		line string
		want SkipReason
	}{
		{"[00:00:02.740] CMD =>", ReasonTooFewFields},
		{"(00:00:02.740) CMD => 01", ReasonNoClock},
		{"[00:00:02.740 CMD => 01", ReasonNoClock},
		{"[00:00:02.740] cmd => 01", ReasonPacketType},
		{"[00:00:02.740] CMD <> 01", ReasonDirection},
		{"[00:00:02.740] CMD => 1", ReasonPayload},
		{"[00:00:02.740] CMD => 0g", ReasonPayload},
		{"[00:00:02.740] CMD => 01 020", ReasonPayload},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLine)

			var le *LineError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.want, le.Reason)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		seconds uint64
		micros  uint64
	}{
		{"[00:00:02.740]", 2, 740},
		{"[01:02:03.000004]", 3723, 4},
		{"[23:59:59.999999]", 86399, 999999},
		{"[08:09:10.0]", 8*3600 + 9*60 + 10, 0},
		{"[100:00:00.1]", 360000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseClock(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.seconds, c.Seconds)
			assert.Equal(t, tt.micros, c.Micros)
		})
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, in := range []string{
		"[]",
		"[00:00:02]",
		"[00:02.740]",
		"00:00:02.740",
		"[00:00:02.740",
		"[0a:00:02.740]",
		"[00:00:02.740.1]",
		"[00:00:02.]",
		"[99999999999:00:00.0]",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseClock(in)
			assert.ErrorIs(t, err, ErrInvalidTimestamp)
		})
	}
}

func TestClockTimestamp(t *testing.T) {
	c := Clock{Seconds: 2, Micros: 740}
	assert.Equal(t, uint64(1_000_002_000_740)+EpochOffset, c.Timestamp(1_000_000))
}

func TestRecordRoute(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		packet PacketType
		dir    Direction
		ok     bool
	}{
		{"command", NewRecord(0x02, 0, []byte{0x01, 0x03, 0x0c, 0x00}), PacketCommand, HostToController, true},
		{"event", NewRecord(0x03, 0, []byte{0x04, 0x0e}), PacketEvent, ControllerToHost, true},
		{"acl out", NewRecord(0x00, 0, []byte{0x02, 0x20}), PacketACL, HostToController, true},
		{"acl in", NewRecord(0x01, 0, []byte{0x02, 0x20}), PacketACL, ControllerToHost, true},
		{"empty", NewRecord(0x02, 0, nil), "", "", false},
		{"unknown framing", NewRecord(0x02, 0, []byte{0x05}), "", "", false},
		{"flags disagree", NewRecord(0x00, 0, []byte{0x01}), "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, dir, ok := tt.rec.Route()
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.packet, pt)
			assert.Equal(t, tt.dir, dir)
		})
	}
}
