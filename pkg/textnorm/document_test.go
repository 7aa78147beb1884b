package textnorm

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeUTF16(s string, order binary.AppendByteOrder) []byte {
	out := order.AppendUint16(nil, 0xFEFF)
	for _, r := range s {
		out = order.AppendUint16(out, uint16(r))
	}
	return out
}

func encodeUTF32(s string, order binary.AppendByteOrder) []byte {
	out := order.AppendUint32(nil, 0xFEFF)
	for _, r := range s {
		out = order.AppendUint32(out, uint32(r))
	}
	return out
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"utf-8 bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, EncodingUTF8},
		{"utf-32le bom", []byte{0xFF, 0xFE, 0x00, 0x00}, EncodingUTF32LE},
		{"utf-32be bom", []byte{0x00, 0x00, 0xFE, 0xFF}, EncodingUTF32BE},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'a', 0x00}, EncodingUTF16LE},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0x00, 'a'}, EncodingUTF16BE},
		{"plain ascii", []byte("ERR: x"), EncodingUnknown},
		{"short file", []byte{'a'}, EncodingUnknown},
		{"empty", nil, EncodingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEncoding(tt.data))
		})
	}
}

func TestDecode_Encodings(t *testing.T) {
	text := "ERR: 1\r\nEPC: 2\n"
	want := []string{"ERR: 1", "EPC: 2"}

	tests := []struct {
		name string
		data []byte
		enc  Encoding
	}{
		{"utf-8 without bom", []byte(text), EncodingUnknown},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingUTF8},
		{"utf-16le", encodeUTF16(text, binary.LittleEndian), EncodingUTF16LE},
		{"utf-16be", encodeUTF16(text, binary.BigEndian), EncodingUTF16BE},
		{"utf-32le", encodeUTF32(text, binary.LittleEndian), EncodingUTF32LE},
		{"utf-32be", encodeUTF32(text, binary.BigEndian), EncodingUTF32BE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.enc, doc.Encoding)
			assert.Equal(t, want, slices.Collect(doc.Lines()))
		})
	}
}

func TestLines_DropsNonASCII(t *testing.T) {
	doc := FromString("héllo wörld\n温度: 25\n")
	assert.Equal(t, []string{"hllo wrld", ": 25"}, slices.Collect(doc.Lines()))
}

func TestLines_Splitting(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"single newline", "\n", []string{""}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"blank line kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slices.Collect(FromString(tt.text).Lines()))
		})
	}
}

func TestLines_EarlyStop(t *testing.T) {
	doc := FromString("one\ntwo\nthree\nfour\n")

	var seen []string
	for line := range doc.Lines() {
		seen = append(seen, line)
		if line == "two" {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, seen)

	// A fresh iteration starts again from the first line.
	assert.Equal(t, []string{"one", "two", "three", "four"}, slices.Collect(doc.Lines()))
}

func TestNumberedLines(t *testing.T) {
	doc := FromString("a\nb\nc")

	var nums []int
	for n := range doc.NumberedLines() {
		nums = append(nums, n)
	}
	assert.Equal(t, []int{1, 2, 3}, nums)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.log")
	require.NoError(t, os.WriteFile(path, encodeUTF16("WDT_RST: 1\n", binary.LittleEndian), 0o644))

	doc, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, EncodingUTF16LE, doc.Encoding)
	assert.Equal(t, []string{"WDT_RST: 1"}, slices.Collect(doc.Lines()))
}

func TestOpen_FileNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}

func TestASCIIOnly(t *testing.T) {
	assert.Equal(t, "abc", ASCIIOnly("abc"))
	assert.Equal(t, "ac", ASCIIOnly("aéc"))
	assert.Equal(t, "ab", ASCIIOnly("a\xffb"))
}
