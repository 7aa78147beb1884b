// Package textnorm decodes capture files into ASCII-only log lines.
//
// Capture tools emit text in whatever encoding the host console used, so a
// file is classified by its byte-order mark, decoded as a whole and then
// exposed as a lazy sequence of lines with every non-ASCII character removed.
package textnorm

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// ErrDecode is returned when the file content cannot be decoded with the
// encoding selected from its byte-order mark.
var ErrDecode = errors.New("decoding capture text")

// Encoding identifies the text encoding of a capture file.
type Encoding int

const (
	// EncodingUnknown means no byte-order mark was found; the content is
	// decoded as UTF-8.
	EncodingUnknown Encoding = iota
	EncodingUTF8
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingUTF32LE
	EncodingUTF32BE
)

// String returns the conventional label for the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF16LE:
		return "utf-16le"
	case EncodingUTF16BE:
		return "utf-16be"
	case EncodingUTF32LE:
		return "utf-32le"
	case EncodingUTF32BE:
		return "utf-32be"
	default:
		return "unknown"
	}
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
	bomUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding classifies data by the byte-order mark in its first four
// bytes. The UTF-32LE mark is checked before UTF-16LE since it starts with
// the same two bytes.
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8
	case bytes.HasPrefix(data, bomUTF32LE):
		return EncodingUTF32LE
	case bytes.HasPrefix(data, bomUTF32BE):
		return EncodingUTF32BE
	case bytes.HasPrefix(data, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return EncodingUTF16BE
	default:
		return EncodingUnknown
	}
}

// decoderFor returns a decoder that also strips the byte-order mark.
func decoderFor(enc Encoding) *encoding.Decoder {
	switch enc {
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	case EncodingUTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder()
	case EncodingUTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewDecoder()
	default:
		return unicode.UTF8BOM.NewDecoder()
	}
}

func decode(data []byte, enc Encoding) (string, error) {
	out, _, err := transform.Bytes(decoderFor(enc), data)
	if err != nil {
		return "", fmt.Errorf("%w as %s: %v", ErrDecode, enc, err)
	}
	return string(out), nil
}
