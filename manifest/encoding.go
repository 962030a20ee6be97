package manifest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var encodings = map[string]encoding.Encoding{
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"shift-jis":    japanese.ShiftJIS,
	"sjis":         japanese.ShiftJIS,
}

// LookupEncoding returns the decoder for a script source charset. Empty
// and "utf-8" mean no conversion and return nil.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "utf-8" || n == "utf8" {
		return nil, nil
	}
	enc, ok := encodings[n]
	if !ok {
		return nil, fmt.Errorf("unknown source encoding %q", name)
	}
	return enc, nil
}

// DecodeSource converts raw script text to UTF-8.
func DecodeSource(raw []byte, name string) (string, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(raw), nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decoding %s source: %w", name, err)
	}
	return string(out), nil
}

// Location is a source position resolved for display.
type Location struct {
	Line, Col int    // 1-based
	Text      string // the whole line, decoded
}

// Locate resolves the byte offset pos of the raw source to a line and
// column. Offsets count raw bytes, so the column is in bytes of the
// original encoding.
func Locate(raw []byte, pos int32, encodingName string) (Location, error) {
	if pos < 0 || int(pos) > len(raw) {
		return Location{}, fmt.Errorf("position %d outside source of %d bytes", pos, len(raw))
	}
	start := bytes.LastIndexByte(raw[:pos], '\n') + 1
	end := bytes.IndexByte(raw[pos:], '\n')
	if end < 0 {
		end = len(raw)
	} else {
		end += int(pos)
	}
	text, err := DecodeSource(bytes.TrimRight(raw[start:end], "\r"), encodingName)
	if err != nil {
		return Location{}, err
	}
	return Location{
		Line: bytes.Count(raw[:pos], []byte{'\n'}) + 1,
		Col:  int(pos) - start + 1,
		Text: text,
	}, nil
}
