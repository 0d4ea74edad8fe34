// Package hexdump renders byte slices as a side-by-side hex and ASCII listing.
package hexdump

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const (
	// BytesPerLine is the number of payload bytes rendered on each line.
	BytesPerLine = 16
	// HexWidth is the fixed width of the hex column: 16 two-digit bytes
	// separated by single spaces.
	HexWidth = BytesPerLine*3 - 1
	// Separator sits between the hex and the ASCII columns.
	Separator = " | "
)

// ErrMalformedDump is returned by Parse when a line does not have the
// shape produced by Dump.
var ErrMalformedDump = errors.New("malformed hex dump")

const hexDigits = "0123456789abcdef"

// Dump returns the canonical hex+ASCII rendering of payload.
//
//	48 54 54 50 2f 31 2e 31 20 32 30 30 20 4f 4b 0d | HTTP/1.1.200.OK.
//
// Bytes 0x21 through 0x7e show as themselves in the ASCII column, anything
// else (space included) shows as '.'. Lines are joined with '\n' and the
// result has no trailing newline. An empty payload yields "".
func Dump(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}

	lines := (len(payload) + BytesPerLine - 1) / BytesPerLine
	var b strings.Builder
	b.Grow(lines * (HexWidth + len(Separator) + BytesPerLine + 1))

	for off := 0; off < len(payload); off += BytesPerLine {
		end := off + BytesPerLine
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[off:end]

		if off > 0 {
			b.WriteByte('\n')
		}

		written := 0
		for i, c := range chunk {
			if i > 0 {
				b.WriteByte(' ')
				written++
			}
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
			written += 2
		}
		for ; written < HexWidth; written++ {
			b.WriteByte(' ')
		}

		b.WriteString(Separator)
		for _, c := range chunk {
			if IsGraphic(c) {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
	}
	return b.String()
}

// IsGraphic reports whether c is a printable ASCII character other than
// space.
func IsGraphic(c byte) bool {
	return c >= 0x21 && c <= 0x7e
}

// Parse reads the hex column of a dump produced by Dump back into bytes.
func Parse(dump string) ([]byte, error) {
	if dump == "" {
		return nil, nil
	}

	var out []byte
	for n, line := range strings.Split(dump, "\n") {
		idx := strings.Index(line, Separator)
		if idx < 0 {
			return nil, errors.Wrapf(ErrMalformedDump, "line %d: missing separator", n+1)
		}
		for _, field := range strings.Fields(line[:idx]) {
			if len(field) != 2 {
				return nil, errors.Wrapf(ErrMalformedDump, "line %d: bad byte %q", n+1, field)
			}
			v, err := hex.DecodeString(field)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedDump, "line %d: %v", n+1, err)
			}
			out = append(out, v[0])
		}
	}
	return out, nil
}
