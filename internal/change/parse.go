// internal/change/parse.go
package change

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	apperr "pubgate/internal/errors"
)

var (
	ErrUnparsableSnapshot = errors.New("unable to parse git status output safely")
	ErrTruncatedRename    = errors.New("rename detected but missing new path")
)

// Parse decodes `git status --porcelain=v1 -z` output.
//
// Each record is "XY path\0". Renames and copies carry a second token:
// the path in the first token is the original and the next token is the
// new path. Empty tokens are skipped, except where a rename expects its
// new path: the stream is then truncated.
func Parse(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	tokens := bytes.Split(raw, []byte{0})
	records := make([]Record, 0, len(tokens))

	for i := 0; i < len(tokens); {
		entry := tokens[i]
		i++
		if len(entry) == 0 {
			continue
		}

		code, path, err := splitEntry(entry)
		if err != nil {
			return nil, apperr.Malformed(apperr.ExitUnparsableSnapshot,
				fmt.Sprintf("record %d: %q", len(records)+1, truncate(entry, 32)), err)
		}

		if !isRenameOrCopy(code) {
			records = append(records, Record{Code: code, Path: path})
			continue
		}

		if i >= len(tokens) || len(tokens[i]) == 0 {
			return nil, apperr.Malformed(apperr.ExitTruncatedRename,
				fmt.Sprintf("record %d: %s %s", len(records)+1, code, path), ErrTruncatedRename)
		}
		newPath := decode(tokens[i])
		i++
		records = append(records, Record{Code: code, Path: newPath, OriginalPath: path})
	}

	return records, nil
}

// ParseLines decodes the newline-delimited porcelain form. It cannot
// represent rename pairs or paths containing newlines, so rename and
// copy lines are rejected.
func ParseLines(raw []byte) ([]Record, error) {
	var records []Record
	for n, line := range bytes.Split(raw, []byte{'\n'}) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		code, path, err := splitEntry(line)
		if err != nil {
			return nil, apperr.Malformed(apperr.ExitUnparsableSnapshot,
				fmt.Sprintf("line %d: %q", n+1, truncate(line, 32)), err)
		}
		if isRenameOrCopy(code) {
			return nil, apperr.Malformed(apperr.ExitUnparsableSnapshot,
				fmt.Sprintf("line %d: %s %s: rename pairs need the NUL-delimited form", n+1, code, path),
				ErrUnparsableSnapshot)
		}
		records = append(records, Record{Code: code, Path: path})
	}
	return records, nil
}

func splitEntry(entry []byte) (string, string, error) {
	if len(entry) < 4 || entry[2] != ' ' {
		return "", "", ErrUnparsableSnapshot
	}
	return decode(entry[:2]), decode(entry[3:]), nil
}

// decode converts b to a string, replacing every byte that is not part
// of a valid UTF-8 sequence with U+FFFD.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb bytes.Buffer
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String()
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// Format selects the snapshot encoding.
type Format string

const (
	FormatNUL   Format = "z"
	FormatLines Format = "lines"
)

// ParseFormat decodes raw in the given format.
func ParseFormat(format Format, raw []byte) ([]Record, error) {
	switch format {
	case FormatNUL, "":
		return Parse(raw)
	case FormatLines:
		return ParseLines(raw)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}
