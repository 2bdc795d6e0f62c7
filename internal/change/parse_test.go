package change

import (
	"errors"
	"strings"
	"testing"

	apperr "pubgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func z(tokens ...string) []byte {
	return []byte(strings.Join(tokens, "\x00") + "\x00")
}

func TestParse(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		records, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, records)

		records, err = Parse([]byte("\x00\x00"))
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("RenamePair", func(t *testing.T) {
		records, err := Parse([]byte("R  old.txt\x00new.txt\x00"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, Record{Code: "R ", Path: "new.txt", OriginalPath: "old.txt"}, records[0])
	})

	t.Run("CopyPair", func(t *testing.T) {
		records, err := Parse(z("C  decks/a-v1.pptx", "decks/b-v1.pptx"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "decks/b-v1.pptx", records[0].Path)
		assert.Equal(t, "decks/a-v1.pptx", records[0].OriginalPath)
	})

	t.Run("PreservesOrder", func(t *testing.T) {
		raw := z(
			" M frameworks/Model.md",
			"R  a.txt", "b.txt",
			"?? decks/Talk-v1.pptx",
			"A  references/Guide.md",
			" D lexicon/old.md",
		)
		records, err := Parse(raw)
		require.NoError(t, err)

		var paths []string
		for _, r := range records {
			paths = append(paths, r.Path)
		}
		assert.Equal(t, []string{
			"frameworks/Model.md",
			"b.txt",
			"decks/Talk-v1.pptx",
			"references/Guide.md",
			"lexicon/old.md",
		}, paths)
	})

	t.Run("CountsLogicalRecords", func(t *testing.T) {
		tests := []struct {
			name   string
			raw    []byte
			expect int
		}{
			{"single", z("?? a"), 1},
			{"pairs counted once", z("R  a", "b", "C  c", "d"), 2},
			{"mixed", z(" M x", "R  a", "b", "?? y", "D  z"), 4},
			{"no trailing NUL", []byte(" M x\x00?? y"), 2},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				records, err := Parse(tt.raw)
				require.NoError(t, err)
				assert.Len(t, records, tt.expect)
			})
		}
	})

	t.Run("PathsWithSpacesAndNewlines", func(t *testing.T) {
		records, err := Parse(z("?? decks/My Talk\nDraft-v1.pptx"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "decks/My Talk\nDraft-v1.pptx", records[0].Path)
	})

	t.Run("InvalidUTF8IsReplaced", func(t *testing.T) {
		records, err := Parse([]byte("?? decks/bad\xff\xfename\x00"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "decks/bad��name", records[0].Path)
	})

	t.Run("InvalidUTF8InRenameKeepsBoundaries", func(t *testing.T) {
		records, err := Parse([]byte("R  \xffold\x00new\xfe\x00 M x\x00"))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "�old", records[0].OriginalPath)
		assert.Equal(t, "new�", records[0].Path)
		assert.Equal(t, "x", records[1].Path)
	})
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		code     int
		sentinel error
	}{
		{"too short", z(" M"), apperr.ExitUnparsableSnapshot, ErrUnparsableSnapshot},
		{"three bytes", z("?? "), apperr.ExitUnparsableSnapshot, ErrUnparsableSnapshot},
		{"missing separator", z("MMxfile"), apperr.ExitUnparsableSnapshot, ErrUnparsableSnapshot},
		{"bad record after good", z(" M ok", "garbage"), apperr.ExitUnparsableSnapshot, ErrUnparsableSnapshot},
		{"truncated rename", []byte("R  old.txt"), apperr.ExitTruncatedRename, ErrTruncatedRename},
		{"truncated rename, NUL-terminated", z("R  old.txt"), apperr.ExitTruncatedRename, ErrTruncatedRename},
		{"truncated copy after good record", z(" M ok", "C  decks/a-v1.pptx"), apperr.ExitTruncatedRename, ErrTruncatedRename},
		{"rename with empty new path", []byte("R  old.txt\x00\x00 M x\x00"), apperr.ExitTruncatedRename, ErrTruncatedRename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, records)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Equal(t, tt.code, apperr.ExitCode(err))
			assert.True(t, apperr.IsType(err, apperr.ErrorTypeMalformed))
		})
	}
}

func TestParseLines(t *testing.T) {
	records, err := ParseLines([]byte(" M frameworks/Model.md\n?? decks/Talk.pptx\r\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Code: " M", Path: "frameworks/Model.md"},
		{Code: "??", Path: "decks/Talk.pptx"},
	}, records)

	_, err = ParseLines([]byte("bogus\n"))
	assert.ErrorIs(t, err, ErrUnparsableSnapshot)

	for _, line := range []string{"R  old.txt -> new.txt\n", "C  decks/a-v1.pptx\n"} {
		records, err := ParseLines([]byte(line))
		assert.Nil(t, records)
		assert.ErrorIs(t, err, ErrUnparsableSnapshot, line)
		assert.Equal(t, apperr.ExitUnparsableSnapshot, apperr.ExitCode(err))
	}
}

func TestParseFormat(t *testing.T) {
	records, err := ParseFormat(FormatLines, []byte("?? a\n"))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = ParseFormat("", z("?? a", "?? b"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = ParseFormat("json", nil)
	assert.Error(t, err)
}
