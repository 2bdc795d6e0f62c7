package main

import (
	"bytes"
	"testing"

	"pubgate/internal/change"
	"pubgate/internal/policy"
	"pubgate/internal/publish"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestColorRecord(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		rec    change.Record
		expect string
	}{
		{change.Record{Code: "AM", Path: "decks/Talk-v1.pptx"}, "AM  decks/Talk-v1.pptx  (added|modified)"},
		{change.Record{Code: "??", Path: "references/Guide.md"}, "??  references/Guide.md  (untracked)"},
		{change.Record{Code: "RM", Path: "b", OriginalPath: "a"}, "RM  a -> b  (modified|renamed)"},
		{change.Record{Code: " D", Path: "lexicon/term.md"}, " D  lexicon/term.md  (deleted)"},
		{change.Record{Code: "UU", Path: "x"}, "UU  x  (unmerged)"},
	}

	for _, tt := range tests {
		t.Run(tt.rec.Code, func(t *testing.T) {
			assert.Equal(t, tt.expect, colorRecord(tt.rec))
		})
	}
}

func TestPrintResult(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	printResult(&out, &publish.Result{
		Outcome: policy.OutcomePass,
		Records: []change.Record{
			{Code: "??", Path: "decks/Talk-v1.pptx"},
			{Code: " M", Path: "README.md"},
		},
	})
	assert.Contains(t, out.String(), "OK 2 change(s): 1 new, 1 modified")
	assert.Contains(t, out.String(), " M  README.md  (modified)")

	out.Reset()
	printResult(&out, &publish.Result{Outcome: policy.OutcomeNothingToDo})
	assert.Equal(t, "Nothing to publish (working tree clean).\n", out.String())
}
