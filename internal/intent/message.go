// internal/intent/message.go
package intent

import (
	"fmt"
	"strings"
	"time"

	"pubgate/internal/change"
)

// Separator joins the summary clauses.
const Separator = " · "

// DateLayout is appended to synthesized messages.
const DateLayout = "2006-01-02"

// BuildMessage returns custom unchanged when it is non-empty. Otherwise
// it summarizes additions and modifications in records, dated with now.
func BuildMessage(records []change.Record, custom string, now time.Time) string {
	if custom != "" {
		return custom
	}

	var added, modified int
	for _, r := range records {
		if r.IsAddedOrNew() {
			added++
		}
		if r.IsModified() {
			modified++
		}
	}

	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("Publish %d asset(s)", added))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("Update %d file(s)", modified))
	}
	if len(parts) == 0 {
		parts = append(parts, "Update repository content")
	}

	return strings.Join(parts, Separator) + " (" + now.Format(DateLayout) + ")"
}
