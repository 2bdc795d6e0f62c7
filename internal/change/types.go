// internal/change/types.go
package change

import "strings"

// Status characters as emitted by `git status --porcelain=v1`.
const (
	StatusAdded     byte = 'A'
	StatusModified  byte = 'M'
	StatusDeleted   byte = 'D'
	StatusRenamed   byte = 'R'
	StatusCopied    byte = 'C'
	StatusUnmerged  byte = 'U'
	StatusUntracked byte = '?'
	StatusIgnored   byte = '!'
)

// UntrackedCode is the whole-code marker for untracked files.
const UntrackedCode = "??"

// Record is a single change from a status snapshot.
// OriginalPath is only set for renames and copies.
type Record struct {
	Code         string `json:"code"`
	Path         string `json:"path"`
	OriginalPath string `json:"original_path,omitempty"`
}

// Kind is the union of flags carried by a two-character status code.
// Index and worktree slots contribute independently, so several
// flags can be set for one record.
type Kind uint8

const (
	KindAdded Kind = 1 << iota
	KindModified
	KindDeleted
	KindRenamedOrCopied
	KindUntracked
	KindUnmerged
	KindIgnored
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{KindAdded, "added"},
	{KindModified, "modified"},
	{KindDeleted, "deleted"},
	{KindRenamedOrCopied, "renamed"},
	{KindUntracked, "untracked"},
	{KindUnmerged, "unmerged"},
	{KindIgnored, "ignored"},
}

// Has reports whether every flag in other is set.
func (k Kind) Has(other Kind) bool {
	return k&other == other && other != 0
}

func (k Kind) String() string {
	if k == 0 {
		return "unknown"
	}
	var names []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			names = append(names, kn.name)
		}
	}
	return strings.Join(names, "|")
}

// Kind returns the classification of the record's status code.
func (r Record) Kind() Kind {
	return Classify(r.Code)
}

// IsRenameOrCopy reports whether the index slot is R or C.
func (r Record) IsRenameOrCopy() bool {
	return isRenameOrCopy(r.Code)
}

// IsDeleted reports whether either slot is D.
func (r Record) IsDeleted() bool {
	return strings.IndexByte(r.Code, StatusDeleted) >= 0
}

// IsModified reports whether either slot is M.
func (r Record) IsModified() bool {
	return strings.IndexByte(r.Code, StatusModified) >= 0
}

// IsAddedOrNew reports whether either slot is A or the file is untracked.
func (r Record) IsAddedOrNew() bool {
	return strings.IndexByte(r.Code, StatusAdded) >= 0 || r.Code == UntrackedCode
}

// String renders the record the way the status line reads,
// with "old -> new" for renames and copies.
func (r Record) String() string {
	if r.IsRenameOrCopy() {
		return r.Code + "  " + r.OriginalPath + " -> " + r.Path
	}
	return r.Code + "  " + r.Path
}
