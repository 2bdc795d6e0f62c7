package change

import "strings"

func isRenameOrCopy(code string) bool {
	return len(code) > 0 && (code[0] == StatusRenamed || code[0] == StatusCopied)
}

// Classify folds a two-character status code into a Kind bitset.
// Rename/copy is only read from the index slot; every other flag is
// taken from either slot.
func Classify(code string) Kind {
	var k Kind
	if code == UntrackedCode {
		return KindUntracked
	}
	if code == "!!" {
		return KindIgnored
	}
	if isRenameOrCopy(code) {
		k |= KindRenamedOrCopied
	}
	if strings.IndexByte(code, StatusAdded) >= 0 {
		k |= KindAdded
	}
	if strings.IndexByte(code, StatusModified) >= 0 {
		k |= KindModified
	}
	if strings.IndexByte(code, StatusDeleted) >= 0 {
		k |= KindDeleted
	}
	if strings.IndexByte(code, StatusUnmerged) >= 0 {
		k |= KindUnmerged
	}
	return k
}

// Summary counts records per predicate. A record may be counted
// under more than one field.
type Summary struct {
	Total     int `json:"total"`
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Renamed   int `json:"renamed"`
	Untracked int `json:"untracked"`
}

// Summarize returns per-predicate counts for records.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		if r.IsAddedOrNew() {
			s.Added++
		}
		if r.IsModified() {
			s.Modified++
		}
		if r.IsDeleted() {
			s.Deleted++
		}
		if r.IsRenameOrCopy() {
			s.Renamed++
		}
		if r.Code == UntrackedCode {
			s.Untracked++
		}
	}
	return s
}
