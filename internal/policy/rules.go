package policy

import (
	"path"
	"regexp"
	"strings"

	"pubgate/internal/change"
	"pubgate/internal/config"
	apperr "pubgate/internal/errors"
)

// noRenameDelete rejects any rename, copy or delete. History of a
// public repository only grows.
type noRenameDelete struct{}

func (noRenameDelete) ID() RuleID { return RuleNoRenameDelete }

func (noRenameDelete) Check(records []change.Record) *Violation {
	var offenders []change.Record
	for _, r := range records {
		if r.IsRenameOrCopy() || r.IsDeleted() {
			offenders = append(offenders, r)
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	return &Violation{
		Rule:      RuleNoRenameDelete,
		Headline:  "renames/deletes detected (public repo safety rule)",
		Offenders: offenders,
		Remediation: []string{
			"Fix: add a new versioned file instead of renaming/deleting.",
		},
		Code: apperr.ExitRenameOrDelete,
	}
}

type noModifyPublished struct {
	published   config.PublishedSet
	allowModify bool
}

func (noModifyPublished) ID() RuleID { return RuleNoModifyPublished }

func (r noModifyPublished) Check(records []change.Record) *Violation {
	if r.allowModify {
		return nil
	}
	var offenders []change.Record
	for _, rec := range records {
		if rec.IsModified() && r.published.Contains(rec.Path) {
			offenders = append(offenders, rec)
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	return &Violation{
		Rule:      RuleNoModifyPublished,
		Headline:  "modifications to already-published assets detected",
		Offenders: offenders,
		Remediation: []string{
			"Fix: create a new file version (e.g., -v2) instead of editing in place.",
			"Or run with --allow-modify if you truly intend to revise a published artifact.",
		},
		Code: apperr.ExitModifyPublished,
	}
}

type versionTagRequired struct {
	published   config.PublishedSet
	pattern     *regexp.Regexp
	markdownExt string
	force       bool
}

func (versionTagRequired) ID() RuleID { return RuleVersionTagRequired }

func (r versionTagRequired) Check(records []change.Record) *Violation {
	if r.force {
		return nil
	}
	var offenders []change.Record
	for _, rec := range records {
		if !rec.IsAddedOrNew() || !r.published.Contains(rec.Path) {
			continue
		}
		if !r.Tagged(rec.Path) {
			offenders = append(offenders, rec)
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	return &Violation{
		Rule:      RuleVersionTagRequired,
		Headline:  "new published files missing version tag like -v1, -v2, etc.",
		Offenders: offenders,
		Remediation: []string{
			"Fix: rename file to include -v1 (example: My-Deck-v1.pptx)",
			"Or run with --force to bypass (not recommended).",
		},
		Code: apperr.ExitMissingVersionTag,
	}
}

// Tagged reports whether the basename of p is exempt (markdown) or
// carries a version tag.
func (r versionTagRequired) Tagged(p string) bool {
	name := path.Base(p)
	if strings.HasSuffix(strings.ToLower(name), strings.ToLower(r.markdownExt)) {
		return true
	}
	return r.pattern.MatchString(name)
}
