// internal/policy/types.go
package policy

import (
	"fmt"
	"strings"

	"pubgate/internal/change"
	apperr "pubgate/internal/errors"
)

// RuleID names a policy rule.
type RuleID string

const (
	RuleNoRenameDelete     RuleID = "no-rename-delete"
	RuleNoModifyPublished  RuleID = "no-modify-published"
	RuleVersionTagRequired RuleID = "version-tag-required"
)

func (id RuleID) String() string { return string(id) }

// Outcome is the result of a successful evaluation.
type Outcome string

const (
	OutcomePass        Outcome = "pass"
	OutcomeNothingToDo Outcome = "nothing-to-do"
	OutcomeViolation   Outcome = "violation"
)

// Options are the caller's explicit overrides.
type Options struct {
	// AllowModify permits edits to files already under a published dir.
	AllowModify bool
	// Force bypasses the version tag requirement.
	Force bool
}

// Violation aborts the operation with the rule's exit code.
type Violation struct {
	Rule        RuleID          `json:"rule"`
	Headline    string          `json:"headline"`
	Offenders   []change.Record `json:"offenders"`
	Remediation []string        `json:"remediation"`
	Code        int             `json:"code"`
}

func (v *Violation) Error() string {
	paths := make([]string, len(v.Offenders))
	for i, r := range v.Offenders {
		paths[i] = r.Path
	}
	return fmt.Sprintf("%s: %s", v.Headline, strings.Join(paths, ", "))
}

// AsError converts the violation into a typed process error.
func (v *Violation) AsError() *apperr.Error {
	e := apperr.Policy(v.Code, v.Error(), v)
	e.Err = v
	return e
}

// Rule is one ordered check. Check returns nil when the change set passes.
type Rule interface {
	ID() RuleID
	Check(records []change.Record) *Violation
}
