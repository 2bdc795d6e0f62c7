// internal/policy/engine.go
package policy

import (
	"fmt"
	"regexp"

	"pubgate/internal/change"
	"pubgate/internal/config"

	"go.uber.org/zap"
)

// Engine evaluates the ordered rule list over a change set.
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine builds the three rules in their fixed order:
// rename/delete, modify-published, version tag.
func NewEngine(cfg *config.Config, opts Options, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pattern, err := regexp.Compile(cfg.VersionPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling version pattern: %w", err)
	}

	published := cfg.Published()
	return &Engine{
		rules: []Rule{
			noRenameDelete{},
			noModifyPublished{published: published, allowModify: opts.AllowModify},
			versionTagRequired{
				published:   published,
				pattern:     pattern,
				markdownExt: cfg.MarkdownExt,
				force:       opts.Force,
			},
		},
		logger: logger,
	}, nil
}

// Rules returns the rule IDs in evaluation order.
func (e *Engine) Rules() []RuleID {
	ids := make([]RuleID, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID()
	}
	return ids
}

// Evaluate runs the rules in order and stops at the first violation.
// An empty change set short-circuits with OutcomeNothingToDo.
func (e *Engine) Evaluate(records []change.Record) (Outcome, *Violation) {
	if len(records) == 0 {
		e.logger.Debug("empty change set")
		return OutcomeNothingToDo, nil
	}

	for _, rule := range e.rules {
		if v := rule.Check(records); v != nil {
			e.logger.Info("policy violation",
				zap.String("rule", string(v.Rule)),
				zap.Int("offenders", len(v.Offenders)),
				zap.Int("code", v.Code))
			return OutcomeViolation, v
		}
		e.logger.Debug("rule passed", zap.String("rule", string(rule.ID())))
	}

	return OutcomePass, nil
}
