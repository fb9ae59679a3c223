// Package safety validates proposals against the policy kernel before they
// can enter consensus. All checks are pure: rejection never mutates the
// proposal, and the same proposal always yields the same verdict.
package safety

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/conclave/pkg/policy"
	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// Rule identifiers cited in rejection verdicts.
const (
	RuleForbiddenPattern = "forbidden_pattern"
	RuleMaxConfidence    = "max_confidence"
)

// Verdict is the outcome of validating one proposal.
type Verdict struct {
	Accepted bool
	Reason   string
	Rule     string
}

// Validator checks proposals against a kernel. Construct once per kernel;
// safe for concurrent use.
type Validator struct {
	kernel    *policy.Kernel
	forbidden []string
	rules     *RuleEngine
}

// NewValidator builds a validator, compiling any CEL rules the kernel
// carries. Forbidden patterns are normalized up front so matching cost is
// paid once.
func NewValidator(kernel *policy.Kernel) (*Validator, error) {
	if kernel == nil {
		return nil, fmt.Errorf("nil policy kernel")
	}

	patterns := kernel.ForbiddenPatterns()
	forbidden := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if folded := foldForMatch(p); folded != "" {
			forbidden = append(forbidden, folded)
		}
	}

	var rules *RuleEngine
	if kernelRules := kernel.Rules(); len(kernelRules) > 0 {
		var err error
		rules, err = NewRuleEngine(kernelRules)
		if err != nil {
			return nil, err
		}
	}

	return &Validator{
		kernel:    kernel,
		forbidden: forbidden,
		rules:     rules,
	}, nil
}

// Validate checks the proposal, in order: forbidden patterns, confidence
// cap, CEL rules. The first violation rejects; rules are fail-closed, so an
// evaluation error also rejects.
func (v *Validator) Validate(p *worker.Proposal) Verdict {
	if p == nil {
		return Verdict{Reason: "nil proposal", Rule: RuleForbiddenPattern}
	}

	content := foldForMatch(p.Content)
	for i, pattern := range v.forbidden {
		if strings.Contains(content, pattern) {
			return Verdict{
				Reason: fmt.Sprintf("forbidden pattern %q detected in proposal content", v.kernel.ForbiddenPatterns()[i]),
				Rule:   RuleForbiddenPattern,
			}
		}
	}

	if p.Confidence > v.kernel.MaxConfidence() {
		return Verdict{
			Reason: fmt.Sprintf("confidence %.3f exceeds maximum allowed %.3f", p.Confidence, v.kernel.MaxConfidence()),
			Rule:   RuleMaxConfidence,
		}
	}

	if v.rules != nil {
		ok, rule, err := v.rules.Evaluate(p)
		if err != nil {
			return Verdict{
				Reason: fmt.Sprintf("rule %s evaluation failed: %v", rule, err),
				Rule:   rule,
			}
		}
		if !ok {
			return Verdict{
				Reason: fmt.Sprintf("rejected by rule %s", rule),
				Rule:   rule,
			}
		}
	}

	return Verdict{Accepted: true, Reason: "pass"}
}

// foldForMatch prepares text for case-insensitive substring matching:
// NFKC normalization so compatibility-equivalent forms compare equal,
// then lowercasing.
func foldForMatch(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
