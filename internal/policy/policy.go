// Package policy implements capability/security-descriptor resolution: the
// declarative rule matrices that decide whether an exercised capability is
// allowed, denied, or needs human review, evaluated with expr-lang/expr.
//
// The dispatch shape below — an ordered rule list evaluated top to bottom,
// the first match deciding the outcome, a default fallback when nothing
// matches — mirrors this pack's own evaluate/evaluateOne guardrail
// dispatch; only the rule language changed, from Go-coded per-kind
// functions to data-driven expr-lang conditions.
package policy

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Decision is a closed enum of policy resolution outcomes.
type Decision string

const (
	DecisionAllow       Decision = "allow"
	DecisionDeny        Decision = "deny"
	DecisionNeedsReview Decision = "needs-review"
)

var validDecisions = map[Decision]bool{DecisionAllow: true, DecisionDeny: true, DecisionNeedsReview: true}

// Valid reports whether d is a recognized decision.
func (d Decision) Valid() bool {
	return validDecisions[d]
}

// Rule is one row of a policy matrix: an optional capability-kind filter
// plus an expr-lang boolean condition, deciding Decision when both match.
// CapabilityKind == "" or "*" matches every capability kind.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Rule struct {
	CapabilityKind string
	Condition      string
	Decision       Decision
	Reason         string
}

// Matrix is an ordered rule list evaluated top to bottom; the first
// matching rule decides the resolution. A matrix with no matching rule
// resolves to Default (DecisionDeny if unset — policy resolution fails
// closed).
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Matrix struct {
	Rules   []Rule
	Default Decision
}

// Result is the outcome of resolving a capability against a matrix.
type Result struct {
	Decision Decision
	Reasons  []string
}

// Resolve evaluates m's rules in order against capability and descriptor,
// returning the first matching rule's decision, or m.Default (DecisionDeny
// if unset) when nothing matches.
func Resolve(capability secmodel.Capability, descriptor secmodel.SecurityDescriptor, m Matrix) (Result, error) {
	env := buildEnv(capability, descriptor)

	for _, rule := range m.Rules {
		if !kindMatches(rule.CapabilityKind, capability.Kind) {
			continue
		}
		matched, err := evalCondition(rule.Condition, env)
		if err != nil {
			return Result{}, fmt.Errorf("policy: evaluating rule for capability %q: %w", capability.Kind, err)
		}
		if matched {
			return Result{Decision: rule.Decision, Reasons: []string{rule.Reason}}, nil
		}
	}

	def := m.Default
	if def == "" {
		def = DecisionDeny
	}
	return Result{Decision: def, Reasons: []string{"no policy rule matched; failing closed"}}, nil
}

func kindMatches(ruleKind, capabilityKind string) bool {
	return ruleKind == "" || ruleKind == "*" || ruleKind == capabilityKind
}

func evalCondition(condition string, env map[string]any) (bool, error) {
	if condition == "" {
		return true, nil
	}
	out, err := expr.Eval(condition, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a boolean", condition)
	}
	return b, nil
}

func buildEnv(capability secmodel.Capability, descriptor secmodel.SecurityDescriptor) map[string]any {
	return map[string]any{
		"capabilityKind":      capability.Kind,
		"capabilityOperation": capability.Operation,
		"labels":              descriptor.Labels,
		"taint":               descriptor.Taint,
		"sources":             descriptor.Sources,
		"policy":              descriptor.PolicyContext,
		"hasLabel": func(label string) bool {
			for _, l := range descriptor.Labels {
				if l == label {
					return true
				}
			}
			return false
		},
		"hasTaint": func(tag string) bool {
			for _, t := range descriptor.Taint {
				if t == tag {
					return true
				}
			}
			return false
		},
	}
}
