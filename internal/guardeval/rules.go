package guardeval

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/mlldlang/guardcore/internal/guarderrors"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// evaluateBlock walks block's rules in order against env, which is mutated
// in place by let-bindings so later rules (in the same block) can reference
// earlier ones. The first non-let rule whose condition matches (or that is
// IsWildcard) decides the guard's action; an empty block, or one where no
// rule matches, resolves to an implicit allow.
func evaluateBlock(guardName string, timing secmodel.Timing, block secmodel.Block, env map[string]any) (secmodel.Action, error) {
	for _, rule := range block.Rules {
		if rule.IsLetBinding() {
			val, err := expr.Eval(rule.Condition, env)
			if err != nil {
				return secmodel.Action{}, &guarderrors.WhenExpressionError{
					Guard: guardName, Timing: timing,
					Message: fmt.Sprintf("let %s: %s", rule.Let, err),
				}
			}
			env[rule.Let] = val
			continue
		}

		matched := rule.IsWildcard
		if !matched {
			out, err := expr.Eval(rule.Condition, env)
			if err != nil {
				return secmodel.Action{}, &guarderrors.WhenExpressionError{
					Guard: guardName, Timing: timing,
					Message: fmt.Sprintf("condition %q: %s", rule.Condition, err),
				}
			}
			b, ok := out.(bool)
			if !ok {
				return secmodel.Action{}, &guarderrors.WhenExpressionError{
					Guard: guardName, Timing: timing,
					Message: fmt.Sprintf("condition %q did not evaluate to a boolean", rule.Condition),
				}
			}
			matched = b
		}

		if matched {
			if rule.Action.Decision == secmodel.DecisionEnv && timing != secmodel.TimingBefore {
				return secmodel.Action{}, &guarderrors.WhenExpressionError{
					Guard: guardName, Timing: timing,
					Message: "env decision is only valid for before-timed guards",
				}
			}
			return rule.Action, nil
		}
	}
	return secmodel.Action{Decision: secmodel.DecisionAllow}, nil
}

// evalReplacement evaluates an action's replacement value expression
// against env, returning the raw (unwrapped) result.
func evalReplacement(expression string, env map[string]any) (any, error) {
	return expr.Eval(expression, env)
}
