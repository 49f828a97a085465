// Package guardeval is the guard evaluation engine: it selects the guards
// applicable to an operation's inputs and outputs, builds the environment a
// guard script runs against, evaluates each guard's rule block, and
// aggregates the resulting decisions into a single allow/deny/retry
// outcome. GuardPreHook and GuardPostHook wrap this engine and register it
// into an internal/hooks.Manager.
package guardeval

import (
	"strings"

	"github.com/mlldlang/guardcore/internal/guarderrors"
	"github.com/mlldlang/guardcore/internal/guardregistry"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Selection is the guard set applicable to one operation at one timing:
// perInput guards keyed by input name, plus the perOperation guards that
// apply to the whole operation (from operation-key lookup and the
// broad-label sweep across every input's labels).
type Selection struct {
	PerInput     map[string][]secmodel.GuardDefinition
	PerOperation []secmodel.GuardDefinition
}

// Empty reports whether nothing applies — either no guard matched, or the
// call's override disabled every guard.
func (s Selection) Empty() bool {
	if len(s.PerOperation) > 0 {
		return false
	}
	for _, defs := range s.PerInput {
		if len(defs) > 0 {
			return false
		}
	}
	return true
}

// inputLabels is whatever this package needs from an input to select and
// evaluate guards against it — kept minimal so callers don't have to import
// internal/variable just to build a Selection.
type inputLabels struct {
	name   string
	labels []string
}

// validateOverride enforces the `with` clause's syntax rules: only and
// except are mutually exclusive, and every named guard must carry the `@`
// prefix (stripped here for later name comparison).
func validateOverride(o secmodel.GuardOverride) error {
	if o.HasOnly() && o.HasExcept() {
		return &guarderrors.InterpreterError{
			Code:    guarderrors.InvalidOverrideConfig,
			Message: "guard override cannot specify both only and except",
		}
	}
	for _, n := range o.Only {
		if !strings.HasPrefix(n, "@") {
			return &guarderrors.InterpreterError{
				Code:    guarderrors.InvalidOverrideConfig,
				Message: "guard override 'only' entries must be @-prefixed names, got " + n,
			}
		}
	}
	for _, n := range o.Except {
		if !strings.HasPrefix(n, "@") {
			return &guarderrors.InterpreterError{
				Code:    guarderrors.InvalidOverrideConfig,
				Message: "guard override 'except' entries must be @-prefixed names, got " + n,
			}
		}
	}
	return nil
}

func namesSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[strings.TrimPrefix(n, "@")] = true
	}
	return out
}

// applyOverride filters defs per the call's `with` clause.
func applyOverride(defs []secmodel.GuardDefinition, o secmodel.GuardOverride) []secmodel.GuardDefinition {
	if o.Disable {
		return nil
	}
	if o.HasOnly() {
		only := namesSet(o.Only)
		var out []secmodel.GuardDefinition
		for _, d := range defs {
			if only[d.Name] {
				out = append(out, d)
			}
		}
		return out
	}
	if o.HasExcept() {
		except := namesSet(o.Except)
		var out []secmodel.GuardDefinition
		for _, d := range defs {
			if !except[d.Name] {
				out = append(out, d)
			}
		}
		return out
	}
	return defs
}

func dedupeByID(lists ...[]secmodel.GuardDefinition) []secmodel.GuardDefinition {
	seen := make(map[string]bool)
	var out []secmodel.GuardDefinition
	for _, list := range lists {
		for _, d := range list {
			if !seen[d.ID] {
				seen[d.ID] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// Select builds the guard Selection for op/inputs at the given timing,
// applying the call's override clause. Disabled-by-override guards never
// appear in the result.
func Select(reg *guardregistry.Registry, op secmodel.OperationContext, inputs []inputLabels, timing secmodel.Timing, override secmodel.GuardOverride) (Selection, error) {
	if err := validateOverride(override); err != nil {
		return Selection{}, err
	}

	sel := Selection{PerInput: make(map[string][]secmodel.GuardDefinition)}
	if override.Disable {
		return sel, nil
	}

	var allLabels []string
	seenLabel := make(map[string]bool)
	for _, in := range inputs {
		defs := applyOverride(reg.GetDataGuardsForTiming(in.labels, timing), override)
		if len(defs) > 0 {
			sel.PerInput[in.name] = defs
		}
		for _, l := range in.labels {
			if !seenLabel[l] {
				seenLabel[l] = true
				allLabels = append(allLabels, l)
			}
		}
	}

	byKey := reg.GetOperationGuardsForTiming(op, timing)
	broad := reg.GetBroadOperationGuardsForTiming(allLabels, timing)
	sel.PerOperation = applyOverride(dedupeByID(byKey, broad), override)

	return sel, nil
}

// RejectStreamingAfter enforces that a streaming operation never carries an
// applicable after-timed guard: such a combination cannot observe output
// before it has already been streamed to the caller.
func RejectStreamingAfter(op secmodel.OperationContext, sel Selection, timing secmodel.Timing) error {
	if timing != secmodel.TimingAfter || !op.Streaming() || sel.Empty() {
		return nil
	}
	return &guarderrors.InterpreterError{
		Code: guarderrors.StreamingAfterGuard,
		Message: "operation is streaming and has an applicable after-timed guard; " +
			"remove the after guard or disable streaming for this call",
	}
}
