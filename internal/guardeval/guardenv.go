package guardeval

import (
	"fmt"

	"github.com/mlldlang/guardcore/internal/retry"
	"github.com/mlldlang/guardcore/internal/value"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

const previewLimit = 240

// buildSnapshot assembles the ambient GuardContextSnapshot exposed to a
// guard script during one evaluation, pulling attempt/try/max/hint-history
// from the retry coordinator's current bookkeeping for this key.
func buildSnapshot(def secmodel.GuardDefinition, scope secmodel.GuardScope, scopeVariable string, op secmodel.OperationContext, timing secmodel.Timing, input, output *secmodel.StructuredValue, rc *retry.Coordinator, traceID string) secmodel.GuardContextSnapshot {
	attempt, max := rc.Peek(operationKey(op), scope, scopeVariable)
	if attempt == 0 {
		attempt = 1
	}

	snap := secmodel.GuardContextSnapshot{
		Name:         def.Name,
		Attempt:      attempt,
		Try:          attempt,
		Tries:        []int{attempt},
		Max:          max,
		InputPreview: preview(input),
		Timing:       timing,
		TraceID:      traceID,
	}
	if input != nil {
		snap.Input = input.Data
		snap.Labels = input.Ctx().Labels
		snap.Sources = input.Ctx().Sources
	}
	if output != nil {
		snap.Output = output.Data
		snap.OutputPreview = preview(output)
	}
	return snap
}

func preview(v *secmodel.StructuredValue) string {
	if v == nil {
		return ""
	}
	text := value.AsText(v)
	if len(text) <= previewLimit {
		return text
	}
	return text[:previewLimit] + "…"
}

// buildEnv constructs the expr-lang environment a single guard's rule block
// evaluates against: the reserved input/output variables, the ambient ctx
// tree, and the read-only helper functions the guard script may call.
// Helpers are plain closures in the map, the same shape internal/policy
// uses for its rule environment, rather than a second expr.Function
// registration mechanism for the same effect.
func buildEnv(def secmodel.GuardDefinition, op secmodel.OperationContext, timing secmodel.Timing, snap secmodel.GuardContextSnapshot, input, output *secmodel.StructuredValue) map[string]any {
	env := map[string]any{
		"ctx": map[string]any{
			"op": map[string]any{
				"type":    op.Type,
				"subtype": op.Subtype,
				"name":    op.Name,
			},
			"guard": map[string]any{
				"name":    def.Name,
				"attempt": snap.Attempt,
				"tries":   snap.Tries,
				"max":     snap.Max,
			},
			"labels":  snap.Labels,
			"sources": snap.Sources,
		},
		"opIs": func(key string) bool {
			return op.Type == key || op.Subtype == key
		},
		"opHas": func(label string) bool {
			return op.HasLabel(label)
		},
		"opHasAny": func(labels []string) bool {
			for _, l := range labels {
				if op.HasLabel(l) {
					return true
				}
			}
			return false
		},
		"opHasAll": func(labels []string) bool {
			for _, l := range labels {
				if !op.HasLabel(l) {
					return false
				}
			}
			return true
		},
		"inputHas": func(label string) bool {
			for _, l := range snap.Labels {
				if l == label {
					return true
				}
			}
			return false
		},
		"prefixWith": func(label string, v any) string {
			return fmt.Sprintf("%s:%v", label, v)
		},
		"tagValue": func(forTiming string, v any, fallback ...any) any {
			if secmodel.Timing(forTiming) == timing {
				return v
			}
			if len(fallback) > 0 {
				return fallback[0]
			}
			return v
		},
	}

	if input != nil {
		env["input"] = input.Data
	}
	if output != nil {
		env["output"] = output.Data
	}
	return env
}

// operationKey identifies an operation for retry/attempt bookkeeping
// purposes: type+subtype+name is stable across retries of the same call and
// distinct from unrelated operations.
func operationKey(op secmodel.OperationContext) string {
	return op.Type + ":" + op.Subtype + ":" + op.Name
}
