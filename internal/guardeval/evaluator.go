package guardeval

import (
	"github.com/mlldlang/guardcore/internal/config"
	"github.com/mlldlang/guardcore/internal/guarderrors"
	"github.com/mlldlang/guardcore/internal/guardregistry"
	"github.com/mlldlang/guardcore/internal/retry"
	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/internal/value"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Input is one named operand a guarded operation receives.
type Input struct {
	Name  string
	Value *secmodel.StructuredValue
}

// Deps bundles the evaluator's collaborators.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Deps struct {
	Registry *guardregistry.Registry
	Retry    *retry.Coordinator
	Config   *config.Config
}

// Result is the aggregate outcome of evaluating every guard selected for
// one operation at one timing.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Result struct {
	Decision     secmodel.Decision
	Inputs       map[string]*secmodel.StructuredValue // final (possibly replaced) inputs
	Output       *secmodel.StructuredValue            // final (possibly replaced) output, after-timing only
	GuardResults []secmodel.GuardResult
	Reasons      []string
	Hints        []string
}

// EvaluatePre runs every before-timed guard applicable to op's inputs and
// returns the (possibly transformed) inputs, or a deny/retry error.
func EvaluatePre(deps Deps, op secmodel.OperationContext, inputs []Input, override secmodel.GuardOverride, traceID string) (Result, error) {
	return evaluate(deps, op, secmodel.TimingBefore, inputs, nil, override, traceID)
}

// EvaluatePost runs every after-timed guard applicable to op's inputs and
// output and returns the (possibly transformed) output, or a deny/retry
// error.
func EvaluatePost(deps Deps, op secmodel.OperationContext, inputs []Input, output *secmodel.StructuredValue, override secmodel.GuardOverride, traceID string) (Result, error) {
	return evaluate(deps, op, secmodel.TimingAfter, inputs, output, override, traceID)
}

func evaluate(deps Deps, op secmodel.OperationContext, timing secmodel.Timing, inputs []Input, output *secmodel.StructuredValue, override secmodel.GuardOverride, traceID string) (Result, error) {
	labels := make([]inputLabels, len(inputs))
	current := make(map[string]*secmodel.StructuredValue, len(inputs))
	for i, in := range inputs {
		ctx := in.Value.Ctx()
		labels[i] = inputLabels{name: in.Name, labels: ctx.Labels}
		current[in.Name] = in.Value
	}

	sel, err := Select(deps.Registry, op, labels, timing, override)
	if err != nil {
		return Result{}, err
	}
	if err := RejectStreamingAfter(op, sel, timing); err != nil {
		return Result{}, err
	}
	if timing == secmodel.TimingBefore && op.Streaming() {
		afterSel, err := Select(deps.Registry, op, labels, secmodel.TimingAfter, override)
		if err != nil {
			return Result{}, err
		}
		if err := RejectStreamingAfter(op, afterSel, secmodel.TimingAfter); err != nil {
			return Result{}, err
		}
	}

	result := Result{Decision: secmodel.DecisionAllow, Inputs: current, Output: output}

	for _, in := range inputs {
		defs := sel.PerInput[in.Name]
		if len(defs) == 0 {
			continue
		}
		replaced, err := runGuardChain(deps, op, timing, secmodel.ScopePerInput, in.Name, defs, current[in.Name], current[in.Name], &result)
		if err != nil {
			return Result{}, err
		}
		current[in.Name] = replaced
		result.Inputs[in.Name] = replaced
	}

	if len(sel.PerOperation) > 0 {
		aggregate := aggregateInputs(current, inputs)
		subject := aggregate
		if timing == secmodel.TimingAfter {
			subject = output
		}
		replaced, err := runGuardChain(deps, op, timing, secmodel.ScopePerOperation, "", sel.PerOperation, aggregate, subject, &result)
		if err != nil {
			return Result{}, err
		}
		if timing == secmodel.TimingAfter {
			result.Output = replaced
		}
	}

	switch result.Decision {
	case secmodel.DecisionDeny:
		return result, &guarderrors.GuardError{
			Decision: secmodel.DecisionDeny, Operation: op, Timing: timing,
			Reasons: result.Reasons, Hints: result.Hints, GuardResults: result.GuardResults,
		}
	case secmodel.DecisionRetry:
		return result, &guarderrors.GuardRetrySignal{
			Operation: op, Timing: timing,
			Reasons: result.Reasons, Hints: result.Hints, GuardResults: result.GuardResults,
			RetryHint: lastOrEmpty(result.Hints),
		}
	default:
		return result, nil
	}
}

// runGuardChain evaluates defs in order against one guarded subject.
// For perOperation guards, contextInput is what the guard script sees as
// the reserved `input` variable (the aggregate of all inputs, static across
// the chain); for perInput guards, `input` is the current subject, so each
// guard sees the previous guard's replacement. subject is what is actually
// being judged and, on allow+value, replaced for the next guard in the
// chain (for perOperation after-timed guards, subject is the operation's
// output, not the aggregate).
func runGuardChain(deps Deps, op secmodel.OperationContext, timing secmodel.Timing, scope secmodel.GuardScope, scopeVariable string, defs []secmodel.GuardDefinition, contextInput, subject *secmodel.StructuredValue, result *Result) (*secmodel.StructuredValue, error) {
	current := subject
	var currentDescriptor secmodel.SecurityDescriptor
	if current != nil {
		currentDescriptor = current.Metadata.Security
	}

	for _, def := range defs {
		var outVar *secmodel.StructuredValue
		if timing == secmodel.TimingAfter {
			outVar = current
		}

		guardInput := contextInput
		if scope == secmodel.ScopePerInput {
			guardInput = current
		}

		snap := buildSnapshot(def, scope, scopeVariable, op, timing, guardInput, outVar, deps.Retry, "")
		env := buildEnv(def, op, timing, snap, guardInput, outVar)

		action, err := evaluateBlock(def.Name, timing, def.Block, env)
		if err != nil {
			return nil, err
		}

		gr := secmodel.GuardResult{GuardName: def.Name, Decision: action.Decision, Timing: timing, Labels: snap.Labels}

		switch action.Decision {
		case secmodel.DecisionDeny:
			gr.Reason = action.Message
			result.Reasons = append(result.Reasons, action.Message)
			bumpDecision(result, secmodel.DecisionDeny)

		case secmodel.DecisionRetry:
			attempt, ok, history, wait := deps.Retry.RecordRetry(operationKey(op), scope, scopeVariable, 0, action.Message)
			gr.Hint = action.Message
			gr.Metadata = map[string]any{"attempt": attempt, "history": history, "wait": wait}
			if !ok {
				gr.Decision = secmodel.DecisionDeny
				gr.Reason = "retries exhausted for guard " + def.Name
				result.Reasons = append(result.Reasons, gr.Reason)
				bumpDecision(result, secmodel.DecisionDeny)
			} else {
				result.Hints = append(result.Hints, action.Message)
				bumpDecision(result, secmodel.DecisionRetry)
			}

		case secmodel.DecisionAllow:
			if action.Value != "" {
				raw, err := evalReplacement(action.Value, env)
				if err != nil {
					return nil, &guarderrors.WhenExpressionError{Guard: def.Name, Timing: timing, Message: err.Error()}
				}
				current = value.Ensure(raw, "", "", nil)
				currentDescriptor = security.WithSource(currentDescriptor, "guard:"+def.Name)
			}
			if len(action.AddLabels) > 0 {
				currentDescriptor = security.WithAddedLabels(currentDescriptor, action.AddLabels...)
				gr.LabelModifications = mergeLabelMods(gr.LabelModifications, action.AddLabels, nil)
			}
			if len(action.RemoveLabels) > 0 {
				if !def.Privileged {
					return nil, &guarderrors.SecurityError{Code: guarderrors.LabelPrivilegeRequired, Label: action.RemoveLabels[0], Guard: def.Name}
				}
				for _, l := range action.RemoveLabels {
					if deps.Config.IsProtected(l) {
						return nil, &guarderrors.SecurityError{Code: guarderrors.ProtectedLabelRemoval, Label: l, Guard: def.Name}
					}
				}
				currentDescriptor = security.WithRemovedLabels(currentDescriptor, action.RemoveLabels...)
				currentDescriptor = security.WithSource(currentDescriptor, "guard:"+def.Name)
				gr.LabelModifications = mergeLabelMods(gr.LabelModifications, nil, action.RemoveLabels)
			}
			if current != nil {
				value.ApplySecurityDescriptor(current, currentDescriptor)
			}
			bumpDecision(result, secmodel.DecisionAllow)

		case secmodel.DecisionEnv:
			// Binding side effects belong to the calling environment, not this
			// result; evaluateBlock already rejected env outside before-timing.
		}

		result.GuardResults = append(result.GuardResults, gr)
	}

	return current, nil
}

func bumpDecision(result *Result, d secmodel.Decision) {
	if d.Precedence() > result.Decision.Precedence() {
		result.Decision = d
	}
}

func mergeLabelMods(existing *secmodel.LabelModifications, added, removed []string) *secmodel.LabelModifications {
	if existing == nil {
		existing = &secmodel.LabelModifications{}
	}
	existing.Added = append(existing.Added, added...)
	existing.Removed = append(existing.Removed, removed...)
	return existing
}

// aggregateInputs wraps every current input value into one array-typed
// structured value, merging their descriptors, for perOperation guards'
// reserved `input` variable.
func aggregateInputs(current map[string]*secmodel.StructuredValue, order []Input) *secmodel.StructuredValue {
	arr := make([]any, 0, len(order))
	descriptors := make([]secmodel.SecurityDescriptor, 0, len(order))
	for _, in := range order {
		v := current[in.Name]
		if v == nil {
			continue
		}
		arr = append(arr, v.Data)
		descriptors = append(descriptors, v.Metadata.Security)
	}
	agg := value.Ensure(arr, secmodel.ValueArray, "", nil)
	value.ApplySecurityDescriptor(agg, security.Merge(descriptors...))
	return agg
}

func lastOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[len(xs)-1]
}
