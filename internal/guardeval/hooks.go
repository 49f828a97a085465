package guardeval

import (
	"time"

	"github.com/mlldlang/guardcore/internal/environment"
	"github.com/mlldlang/guardcore/internal/events"
	"github.com/mlldlang/guardcore/internal/guarderrors"
	"github.com/mlldlang/guardcore/internal/hooks"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// GuardPreHook returns a hooks.PreHook that selects and evaluates every
// before-timed guard applicable to the operation's inputs, writing any
// replacement values back into the inputs map the directive runtime passed
// in. inputNames fixes the positional order perInput guards process inputs
// in (registry order within one input, positional order across inputs).
func GuardPreHook(deps Deps, env *environment.Environment, override secmodel.GuardOverride, inputNames []string) hooks.PreHook {
	return func(op secmodel.OperationContext, inputs map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		if env.ShouldSuppressGuards() {
			return secmodel.HookDecision{Action: secmodel.HookContinue}, nil
		}

		ordered := orderInputs(inputs, inputNames)
		result, err := EvaluatePre(deps, op, ordered, override, env.ID())
		if err != nil {
			if _, isRetry := err.(guarderrors.RetrySignaler); isRetry {
				return secmodel.HookDecision{Action: secmodel.HookRetry}, nil
			}
			return secmodel.HookDecision{Action: secmodel.HookAbort}, err
		}

		for name, v := range result.Inputs {
			inputs[name] = v
		}
		emitGuardEvents(env, op, result)
		return secmodel.HookDecision{Action: secmodel.HookContinue}, nil
	}
}

// GuardPostHook returns a hooks.PostHook that selects and evaluates every
// after-timed guard applicable to the operation's inputs and output,
// recording the outcome into history and returning the (possibly
// transformed) output. history is owned by the caller's pipeline run, not
// by this hook, since it accumulates across every guarded operation in a
// pipeline, not just this one.
func GuardPostHook(deps Deps, env *environment.Environment, override secmodel.GuardOverride, inputNames []string, history *[]secmodel.GuardHistoryEntry) hooks.PostHook {
	return func(op secmodel.OperationContext, output *secmodel.StructuredValue) (*secmodel.StructuredValue, error) {
		if env.ShouldSuppressGuards() {
			return output, nil
		}

		currentInputs := make(map[string]*secmodel.StructuredValue, len(inputNames))
		for _, name := range inputNames {
			if v, ok := env.GetVariable(name); ok {
				currentInputs[name] = v.Value
			}
		}
		ordered := orderInputs(currentInputs, inputNames)

		result, err := EvaluatePost(deps, op, ordered, output, override, env.ID())
		appendHistory(history, op, result)
		if err != nil {
			return nil, err
		}

		emitGuardEvents(env, op, result)
		return result.Output, nil
	}
}

func orderInputs(inputs map[string]*secmodel.StructuredValue, names []string) []Input {
	ordered := make([]Input, 0, len(names))
	for _, name := range names {
		if v, ok := inputs[name]; ok {
			ordered = append(ordered, Input{Name: name, Value: v})
		}
	}
	return ordered
}

// emitGuardEvents publishes one debug event per guard that ran: before-timed
// guards (GuardPreHook's results) as debug:guard:before, after-timed guards
// (GuardPostHook's results) as debug:guard:after.
func emitGuardEvents(env *environment.Environment, op secmodel.OperationContext, result Result) {
	for _, gr := range result.GuardResults {
		if gr.Timing == secmodel.TimingBefore {
			env.EmitEffect(events.KindGuardBefore, events.GuardBeforePayload{
				GuardName: gr.GuardName,
				Operation: op,
				Labels:    gr.Labels,
			})
			continue
		}
		env.EmitEffect(events.KindGuardAfter, events.GuardAfterPayload{
			GuardName: gr.GuardName,
			Operation: op,
			Decision:  gr.Decision,
			Reason:    gr.Reason,
		})
	}
}

func appendHistory(history *[]secmodel.GuardHistoryEntry, op secmodel.OperationContext, result Result) {
	if history == nil {
		return
	}
	stage := string(secmodel.TimingAfter)
	if len(result.GuardResults) > 0 {
		stage = string(result.GuardResults[0].Timing)
	}
	*history = append(*history, secmodel.GuardHistoryEntry{
		Stage:     stage,
		Operation: op,
		Decision:  result.Decision,
		Trace:     result.GuardResults,
		Hints:     result.Hints,
		Reasons:   result.Reasons,
		Timestamp: time.Now(),
	})
}
