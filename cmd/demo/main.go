// Command demo wires every guard-core component together — environment,
// guard registry, hook manager, retry coordinator, sign/verify, policy
// resolver, and the event bus — and drives a handful of guarded operations
// end to end, logging each outcome.
package main

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlldlang/guardcore/internal/config"
	"github.com/mlldlang/guardcore/internal/environment"
	"github.com/mlldlang/guardcore/internal/events"
	"github.com/mlldlang/guardcore/internal/guarderrors"
	"github.com/mlldlang/guardcore/internal/guardeval"
	"github.com/mlldlang/guardcore/internal/guardregistry"
	"github.com/mlldlang/guardcore/internal/policy"
	"github.com/mlldlang/guardcore/internal/retry"
	"github.com/mlldlang/guardcore/internal/signverify"
	"github.com/mlldlang/guardcore/internal/value"
	"github.com/mlldlang/guardcore/internal/variable"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("guard core demo starting")

	cfg := config.Load()
	// The blessing scenario lifts "influenced", so the demo runs with that
	// label left out of the protected set.
	protected := make([]string, 0, len(cfg.ProtectedLabels))
	for _, l := range cfg.ProtectedLabels {
		if l != "influenced" {
			protected = append(protected, l)
		}
	}
	cfg.ProtectedLabels = protected

	reg := guardregistry.New()
	registerDemoGuards(reg)

	env := environment.New()
	level, err := zerolog.ParseLevel(cfg.EventLogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	subscriber := events.NewZerologSubscriber(log.Logger, level)
	for _, kind := range []events.Kind{
		events.KindGuardBefore, events.KindGuardAfter,
		events.KindVariableCreate, events.KindVariableAccess,
	} {
		env.Bus().Subscribe(kind, subscriber)
	}

	deps := guardeval.Deps{Registry: reg, Retry: retry.New(cfg.DefaultRetryMax), Config: cfg}

	var history []secmodel.GuardHistoryEntry
	env.Hooks().RegisterPre(guardeval.GuardPreHook(deps, env, secmodel.GuardOverride{}, []string{"apiKey", "publicMessage", "cmd", "analysis", "llmCall", "reply", "call"}))
	env.Hooks().RegisterPost(guardeval.GuardPostHook(deps, env, secmodel.GuardOverride{}, []string{"apiKey", "publicMessage", "cmd", "analysis", "llmCall", "reply", "call"}, &history))

	runSecretShowScenario(env)
	runBlessingScenario(env)
	runDualAuditScenario(env)
	runPolicyResolutionScenario()

	log.Info().Int("guardHistoryEntries", len(history)).Msg("guard core demo complete")
}

// registerDemoGuards seeds the registry with the guards the scenarios below
// exercise.
func registerDemoGuards(reg *guardregistry.Registry) {
	reg.Register(secmodel.GuardDefinition{
		ID: "noSecretShow", Name: "noSecretShow", Scope: secmodel.ScopePerInput,
		FilterKind: secmodel.FilterLabel, FilterValue: "secret", Timing: secmodel.TimingBefore,
		Block: secmodel.Block{Rules: []secmodel.Rule{
			{Condition: "opIs('show')", Action: secmodel.Action{Decision: secmodel.DecisionDeny, Message: "secrets cannot be shown"}},
			{IsWildcard: true, Action: secmodel.Action{Decision: secmodel.DecisionAllow}},
		}},
	})
	reg.Register(secmodel.GuardDefinition{
		ID: "blessReviewed", Name: "blessReviewed", Scope: secmodel.ScopePerInput, Privileged: true,
		FilterKind: secmodel.FilterLabel, FilterValue: "influenced", Timing: secmodel.TimingBefore,
		Block: secmodel.Block{Rules: []secmodel.Rule{
			{IsWildcard: true, Action: secmodel.Action{Decision: secmodel.DecisionAllow, RemoveLabels: []string{"influenced"}, AddLabels: []string{"reviewed"}}},
		}},
	})
	reg.Register(secmodel.GuardDefinition{
		ID: "dualAudit", Name: "dualAudit", Scope: secmodel.ScopePerInput, Privileged: true,
		FilterKind: secmodel.FilterLabel, FilterValue: "untrusted", Timing: secmodel.TimingAfter,
		Block: secmodel.Block{Rules: []secmodel.Rule{
			{Let: "looksSafe", Condition: "input.verdict == 'benign'"},
			{Condition: "!looksSafe", Action: secmodel.Action{Decision: secmodel.DecisionDeny, Message: "exfiltration risk detected"}},
			{IsWildcard: true, Action: secmodel.Action{Decision: secmodel.DecisionAllow, RemoveLabels: []string{"untrusted"}}},
		}},
	})
}

func runSecretShowScenario(env *environment.Environment) {
	apiKey := value.Ensure("sk-live-abc123", secmodel.ValueText, "sk-live-abc123", &secmodel.ValueMetadata{
		Security: secmodel.SecurityDescriptor{Labels: []string{"secret"}, Taint: []string{"secret"}},
	})
	env.SetVariable("apiKey", variable.New("apiKey", variable.KindSimpleText, apiKey, variable.VarContext{}))

	op := secmodel.OperationContext{Type: "show"}
	inputs := map[string]*secmodel.StructuredValue{"apiKey": apiKey}
	decision, err := env.Hooks().Pre(op, inputs)
	if err != nil {
		log.Info().Str("scenario", "secret-show").Str("result", "denied").Err(err).Msg("guard rejected operation")
		return
	}
	log.Info().Str("scenario", "secret-show").Str("action", string(decision.Action)).Msg("unexpected allow")
}

func runBlessingScenario(env *environment.Environment) {
	draft := value.Ensure("draft reply text", secmodel.ValueText, "draft reply text", &secmodel.ValueMetadata{
		Security: secmodel.SecurityDescriptor{Labels: []string{"influenced"}, Taint: []string{"influenced"}},
	})
	env.SetVariable("reply", variable.New("reply", variable.KindSimpleText, draft, variable.VarContext{}))

	op := secmodel.OperationContext{Type: "show"}
	inputs := map[string]*secmodel.StructuredValue{"reply": draft}
	decision, err := env.Hooks().Pre(op, inputs)
	if err != nil {
		log.Error().Str("scenario", "privileged-blessing").Err(err).Msg("unexpected denial")
		return
	}
	blessed := inputs["reply"]
	log.Info().Str("scenario", "privileged-blessing").Str("action", string(decision.Action)).
		Strs("labels", blessed.Ctx().Labels).Strs("sources", blessed.Ctx().Sources).Msg("label privilege applied")
}

func runDualAuditScenario(env *environment.Environment) {
	analysis := value.Ensure(map[string]any{"verdict": "exfiltration"}, secmodel.ValueObject, "", &secmodel.ValueMetadata{
		Security: secmodel.SecurityDescriptor{Labels: []string{"untrusted"}, Taint: []string{"untrusted"}},
	})
	env.SetVariable("analysis", variable.New("analysis", variable.KindObject, analysis, variable.VarContext{}))

	op := secmodel.OperationContext{Type: "exe"}
	output, err := env.Hooks().Post(op, analysis)
	if err != nil {
		log.Info().Str("scenario", "dual-audit").Str("result", "denied").Err(err).Msg("exfiltration signal blocked")
		var guardErr *guarderrors.GuardError
		if errors.As(err, &guardErr) {
			log.Info().Str("scenario", "dual-audit").Strs("reasons", guardErr.Reasons).Msg("denial reasons")
		}
		return
	}
	log.Info().Str("scenario", "dual-audit").Strs("labels", output.Ctx().Labels).Msg("unexpected allow")
}

// runPolicyResolutionScenario exercises the capability/policy resolver and
// the content-addressed sign/verify path alongside the guard chain above,
// showing the two standalone collaborators a host wires next to guards.
func runPolicyResolutionScenario() {
	matrix := policy.Matrix{
		Rules: []policy.Rule{
			{CapabilityKind: "network.fetch", Condition: "hasLabel('untrusted')", Decision: policy.DecisionNeedsReview, Reason: "untrusted network fetch"},
			{CapabilityKind: "network.fetch", Decision: policy.DecisionAllow, Reason: "trusted network fetch"},
		},
		Default: policy.DecisionDeny,
	}
	cap := secmodel.Capability{Kind: "network.fetch", Operation: "GET https://example.com"}
	descriptor := secmodel.SecurityDescriptor{Labels: []string{"untrusted"}}
	result, err := policy.Resolve(cap, descriptor, matrix)
	if err != nil {
		log.Error().Err(err).Msg("policy resolution failed")
		return
	}
	log.Info().Str("scenario", "policy-resolution").Str("decision", string(result.Decision)).Strs("reasons", result.Reasons).Msg("capability resolved")

	sig := signverify.Sign("trusted-guard-policy-v1")
	log.Info().Str("scenario", "sign-verify").Bool("verified", signverify.Verify("trusted-guard-policy-v1", sig)).Msg("policy content signature checked")
}
