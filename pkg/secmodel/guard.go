package secmodel

import "time"

// GuardScope is a closed enum: perInput guards apply to one input variable
// at a time; perOperation guards see the whole operation.
type GuardScope string

const (
	ScopePerInput     GuardScope = "perInput"
	ScopePerOperation GuardScope = "perOperation"
)

// Valid reports whether s is one of the two defined scopes — this enum is
// closed, so an unrecognized value is always invalid, never a silent
// fallback.
func (s GuardScope) Valid() bool {
	return s == ScopePerInput || s == ScopePerOperation
}

// FilterKind selects what a GuardDefinition is indexed by.
type FilterKind string

const (
	FilterLabel        FilterKind = "label"
	FilterOp           FilterKind = "op"
	FilterOperationTag FilterKind = "operationTag"
)

func (f FilterKind) Valid() bool {
	switch f {
	case FilterLabel, FilterOp, FilterOperationTag:
		return true
	default:
		return false
	}
}

// Timing is a closed enum of when a guard runs relative to the operation body.
type Timing string

const (
	TimingBefore Timing = "before"
	TimingAfter  Timing = "after"
	TimingAlways Timing = "always"
)

func (t Timing) Valid() bool {
	switch t {
	case TimingBefore, TimingAfter, TimingAlways:
		return true
	default:
		return false
	}
}

// Matches reports whether a guard registered with Timing t should run for
// an evaluation at the given timing ("always" matches both).
func (t Timing) Matches(at Timing) bool {
	return t == TimingAlways || t == at
}

// Decision is a closed enum of guard action decisions.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionRetry Decision = "retry"
	DecisionEnv   Decision = "env"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionDeny, DecisionRetry, DecisionEnv:
		return true
	default:
		return false
	}
}

// Precedence returns this decision's rank in the deny > retry > allow
// aggregation order.
// Higher wins. DecisionEnv has no meaningful precedence post-evaluation
// (it is resolved to an environment mutation before aggregation).
func (d Decision) Precedence() int {
	switch d {
	case DecisionDeny:
		return 3
	case DecisionRetry:
		return 2
	case DecisionAllow:
		return 1
	default:
		return 0
	}
}

// Rule is either a let-binding (extends the guard environment) or a
// condition/action pair. IsWildcard rules always match (the trailing
// "otherwise allow"/"otherwise deny" case).
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Rule struct {
	// Let, when non-empty, is a binding name; Condition is the expr-lang
	// expression producing the bound value. A let-rule has no Action.
	Let       string `json:"let,omitempty"`
	IsWildcard bool   `json:"isWildcard,omitempty"`
	Condition string `json:"condition,omitempty"`
	Action    Action `json:"action"`
}

// IsLetBinding reports whether this rule extends the environment rather
// than deciding the operation.
func (r Rule) IsLetBinding() bool {
	return r.Let != ""
}

// Action is the effect a matched guard rule produces.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Action struct {
	Decision     Decision `json:"decision"`
	Message      string   `json:"message,omitempty"`
	Value        string   `json:"value,omitempty"` // expr-lang replacement expression
	AddLabels    []string `json:"addLabels,omitempty"`
	RemoveLabels []string `json:"removeLabels,omitempty"`
	Warning      string   `json:"warning,omitempty"`
}

// Block is an ordered rule list evaluated top to bottom; the first matching
// rule decides the guard's outcome.
type Block struct {
	Rules []Rule `json:"rules"`
}

// GuardDefinition is a registered guard.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardDefinition struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Scope      GuardScope `json:"scope"`
	FilterKind FilterKind `json:"filterKind"`
	FilterValue string    `json:"filterValue"`
	Timing     Timing     `json:"timing"`
	Privileged bool       `json:"privileged"`
	Block      Block      `json:"block"`
}

// GuardContextSnapshot is the immutable ambient record exposed to a guard
// script during one evaluation.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardContextSnapshot struct {
	Name          string    `json:"name"`
	Attempt       int       `json:"attempt"`
	Try           int       `json:"try"`
	Tries         []int     `json:"tries"`
	Max           int       `json:"max"`
	Input         any       `json:"input"`
	Output        any       `json:"output,omitempty"`
	Labels        []string  `json:"labels"`
	Sources       []string  `json:"sources"`
	InputPreview  string    `json:"inputPreview"`
	OutputPreview string    `json:"outputPreview,omitempty"`
	HintHistory   []string  `json:"hintHistory"`
	Timing        Timing    `json:"timing"`
	TraceID       string    `json:"traceId"`
}

// GuardResult is one guard's verdict, accumulated into a per-operation trace.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardResult struct {
	GuardName         string         `json:"guardName,omitempty"`
	Decision          Decision       `json:"decision"`
	Timing            Timing         `json:"timing"`
	Reason            string         `json:"reason,omitempty"`
	Hint              string         `json:"hint,omitempty"`
	Labels            []string       `json:"labels,omitempty"`
	Replacement       *StructuredValue `json:"-"`
	LabelModifications *LabelModifications `json:"labelModifications,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Duration          time.Duration  `json:"durationNs,omitempty"`
}

// LabelModifications records add/remove label changes a guard applied.
type LabelModifications struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// HookAction is a closed enum: the HookDecision a pre-hook chain returns to
// the directive runtime.
type HookAction string

const (
	HookContinue HookAction = "continue"
	HookRetry    HookAction = "retry"
	HookAbort    HookAction = "abort"
)

func (a HookAction) Valid() bool {
	switch a {
	case HookContinue, HookRetry, HookAbort:
		return true
	default:
		return false
	}
}

// HookDecision is returned by HookManager.Pre and carried through to the
// directive runtime.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type HookDecision struct {
	Action   HookAction     `json:"action"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GuardHistoryEntry is appended to the shared pipeline guard history after
// post-hook finalization.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardHistoryEntry struct {
	Stage     string        `json:"stage"`
	Operation OperationContext `json:"operation"`
	Decision  Decision      `json:"decision"`
	Trace     []GuardResult `json:"trace"`
	Hints     []string      `json:"hints,omitempty"`
	Reasons   []string      `json:"reasons,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
