// Package guarderrors defines the error taxonomy for the guard core.
// Every error is a typed struct carrying structured fields, not
// just a message — callers match with errors.As, never by string-sniffing.
package guarderrors

import (
	"fmt"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// GuardError is the canonical failure of an operation under guards.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardError struct {
	Decision      secmodel.Decision // deny | retry
	GuardName     string
	GuardFilter   string
	Scope         secmodel.GuardScope
	Operation     secmodel.OperationContext
	InputPreview  string
	OutputPreview string
	Reasons       []string
	GuardResults  []secmodel.GuardResult
	Hints         []string
	Timing        secmodel.Timing
	RetryHint     string
	GuardContext  *secmodel.GuardContextSnapshot
}

func (e *GuardError) Error() string {
	reason := "denied"
	if len(e.Reasons) > 0 {
		reason = e.Reasons[0]
	}
	if e.GuardName != "" {
		return fmt.Sprintf("guard %q %s: %s", e.GuardName, e.Decision, reason)
	}
	return fmt.Sprintf("guard %s: %s", e.Decision, reason)
}

// GuardRetrySignal is thrown by the post-hook to request a rerun; caught by
// the directive runtime (or, absent a retry-capable caller, degrades to a
// deny). It deliberately mirrors GuardError's
// shape plus RetryHint, but has its own marker so errors.As never confuses
// the two.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardRetrySignal struct {
	GuardName     string
	GuardFilter   string
	Scope         secmodel.GuardScope
	Operation     secmodel.OperationContext
	InputPreview  string
	OutputPreview string
	Reasons       []string
	GuardResults  []secmodel.GuardResult
	Hints         []string
	Timing        secmodel.Timing
	RetryHint     string
	GuardContext  *secmodel.GuardContextSnapshot
}

func (e *GuardRetrySignal) Error() string {
	return fmt.Sprintf("guard %q requests retry: %s", e.GuardName, e.RetryHint)
}

// retrySignal is an unexported marker method so GuardRetrySignal can never
// satisfy an interface shared with GuardError by accident.
func (e *GuardRetrySignal) retrySignal() {}

// RetrySignaler is implemented only by *GuardRetrySignal.
type RetrySignaler interface {
	error
	retrySignal()
}

var _ RetrySignaler = (*GuardRetrySignal)(nil)

// SecurityErrorCode is a closed enum of privilege-violation reasons.
type SecurityErrorCode string

const (
	LabelPrivilegeRequired SecurityErrorCode = "LABEL_PRIVILEGE_REQUIRED"
	ProtectedLabelRemoval  SecurityErrorCode = "PROTECTED_LABEL_REMOVAL"
)

// SecurityError reports a privilege violation: a non-privileged guard tried
// to remove a label, or any guard tried to remove a protected label.
type SecurityError struct {
	Code  SecurityErrorCode
	Label string
	Guard string
}

func (e *SecurityError) Error() string {
	switch e.Code {
	case ProtectedLabelRemoval:
		return fmt.Sprintf("guard %q may not remove protected label %q", e.Guard, e.Label)
	default:
		return fmt.Sprintf("guard %q is not privileged to remove label %q", e.Guard, e.Label)
	}
}

// WhenExpressionError reports a guard script misuse: an `env` decision
// used outside a before-hook, or a malformed condition expression.
type WhenExpressionError struct {
	Guard   string
	Timing  secmodel.Timing
	Message string
}

func (e *WhenExpressionError) Error() string {
	return fmt.Sprintf("guard %q: %s (timing=%s)", e.Guard, e.Message, e.Timing)
}

// FieldAccessError reports extraction of a field absent from a value's
// data view.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type FieldAccessError struct {
	BaseValue     any
	AccessPath    string
	AvailableKeys []string
}

func (e *FieldAccessError) Error() string {
	return fmt.Sprintf("field %q not found; available: %v", e.AccessPath, e.AvailableKeys)
}

// InterpreterErrorCode is a closed enum of generic interpreter failures the
// guard core itself can raise (not guard-script bugs).
type InterpreterErrorCode string

const (
	RetriesExhausted          InterpreterErrorCode = "RETRIES_EXHAUSTED"
	StreamingAfterGuard       InterpreterErrorCode = "STREAMING_AFTER_GUARD"
	MissingReservedVariable   InterpreterErrorCode = "MISSING_RESERVED_VARIABLE"
	InvalidOverrideConfig     InterpreterErrorCode = "INVALID_OVERRIDE_CONFIG"
)

type InterpreterError struct {
	Code    InterpreterErrorCode
	Message string
}

func (e *InterpreterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
