// Package hooks implements the pre/post hook dispatch chain that sits
// between an operation and its guards: GuardPreHook and GuardPostHook
// register here, and the host calls Pre/Post (via Environment.Hooks())
// around every guarded operation.
package hooks

import (
	"sync"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// PreHook runs before an operation executes. It returns a HookDecision;
// HookAbort short-circuits the chain and the operation itself.
type PreHook func(op secmodel.OperationContext, inputs map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error)

// PostHook runs after an operation produces output, before the result is
// handed back to the caller. It may return a *guarderrors.GuardError or a
// *guarderrors.GuardRetrySignal to reject or retry the operation.
type PostHook func(op secmodel.OperationContext, output *secmodel.StructuredValue) (*secmodel.StructuredValue, error)

// Manager is an ordered, thread-safe chain of pre/post hooks. Registration
// order is evaluation order, matching this pack's provider-chain pattern:
// callers copy the slice under a read lock before iterating so a hook that
// registers another hook mid-dispatch never deadlocks.
type Manager struct {
	mu   sync.RWMutex
	pre  []PreHook
	post []PostHook
}

// NewManager constructs an empty hook manager.
func NewManager() *Manager {
	return &Manager{}
}

// RegisterPre appends a pre-hook to the chain.
func (m *Manager) RegisterPre(h PreHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pre = append(m.pre, h)
}

// RegisterPost appends a post-hook to the chain.
func (m *Manager) RegisterPost(h PostHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.post = append(m.post, h)
}

// Pre runs every registered pre-hook in order. The chain's aggregate
// decision is: any hook returning HookAbort aborts the whole chain
// immediately; otherwise, if any hook returned HookRetry, the aggregate is
// HookRetry; otherwise HookContinue. An error from a hook itself always
// aborts (the hook failed to evaluate, distinct from it deciding to abort).
func (m *Manager) Pre(op secmodel.OperationContext, inputs map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
	m.mu.RLock()
	hooks := make([]PreHook, len(m.pre))
	copy(hooks, m.pre)
	m.mu.RUnlock()

	result := secmodel.HookDecision{Action: secmodel.HookContinue}
	sawRetry := false

	for _, h := range hooks {
		decision, err := h(op, inputs)
		if err != nil {
			return secmodel.HookDecision{Action: secmodel.HookAbort}, err
		}
		switch decision.Action {
		case secmodel.HookAbort:
			return decision, nil
		case secmodel.HookRetry:
			sawRetry = true
			if decision.Metadata != nil {
				result.Metadata = decision.Metadata
			}
		}
	}

	if sawRetry {
		result.Action = secmodel.HookRetry
	}
	return result, nil
}

// Post runs every registered post-hook in order, threading output through
// each in turn. The first hook to return an error (typically a
// *guarderrors.GuardError or *guarderrors.GuardRetrySignal) stops the chain.
func (m *Manager) Post(op secmodel.OperationContext, output *secmodel.StructuredValue) (*secmodel.StructuredValue, error) {
	m.mu.RLock()
	hooks := make([]PostHook, len(m.post))
	copy(hooks, m.post)
	m.mu.RUnlock()

	current := output
	for _, h := range hooks {
		next, err := h(op, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}
