// Package retry implements the RetryCoordinator: per-(operation, scope,
// variable) attempt bookkeeping and backoff hints for guard-triggered
// retries.
package retry

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

const defaultMax = 3

// key identifies one retry counter: the operation identity, the guard
// scope that triggered retries, and the variable name in play (empty for
// perOperation guards, which have no single variable).
type key struct {
	operation string
	scope     secmodel.GuardScope
	variable  string
}

// attemptState is the mutable bookkeeping behind one key.
type attemptState struct {
	next    int
	max     int
	history []string
	backoff *backoff.ExponentialBackOff
}

// Coordinator tracks retry attempts across guarded operations. One
// Coordinator is scoped to a single environment/pipeline run; retries from
// unrelated runs never share counters.
type Coordinator struct {
	mu       sync.Mutex
	attempts map[key]*attemptState
	maxDefault int
}

// New constructs a coordinator using maxDefault as the ceiling for any
// key whose guard doesn't specify its own max (0 means use the package
// default of 3).
func New(maxDefault int) *Coordinator {
	if maxDefault <= 0 {
		maxDefault = defaultMax
	}
	return &Coordinator{attempts: make(map[key]*attemptState), maxDefault: maxDefault}
}

func mk(operation string, scope secmodel.GuardScope, variable string) key {
	return key{operation: operation, scope: scope, variable: variable}
}

// Peek returns the current attempt number (0 before any RecordRetry call)
// and the effective max for this key, without mutating state.
func (c *Coordinator) Peek(operation string, scope secmodel.GuardScope, variable string) (attempt, max int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.attempts[mk(operation, scope, variable)]
	if !ok {
		return 0, c.maxDefault
	}
	return st.next, st.max
}

// RecordRetry increments the attempt counter for this key, returning the
// new attempt number, whether it is still within max (ok=false means the
// caller must convert this retry into a deny), the recorded hint history
// so far, and a suggested wait duration from an exponential backoff
// sequence seeded the first time this key is seen.
func (c *Coordinator) RecordRetry(operation string, scope secmodel.GuardScope, variable string, max int, hint string) (attempt int, ok bool, history []string, wait time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := mk(operation, scope, variable)
	st, exists := c.attempts[k]
	if !exists {
		effectiveMax := max
		if effectiveMax <= 0 {
			effectiveMax = c.maxDefault
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 200 * time.Millisecond
		b.Multiplier = 2
		b.MaxInterval = 5 * time.Second
		st = &attemptState{max: effectiveMax, backoff: b}
		c.attempts[k] = st
	}

	st.next++
	if hint != "" {
		st.history = append(st.history, hint)
	}

	wait = st.backoff.NextBackOff()
	if wait == backoff.Stop {
		wait = st.backoff.MaxInterval
	}

	return st.next, st.next < st.max, append([]string(nil), st.history...), wait
}

// Clear resets the counter for a key, used once an operation finally
// succeeds so a later, unrelated call to the same operation starts fresh.
func (c *Coordinator) Clear(operation string, scope secmodel.GuardScope, variable string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, mk(operation, scope, variable))
}

// Snapshot returns the secmodel wire representation of this key's attempt
// state, for embedding in a GuardContextSnapshot.
func (c *Coordinator) Snapshot(operation string, scope secmodel.GuardScope, variable string) secmodel.AttemptRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.attempts[mk(operation, scope, variable)]
	if !ok {
		return secmodel.AttemptRecord{Max: c.maxDefault}
	}
	return secmodel.AttemptRecord{NextAttempt: st.next, History: append([]string(nil), st.history...), Max: st.max}
}
