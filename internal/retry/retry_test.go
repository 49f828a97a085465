package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mlldlang/guardcore/internal/retry"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func TestRecordRetry_IncrementsAndBoundsToMax(t *testing.T) {
	c := retry.New(3)

	a1, ok1, _, _ := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "hint1")
	a2, ok2, _, _ := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "hint2")
	a3, ok3, _, _ := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "hint3")
	a4, ok4, history, _ := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "hint4")

	assert.Equal(t, 1, a1)
	assert.True(t, ok1)
	assert.Equal(t, 2, a2)
	assert.True(t, ok2)
	assert.Equal(t, 3, a3)
	assert.False(t, ok3, "attempt 3 reaches max of 3, must convert to deny")
	assert.Equal(t, 4, a4)
	assert.False(t, ok4, "attempt 4 exceeds max of 3, must convert to deny")
	assert.Equal(t, []string{"hint1", "hint2", "hint3", "hint4"}, history)
}

func TestRecordRetry_KeysAreIndependentPerOperationScopeVariable(t *testing.T) {
	c := retry.New(3)
	c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "")
	c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "")

	attempt, _ := c.Peek("op1", secmodel.ScopePerInput, "y")
	assert.Equal(t, 0, attempt, "a different variable key must not share the counter")
}

func TestRecordRetry_PerGuardMaxOverridesDefault(t *testing.T) {
	c := retry.New(3)
	_, ok1, _, _ := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 2, "")
	_, ok2, _, _ := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 2, "")

	assert.True(t, ok1, "attempt 1 is below guard-specified max of 2")
	assert.False(t, ok2, "attempt 2 reaches guard-specified max of 2, tighter than the coordinator default")
}

func TestClear_ResetsCounterForKey(t *testing.T) {
	c := retry.New(3)
	c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "")
	c.Clear("op1", secmodel.ScopePerInput, "x")

	attempt, _ := c.Peek("op1", secmodel.ScopePerInput, "x")
	assert.Equal(t, 0, attempt)
}

func TestRecordRetry_SuggestsPositiveWait(t *testing.T) {
	c := retry.New(3)
	_, _, _, w1 := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "")
	_, _, _, w2 := c.RecordRetry("op1", secmodel.ScopePerInput, "x", 0, "")

	assert.Greater(t, w1, time.Duration(0))
	assert.Greater(t, w2, time.Duration(0))
}
