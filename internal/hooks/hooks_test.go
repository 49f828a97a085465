package hooks_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlldlang/guardcore/internal/hooks"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func TestPre_AllContinueYieldsContinue(t *testing.T) {
	m := hooks.NewManager()
	m.RegisterPre(func(secmodel.OperationContext, map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		return secmodel.HookDecision{Action: secmodel.HookContinue}, nil
	})

	d, err := m.Pre(secmodel.OperationContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, secmodel.HookContinue, d.Action)
}

func TestPre_AnyAbortWinsAndShortCircuits(t *testing.T) {
	m := hooks.NewManager()
	secondCalled := false
	m.RegisterPre(func(secmodel.OperationContext, map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		return secmodel.HookDecision{Action: secmodel.HookAbort}, nil
	})
	m.RegisterPre(func(secmodel.OperationContext, map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		secondCalled = true
		return secmodel.HookDecision{Action: secmodel.HookContinue}, nil
	})

	d, err := m.Pre(secmodel.OperationContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, secmodel.HookAbort, d.Action)
	assert.False(t, secondCalled)
}

func TestPre_RetryWinsOverContinueWhenNoAbort(t *testing.T) {
	m := hooks.NewManager()
	m.RegisterPre(func(secmodel.OperationContext, map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		return secmodel.HookDecision{Action: secmodel.HookContinue}, nil
	})
	m.RegisterPre(func(secmodel.OperationContext, map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		return secmodel.HookDecision{Action: secmodel.HookRetry}, nil
	})

	d, err := m.Pre(secmodel.OperationContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, secmodel.HookRetry, d.Action)
}

func TestPre_HookErrorAbortsImmediately(t *testing.T) {
	m := hooks.NewManager()
	sentinel := errors.New("boom")
	m.RegisterPre(func(secmodel.OperationContext, map[string]*secmodel.StructuredValue) (secmodel.HookDecision, error) {
		return secmodel.HookDecision{}, sentinel
	})

	d, err := m.Pre(secmodel.OperationContext{}, nil)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, secmodel.HookAbort, d.Action)
}

func TestPost_ChainsOutputThroughEachHook(t *testing.T) {
	m := hooks.NewManager()
	m.RegisterPost(func(_ secmodel.OperationContext, sv *secmodel.StructuredValue) (*secmodel.StructuredValue, error) {
		sv.Text = sv.Text + "-a"
		return sv, nil
	})
	m.RegisterPost(func(_ secmodel.OperationContext, sv *secmodel.StructuredValue) (*secmodel.StructuredValue, error) {
		sv.Text = sv.Text + "-b"
		return sv, nil
	})

	out, err := m.Post(secmodel.OperationContext{}, &secmodel.StructuredValue{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x-a-b", out.Text)
}

func TestPost_FirstErrorStopsChain(t *testing.T) {
	m := hooks.NewManager()
	secondCalled := false
	sentinel := errors.New("denied")
	m.RegisterPost(func(secmodel.OperationContext, *secmodel.StructuredValue) (*secmodel.StructuredValue, error) {
		return nil, sentinel
	})
	m.RegisterPost(func(_ secmodel.OperationContext, sv *secmodel.StructuredValue) (*secmodel.StructuredValue, error) {
		secondCalled = true
		return sv, nil
	})

	_, err := m.Post(secmodel.OperationContext{}, &secmodel.StructuredValue{})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, secondCalled)
}
