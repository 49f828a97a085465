package guardeval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlldlang/guardcore/internal/guardregistry"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func dataGuard(id, label string) secmodel.GuardDefinition {
	return secmodel.GuardDefinition{
		ID: id, Name: id, Scope: secmodel.ScopePerInput,
		FilterKind: secmodel.FilterLabel, FilterValue: label, Timing: secmodel.TimingBefore,
	}
}

func opGuard(id, opType string) secmodel.GuardDefinition {
	return secmodel.GuardDefinition{
		ID: id, Name: id, Scope: secmodel.ScopePerOperation,
		FilterKind: secmodel.FilterOp, FilterValue: opType, Timing: secmodel.TimingBefore,
	}
}

func broadOpGuard(id, label string) secmodel.GuardDefinition {
	return secmodel.GuardDefinition{
		ID: id, Name: id, Scope: secmodel.ScopePerOperation,
		FilterKind: secmodel.FilterLabel, FilterValue: label, Timing: secmodel.TimingBefore,
	}
}

func TestSelect_PerInputGuardsMatchByInputLabel(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(dataGuard("g1", "secret"))

	sel, err := Select(reg, secmodel.OperationContext{Type: "show"},
		[]inputLabels{{name: "x", labels: []string{"secret"}}},
		secmodel.TimingBefore, secmodel.GuardOverride{})
	require.NoError(t, err)
	assert.Len(t, sel.PerInput["x"], 1)
}

func TestSelect_PerOperationGuardsIncludeOpKeyAndBroadLabelSweep(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(opGuard("g1", "show"))
	reg.Register(broadOpGuard("g2", "secret"))

	sel, err := Select(reg, secmodel.OperationContext{Type: "show"},
		[]inputLabels{{name: "x", labels: []string{"secret"}}},
		secmodel.TimingBefore, secmodel.GuardOverride{})
	require.NoError(t, err)
	assert.Len(t, sel.PerOperation, 2)
}

func TestSelect_OverrideDisableClearsEverything(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(dataGuard("g1", "secret"))
	reg.Register(opGuard("g2", "show"))

	sel, err := Select(reg, secmodel.OperationContext{Type: "show"},
		[]inputLabels{{name: "x", labels: []string{"secret"}}},
		secmodel.TimingBefore, secmodel.GuardOverride{Disable: true})
	require.NoError(t, err)
	assert.True(t, sel.Empty())
}

func TestSelect_OverrideOnlyKeepsNamedGuard(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(dataGuard("g1", "secret"))
	reg.Register(dataGuard("g2", "secret"))

	sel, err := Select(reg, secmodel.OperationContext{Type: "show"},
		[]inputLabels{{name: "x", labels: []string{"secret"}}},
		secmodel.TimingBefore, secmodel.GuardOverride{Only: []string{"@g1"}})
	require.NoError(t, err)
	require.Len(t, sel.PerInput["x"], 1)
	assert.Equal(t, "g1", sel.PerInput["x"][0].ID)
}

func TestSelect_OverrideExceptRemovesNamedGuard(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(dataGuard("g1", "secret"))
	reg.Register(dataGuard("g2", "secret"))

	sel, err := Select(reg, secmodel.OperationContext{Type: "show"},
		[]inputLabels{{name: "x", labels: []string{"secret"}}},
		secmodel.TimingBefore, secmodel.GuardOverride{Except: []string{"@g1"}})
	require.NoError(t, err)
	require.Len(t, sel.PerInput["x"], 1)
	assert.Equal(t, "g2", sel.PerInput["x"][0].ID)
}

func TestSelect_OnlyAndExceptTogetherIsAConfigError(t *testing.T) {
	reg := guardregistry.New()
	_, err := Select(reg, secmodel.OperationContext{}, nil, secmodel.TimingBefore,
		secmodel.GuardOverride{Only: []string{"@a"}, Except: []string{"@b"}})
	assert.Error(t, err)
}

func TestSelect_OverrideNameMissingAtPrefixIsAConfigError(t *testing.T) {
	reg := guardregistry.New()
	_, err := Select(reg, secmodel.OperationContext{}, nil, secmodel.TimingBefore,
		secmodel.GuardOverride{Only: []string{"g1"}})
	assert.Error(t, err)
}

func TestRejectStreamingAfter_DeniesStreamingOperationWithApplicableAfterGuard(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(secmodel.GuardDefinition{
		ID: "g1", Name: "g1", Scope: secmodel.ScopePerInput,
		FilterKind: secmodel.FilterLabel, FilterValue: "secret", Timing: secmodel.TimingAfter,
	})
	op := secmodel.OperationContext{Type: "show", Metadata: map[string]any{"streaming": true}}

	sel, err := Select(reg, op, []inputLabels{{name: "x", labels: []string{"secret"}}}, secmodel.TimingAfter, secmodel.GuardOverride{})
	require.NoError(t, err)

	err = RejectStreamingAfter(op, sel, secmodel.TimingAfter)
	assert.Error(t, err)
}

func TestRejectStreamingAfter_AllowsNonStreamingOperation(t *testing.T) {
	reg := guardregistry.New()
	reg.Register(secmodel.GuardDefinition{
		ID: "g1", Name: "g1", Scope: secmodel.ScopePerInput,
		FilterKind: secmodel.FilterLabel, FilterValue: "secret", Timing: secmodel.TimingAfter,
	})
	op := secmodel.OperationContext{Type: "show"}

	sel, err := Select(reg, op, []inputLabels{{name: "x", labels: []string{"secret"}}}, secmodel.TimingAfter, secmodel.GuardOverride{})
	require.NoError(t, err)
	assert.NoError(t, RejectStreamingAfter(op, sel, secmodel.TimingAfter))
}
