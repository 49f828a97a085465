package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/internal/value"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func TestEnsure_FixedPointOnText(t *testing.T) {
	sv := value.Ensure("hello", secmodel.ValueText, "hello", nil)
	assert.Equal(t, "hello", value.AsText(sv))
	assert.Equal(t, secmodel.ValueText, sv.Type)
}

func TestWrap_IdempotentOnAlreadyStructured(t *testing.T) {
	sv := value.Ensure("hi", secmodel.ValueText, "hi", nil)
	rewrapped := value.Wrap(sv, "", "", nil)
	assert.Equal(t, sv.Type, rewrapped.Type)
	assert.Equal(t, sv.Text, rewrapped.Text)
}

func TestWrap_RefinesOnlyExplicitFields(t *testing.T) {
	sv := value.Ensure(map[string]any{"a": 1}, secmodel.ValueObject, "", nil)
	refined := value.Wrap(sv, "", "custom text", nil)
	assert.Equal(t, secmodel.ValueObject, refined.Type)
	assert.Equal(t, "custom text", refined.Text)
}

func TestEnsure_HandlesNilAndPrimitives(t *testing.T) {
	assert.Equal(t, "", value.AsText(value.Ensure(nil, "", "", nil)))
	assert.Equal(t, "true", value.AsText(value.Ensure(true, "", "", nil)))
	assert.Equal(t, secmodel.ValueBoolean, value.Ensure(true, "", "", nil).Type)
}

func TestAsData_ErrorsOnUnstructuredInput(t *testing.T) {
	_, err := value.AsData("raw string")
	require.Error(t, err)
}

func TestAsData_ReturnsTypedDataView(t *testing.T) {
	sv := value.Ensure(map[string]any{"k": "v"}, secmodel.ValueObject, "", nil)
	data, err := value.AsData(sv)
	require.NoError(t, err)
	m, ok := data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", m["k"])
}

func TestAsDataTyped_TypeMismatchErrors(t *testing.T) {
	sv := value.Ensure("text", secmodel.ValueText, "text", nil)
	_, err := value.AsDataTyped[map[string]any](sv)
	require.Error(t, err)
}

func TestParseAndWrapJSON_ParsesObjectLikeText(t *testing.T) {
	sv, ok := value.ParseAndWrapJSON(`{"a": 1}`, value.ParseAndWrapJsonOptions{})
	require.True(t, ok)
	assert.Equal(t, secmodel.ValueObject, sv.Type)
	m, err := value.AsData(sv)
	require.NoError(t, err)
	assert.Equal(t, float64(1), m.(map[string]any)["a"])
}

func TestParseAndWrapJSON_NonJSONPassthrough(t *testing.T) {
	sv, ok := value.ParseAndWrapJSON("plain text", value.ParseAndWrapJsonOptions{})
	require.True(t, ok)
	assert.Equal(t, secmodel.ValueText, sv.Type)
	assert.Equal(t, "plain text", sv.Text)
}

func TestParseAndWrapJSON_StrictRejectsNonJSON(t *testing.T) {
	sv, ok := value.ParseAndWrapJSON("plain text", value.ParseAndWrapJsonOptions{Strict: true})
	assert.False(t, ok)
	assert.Nil(t, sv)
}

func TestParseAndWrapJSON_StrictRejectsMalformedJSONLookingText(t *testing.T) {
	sv, ok := value.ParseAndWrapJSON(`{"a": `, value.ParseAndWrapJsonOptions{Strict: true})
	assert.False(t, ok)
	assert.Nil(t, sv)
}

func TestApplySecurityDescriptor_SyncsCtx(t *testing.T) {
	sv := value.Ensure("x", secmodel.ValueText, "x", nil)
	d := security.Make(security.MakeOptions{Labels: []string{"untrusted"}})
	value.ApplySecurityDescriptor(sv, d)
	assert.Equal(t, d.Labels, sv.Ctx().Labels)
	assert.Equal(t, d.Taint, sv.Ctx().Taint)
}

func TestExtractSecurityDescriptor_MergesNestedStructuredValues(t *testing.T) {
	inner := value.Ensure("secret-data", secmodel.ValueText, "secret-data", nil)
	value.ApplySecurityDescriptor(inner, security.Make(security.MakeOptions{Labels: []string{"secret"}}))

	outer := []any{inner}
	d := value.ExtractSecurityDescriptor(outer, value.ExtractOptions{Recursive: true, MergeArrayElements: true})
	assert.Contains(t, d.Labels, "secret")
}

func TestExtractSecurityDescriptor_NonRecursiveIgnoresArrayElements(t *testing.T) {
	inner := value.Ensure("secret-data", secmodel.ValueText, "secret-data", nil)
	value.ApplySecurityDescriptor(inner, security.Make(security.MakeOptions{Labels: []string{"secret"}}))

	outer := []any{inner}
	d := value.ExtractSecurityDescriptor(outer, value.ExtractOptions{})
	assert.Empty(t, d.Labels)
}
