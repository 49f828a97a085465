package variable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/internal/value"
	"github.com/mlldlang/guardcore/internal/variable"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func TestKind_Valid(t *testing.T) {
	assert.True(t, variable.KindFileContent.Valid())
	assert.True(t, variable.KindExecutable.Valid())
	assert.False(t, variable.Kind("bogus").Valid())
}

func TestNew_DefaultsContextFromValueSecurity(t *testing.T) {
	sv := value.Ensure("body", secmodel.ValueText, "body", nil)
	d := security.Make(security.MakeOptions{Labels: []string{"untrusted"}})
	value.ApplySecurityDescriptor(sv, d)

	v := variable.New("x", variable.KindFileContent, sv, variable.VarContext{})
	assert.Equal(t, d.Labels, v.Ctx.Labels)
}

func TestNew_ExplicitContextNotOverwritten(t *testing.T) {
	sv := value.Ensure("body", secmodel.ValueText, "body", nil)
	value.ApplySecurityDescriptor(sv, security.Make(security.MakeOptions{Labels: []string{"untrusted"}}))

	explicit := variable.VarContext{Labels: []string{"custom"}}
	v := variable.New("x", variable.KindFileContent, sv, explicit)
	assert.Equal(t, []string{"custom"}, v.Ctx.Labels)
}

func TestSecurityDescriptor_ProjectsCtx(t *testing.T) {
	v := variable.New("x", variable.KindPrimitive, nil, variable.VarContext{Labels: []string{"secret"}})
	d := v.SecurityDescriptor()
	assert.Equal(t, []string{"secret"}, d.Labels)
}

func TestWithContext_MergesRatherThanReplaces(t *testing.T) {
	v := variable.New("x", variable.KindPrimitive, nil, variable.VarContext{Labels: []string{"a"}})
	out := v.WithContext(secmodel.SecurityDescriptor{Labels: []string{"b"}})
	assert.ElementsMatch(t, []string{"a", "b"}, out.Ctx.Labels)
	assert.Equal(t, []string{"a"}, v.Ctx.Labels, "original must be unmodified")
}

func TestWithValue_LeavesContextUntouched(t *testing.T) {
	v := variable.New("x", variable.KindPrimitive, nil, variable.VarContext{Labels: []string{"a"}})
	sv := value.Ensure("y", secmodel.ValueText, "y", nil)
	out := v.WithValue(sv)
	assert.Equal(t, sv, out.Value)
	assert.Equal(t, []string{"a"}, out.Ctx.Labels)
}
