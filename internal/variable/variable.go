// Package variable implements named bindings with kind tags and a mirrored
// security context, the unit the environment's scope chain stores and
// guards observe by name.
package variable

import (
	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Kind is a closed string-enum of variable kinds. New kinds require a new
// constant here, not a runtime string: closed-enum-with-Valid matches how
// this pack tags its own runtime unions rather than reaching for a sealed
// interface hierarchy.
type Kind string

const (
	KindSimpleText       Kind = "simple-text"
	KindInterpolatedText Kind = "interpolated-text"
	KindTemplate         Kind = "template"
	KindFileContent      Kind = "file-content"
	KindSectionContent   Kind = "section-content"
	KindObject           Kind = "object"
	KindArray            Kind = "array"
	KindPrimitive        Kind = "primitive"
	KindPath             Kind = "path"
	KindComputed         Kind = "computed"
	KindCommandResult    Kind = "command-result"
	KindPipelineInput    Kind = "pipeline-input"
	KindImported         Kind = "imported"
	KindExecutable       Kind = "executable"
)

var validKinds = map[Kind]bool{
	KindSimpleText: true, KindInterpolatedText: true, KindTemplate: true,
	KindFileContent: true, KindSectionContent: true, KindObject: true,
	KindArray: true, KindPrimitive: true, KindPath: true, KindComputed: true,
	KindCommandResult: true, KindPipelineInput: true, KindImported: true,
	KindExecutable: true,
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return validKinds[k]
}

// VarContext is the security-relevant projection of a Variable. New copies
// it from the value's metadata when none is given, and it is not re-synced
// afterwards; guard evaluation reads the StructuredValue's ctx, not this
// field (see DESIGN.md).
//
//nolint:govet // fieldalignment: struct layout is human-readable
type VarContext struct {
	Labels        []string
	Taint         []string
	Sources       []string
	PolicyContext map[string]any
}

// ToDescriptor projects vc into a SecurityDescriptor.
func (vc VarContext) ToDescriptor() secmodel.SecurityDescriptor {
	return secmodel.SecurityDescriptor{
		Labels:        vc.Labels,
		Taint:         vc.Taint,
		Sources:       vc.Sources,
		PolicyContext: vc.PolicyContext,
	}
}

// FromDescriptor builds a VarContext from a SecurityDescriptor.
func FromDescriptor(d secmodel.SecurityDescriptor) VarContext {
	return VarContext{Labels: d.Labels, Taint: d.Taint, Sources: d.Sources, PolicyContext: d.PolicyContext}
}

// Variable is a named, kinded binding carrying both a value and a
// security context. Scope storage keys on Name within one scope frame;
// shadowing across frames is an environment concern, not a Variable one.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Variable struct {
	Name  string
	Kind  Kind
	Value *secmodel.StructuredValue
	Ctx   VarContext
}

// New constructs a Variable, defaulting Ctx from value's own security
// metadata when ctx is the zero value and value is non-nil.
func New(name string, kind Kind, value *secmodel.StructuredValue, ctx VarContext) Variable {
	v := Variable{Name: name, Kind: kind, Value: value, Ctx: ctx}
	if isZeroContext(ctx) && value != nil {
		v.Ctx = FromDescriptor(value.Metadata.Security)
	}
	return v
}

func isZeroContext(ctx VarContext) bool {
	return ctx.Labels == nil && ctx.Taint == nil && ctx.Sources == nil && ctx.PolicyContext == nil
}

// SecurityDescriptor satisfies internal/value's `labeled` interface so a
// Variable nested inside an object or array is picked up by
// ExtractSecurityDescriptor without special-casing Variable there.
func (v Variable) SecurityDescriptor() secmodel.SecurityDescriptor {
	return v.Ctx.ToDescriptor()
}

// WithContext returns a copy of v with its context replaced by merging in
// extra.
func (v Variable) WithContext(extra secmodel.SecurityDescriptor) Variable {
	merged := security.Merge(v.Ctx.ToDescriptor(), extra)
	out := v
	out.Ctx = FromDescriptor(merged)
	return out
}

// WithValue returns a copy of v with its value replaced, leaving Ctx
// untouched; callers that also need the context updated should chain
// WithContext.
func (v Variable) WithValue(value *secmodel.StructuredValue) Variable {
	out := v
	out.Value = value
	return out
}
