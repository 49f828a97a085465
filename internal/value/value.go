// Package value implements the StructuredValue contract: the
// single runtime representation every value crossing a component boundary
// is wrapped into.
package value

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Wrap returns a structured value for v. Wrapping an already-structured
// value is idempotent: fields only refine (typeHint/text/metadata) when
// explicitly supplied, never overwritten with zero values.
func Wrap(v any, typeHint secmodel.ValueType, text string, metadata *secmodel.ValueMetadata) *secmodel.StructuredValue {
	if sv, ok := v.(*secmodel.StructuredValue); ok {
		out := *sv
		if typeHint != "" {
			out.Type = typeHint
		}
		if text != "" {
			out.Text = text
		}
		if metadata != nil {
			out.Metadata = *metadata
		}
		ApplySecurityDescriptor(&out, out.Metadata.Security)
		return &out
	}
	return Ensure(v, typeHint, text, metadata)
}

// Ensure is the total version of Wrap: it handles nil, primitives, arrays,
// and objects, never panicking.
func Ensure(v any, typeHint secmodel.ValueType, text string, metadata *secmodel.ValueMetadata) *secmodel.StructuredValue {
	if sv, ok := v.(*secmodel.StructuredValue); ok {
		return Wrap(sv, typeHint, text, metadata)
	}

	out := &secmodel.StructuredValue{Data: v}
	out.SetCreatedAt(time.Now())

	switch t := v.(type) {
	case nil:
		out.Type = defaultType(typeHint, secmodel.ValueText)
		out.Text = defaultText(text, "")
	case string:
		out.Type = defaultType(typeHint, secmodel.ValueText)
		out.Text = defaultText(text, t)
		if out.Data == nil {
			out.Data = t
		}
	case bool:
		out.Type = defaultType(typeHint, secmodel.ValueBoolean)
		out.Text = defaultText(text, fmt.Sprintf("%v", t))
	case float64, int, int64:
		out.Type = defaultType(typeHint, secmodel.ValueNumber)
		out.Text = defaultText(text, fmt.Sprintf("%v", t))
	case []any:
		out.Type = defaultType(typeHint, secmodel.ValueArray)
		out.Text = defaultText(text, marshalBestEffort(t))
	case map[string]any:
		out.Type = defaultType(typeHint, secmodel.ValueObject)
		out.Text = defaultText(text, marshalBestEffort(t))
	default:
		out.Type = defaultType(typeHint, secmodel.ValueText)
		out.Text = defaultText(text, fmt.Sprintf("%v", t))
	}

	if metadata != nil {
		out.Metadata = *metadata
	}
	ApplySecurityDescriptor(out, out.Metadata.Security)
	return out
}

func defaultType(hint, fallback secmodel.ValueType) secmodel.ValueType {
	if hint != "" {
		return hint
	}
	return fallback
}

func defaultText(explicit, derived string) string {
	if explicit != "" {
		return explicit
	}
	return derived
}

func marshalBestEffort(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// AsText returns the text view of v. v may be a *StructuredValue or a raw
// Go value convertible to a structured one; the conversion never fails
// (matches Ensure's totality).
func AsText(v any) string {
	if v == nil {
		return ""
	}
	if sv, ok := v.(*secmodel.StructuredValue); ok {
		return sv.Text
	}
	return Ensure(v, "", "", nil).Text
}

// AsData returns the typed data view of v, erroring if v is not a
// structured value.
func AsData(v any) (any, error) {
	sv, ok := v.(*secmodel.StructuredValue)
	if !ok {
		return nil, fmt.Errorf("value.AsData: %T is not a structured value", v)
	}
	return sv.Data, nil
}

// AsDataTyped extracts the typed data view with a generic type parameter
// for call sites that know the expected Go type.
func AsDataTyped[T any](v any) (T, error) {
	var zero T
	data, err := AsData(v)
	if err != nil {
		return zero, err
	}
	typed, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("value.AsDataTyped: data is %T, not %T", data, zero)
	}
	return typed, nil
}

// ParseAndWrapJsonOptions controls ParseAndWrapJSON's strictness.
type ParseAndWrapJsonOptions struct {
	// Strict, when true, makes a non-JSON-looking or unparseable string
	// return (nil, false) instead of the original string wrapped as text.
	Strict bool
}

// ParseAndWrapJSON attempts a JSON parse when text syntactically looks
// like JSON (starts with '{', '[', '"', a digit, '-', "true", "false", or
// "null"); returns a structured value on success. On failure it returns the
// original string structured as text, unless Strict is set, in which case
// it returns (nil, false).
func ParseAndWrapJSON(text string, opts ParseAndWrapJsonOptions) (*secmodel.StructuredValue, bool) {
	trimmed := strings.TrimSpace(text)
	if !looksLikeJSON(trimmed) {
		if opts.Strict {
			return nil, false
		}
		return Ensure(text, secmodel.ValueText, text, nil), true
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		if opts.Strict {
			return nil, false
		}
		return Ensure(text, secmodel.ValueText, text, nil), true
	}

	vt := secmodel.ValueJSON
	switch parsed.(type) {
	case []any:
		vt = secmodel.ValueArray
	case map[string]any:
		vt = secmodel.ValueObject
	}
	return Ensure(parsed, vt, text, nil), true
}

func looksLikeJSON(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '{', '[', '"':
		return true
	}
	if s == "true" || s == "false" || s == "null" {
		return true
	}
	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		return true
	}
	return false
}

// ApplySecurityDescriptor replaces v's metadata.security with d and
// re-derives ctx.
func ApplySecurityDescriptor(v *secmodel.StructuredValue, d secmodel.SecurityDescriptor) {
	v.Metadata.Security = d
	v.SetCtx(secmodel.ValueContext{
		Type:     v.Type,
		Labels:   d.Labels,
		Taint:    d.Taint,
		Sources:  d.Sources,
		Policy:   d.PolicyContext,
		Filename: v.Metadata.Filename,
		URL:      v.Metadata.URL,
		Tokens:   v.Metadata.Tokens,
	})
}

// ExtractOptions controls ExtractSecurityDescriptor's traversal.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ExtractOptions struct {
	Recursive          bool
	MergeArrayElements bool
	Normalize          bool
}

// labeled is satisfied by anything exposing a SecurityDescriptor() method
// (such as variable.Variable); StructuredValue has its own case in collect.
type labeled interface {
	SecurityDescriptor() secmodel.SecurityDescriptor
}

// ExtractSecurityDescriptor walks v, collecting descriptors from nested
// structured values and objects that expose a SecurityDescriptor() method
// (Variable satisfies this; see internal/variable), and merges them.
func ExtractSecurityDescriptor(v any, opts ExtractOptions) secmodel.SecurityDescriptor {
	var found []secmodel.SecurityDescriptor
	collect(v, opts, &found)
	merged := security.Merge(found...)
	if opts.Normalize {
		merged = security.Normalize(merged)
	}
	return merged
}

func collect(v any, opts ExtractOptions, acc *[]secmodel.SecurityDescriptor) {
	switch t := v.(type) {
	case nil:
		return
	case *secmodel.StructuredValue:
		*acc = append(*acc, t.Metadata.Security)
		if opts.Recursive {
			collect(t.Data, opts, acc)
		}
	case labeled:
		*acc = append(*acc, t.SecurityDescriptor())
	case []any:
		if !opts.Recursive && !opts.MergeArrayElements {
			return
		}
		for _, el := range t {
			collect(el, opts, acc)
		}
	case map[string]any:
		if !opts.Recursive {
			return
		}
		for _, el := range t {
			collect(el, opts, acc)
		}
	}
}
