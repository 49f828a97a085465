package secmodel

import "time"

// ValueType is the open string-enum of structured value kinds.
// New host-defined types are valid; "text" is the default.
type ValueType string

const (
	ValueText    ValueType = "text"
	ValueJSON    ValueType = "json"
	ValueArray   ValueType = "array"
	ValueObject  ValueType = "object"
	ValueNumber  ValueType = "number"
	ValueBoolean ValueType = "boolean"
	ValueCSV     ValueType = "csv"
	ValueXML     ValueType = "xml"
	ValueHTML    ValueType = "html"
)

// ValueMetadata is the immutable record carried alongside a StructuredValue:
// origin, file/URL fields, token counts, and the embedded security descriptor.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ValueMetadata struct {
	Source   string             `json:"source,omitempty"` // e.g. "load-content"
	Filename string             `json:"filename,omitempty"`
	URL      string             `json:"url,omitempty"`
	Tokens   int                `json:"tokens,omitempty"`
	Security SecurityDescriptor `json:"security"`
	Extra    map[string]any     `json:"extra,omitempty"`
}

// ValueContext is the derived, flattened projection of ValueMetadata.Security
// exposed to interpolation/guard scripts as "ctx". It is always kept in sync
// with Metadata.Security via applySecurityDescriptorToStructuredValue-style
// updates (see internal/value).
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ValueContext struct {
	Type     ValueType      `json:"type"`
	Labels   []string       `json:"labels"`
	Taint    []string       `json:"taint"`
	Sources  []string       `json:"sources"`
	Policy   map[string]any `json:"policy,omitempty"`
	Filename string         `json:"filename,omitempty"`
	URL      string         `json:"url,omitempty"`
	Tokens   int            `json:"tokens,omitempty"`
}

// StructuredValue is the universal runtime container pairing a text view
// with a typed data view, metadata, and a derived security context
//. Data holds `any` rather than a Go generic type parameter: the
// pack's JSON-heavy structs never use generics, and the host's values are
// JSON-shaped (string/float64/bool/map/slice/nil) by construction, so a
// generic StructuredValue[T] would buy type safety the call sites can't
// actually use.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type StructuredValue struct {
	Type     ValueType
	Text     string
	Data     any
	Metadata ValueMetadata

	// ctx is the derived projection; always recomputed from Metadata.Security,
	// never set directly — see internal/value.ApplySecurityDescriptor.
	ctx ValueContext

	// internal is non-enumerable scratch space for the runtime; it never
	// participates in equality, JSON marshaling, or the security algebra.
	internal map[string]any

	createdAt time.Time
}

// Ctx returns the derived security/context projection for this value.
func (v *StructuredValue) Ctx() ValueContext {
	return v.ctx
}

// SetCtx is for internal/value's exclusive use when re-deriving the context
// after a descriptor change; exported only within the module via the
// internal/value package, never called directly by guard scripts.
func (v *StructuredValue) SetCtx(ctx ValueContext) {
	v.ctx = ctx
}

// Internal returns the scratch map, creating it on first use.
func (v *StructuredValue) Internal() map[string]any {
	if v.internal == nil {
		v.internal = make(map[string]any)
	}
	return v.internal
}

// String implements fmt.Stringer for debug printing only; semantic callers
// must use internal/value.AsText, never rely on this method.
func (v *StructuredValue) String() string {
	if v == nil {
		return ""
	}
	return v.Text
}

// CreatedAt reports when the value was wrapped, defaulting to unset (zero
// time) for values built outside internal/value.Wrap/Ensure.
func (v *StructuredValue) CreatedAt() time.Time { return v.createdAt }

// SetCreatedAt is used by internal/value when constructing a new value.
func (v *StructuredValue) SetCreatedAt(t time.Time) { v.createdAt = t }
