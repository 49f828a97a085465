package secmodel

// OperationContext describes the observable operation a guard evaluates
// against.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type OperationContext struct {
	Type     string         `json:"type"`    // directive kind, e.g. "show", "run", "exe"
	Subtype  string         `json:"subtype"` // e.g. "runCommand", "runExec", "runCode"
	Name     string         `json:"name,omitempty"`
	Labels   []string       `json:"labels,omitempty"`   // from call-site metadata
	Metadata map[string]any `json:"metadata,omitempty"` // runSubtype, language, streaming, sourceRetryable, trace, ...
}

// Streaming reports whether this operation is marked streaming via metadata.
func (o OperationContext) Streaming() bool {
	if o.Metadata == nil {
		return false
	}
	v, _ := o.Metadata["streaming"].(bool)
	return v
}

// SourceRetryable reports whether the operation's source declared itself
// retryable. Nothing in this module reads it: guard evaluation turns a
// retry into a deny only when the retry ceiling is reached.
func (o OperationContext) SourceRetryable() bool {
	if o.Metadata == nil {
		return false
	}
	v, _ := o.Metadata["sourceRetryable"].(bool)
	return v
}

// HasLabel reports whether the operation's call-site labels include label.
func (o OperationContext) HasLabel(label string) bool {
	for _, l := range o.Labels {
		if l == label {
			return true
		}
	}
	return false
}
