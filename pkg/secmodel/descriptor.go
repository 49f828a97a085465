// Package secmodel defines the wire-level data model shared across the
// guard core: security descriptors, structured values, operation contexts,
// and guard definitions. Types here are plain structs with JSON
// tags so a host (parser, CLI, language server) can marshal them without
// importing any evaluation logic.
package secmodel

// SecurityDescriptor is the immutable, ground-truth information-flow record
// attached to every value that crosses a guarded operation.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type SecurityDescriptor struct {
	Labels        []string       `json:"labels"`
	Taint         []string       `json:"taint"`
	Sources       []string       `json:"sources"`
	Capability    *Capability    `json:"capability,omitempty"`
	PolicyContext map[string]any `json:"policyContext,omitempty"`
}

// Capability identifies the capability exercised by an operation, carried
// on a descriptor so policy resolution can reason about it.
type Capability struct {
	Kind      string         `json:"kind"`
	Operation string         `json:"operation"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Empty returns true when the descriptor carries no labels, taint, or
// sources — the zero-information descriptor assigned to untouched values.
func (d SecurityDescriptor) Empty() bool {
	return len(d.Labels) == 0 && len(d.Taint) == 0 && len(d.Sources) == 0
}

// HasLabel reports whether the descriptor carries the given label.
func (d SecurityDescriptor) HasLabel(label string) bool {
	for _, l := range d.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// HasTaint reports whether the given tag is in the descriptor's taint set.
func (d SecurityDescriptor) HasTaint(tag string) bool {
	for _, t := range d.Taint {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the receiver's slices/maps.
func (d SecurityDescriptor) Clone() SecurityDescriptor {
	out := SecurityDescriptor{
		Labels:  append([]string(nil), d.Labels...),
		Taint:   append([]string(nil), d.Taint...),
		Sources: append([]string(nil), d.Sources...),
	}
	if d.Capability != nil {
		cap := *d.Capability
		if d.Capability.Metadata != nil {
			cap.Metadata = make(map[string]any, len(d.Capability.Metadata))
			for k, v := range d.Capability.Metadata {
				cap.Metadata[k] = v
			}
		}
		out.Capability = &cap
	}
	if d.PolicyContext != nil {
		out.PolicyContext = make(map[string]any, len(d.PolicyContext))
		for k, v := range d.PolicyContext {
			out.PolicyContext[k] = v
		}
	}
	return out
}
