// Package security implements the SecurityDescriptor algebra:
// construction, normalization, merging, and comparison. All operations are
// total — invalid input is silently normalized, never rejected.
package security

import (
	"sort"

	"github.com/mlldlang/guardcore/internal/config"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// MakeOptions carries the named arguments for constructing a descriptor:
// labels, taint, sources, policy context, and capability.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type MakeOptions struct {
	Labels        []string
	Taint         []string
	Sources       []string
	PolicyContext map[string]any
	Capability    *secmodel.Capability
}

// knownTaintLabels is the default taint-demanding set used when Taint is
// omitted from MakeOptions: labels that demand downstream enforcement
// wherever they appear, not just provenance bookkeeping.
var knownTaintLabels = map[string]bool{
	"untrusted":  true,
	"influenced": true,
	"secret":     true,
}

// Make builds a descriptor, deduplicating Labels/Sources and defaulting
// Taint to the labels that are in knownTaintLabels or carry the "src:"
// prefix when Taint is not supplied explicitly.
func Make(opts MakeOptions) secmodel.SecurityDescriptor {
	labels := dedupe(opts.Labels)

	var taint []string
	if opts.Taint != nil {
		taint = dedupe(opts.Taint)
	} else {
		for _, l := range labels {
			if knownTaintLabels[l] || hasPrefix(l, "src:") {
				taint = append(taint, l)
			}
		}
	}

	d := secmodel.SecurityDescriptor{
		Labels:        labels,
		Taint:         taint,
		Sources:       dedupeOrdered(opts.Sources),
		Capability:    opts.Capability,
		PolicyContext: opts.PolicyContext,
	}
	return d
}

// Merge combines descriptors: Labels/Taint = union, Sources = ordered
// union (first occurrence wins position), PolicyContext = right-biased
// shallow merge (later descriptors' keys win)
func Merge(ds ...secmodel.SecurityDescriptor) secmodel.SecurityDescriptor {
	var labels, taint, sources []string
	var policy map[string]any
	var capability *secmodel.Capability

	for _, d := range ds {
		labels = append(labels, d.Labels...)
		taint = append(taint, d.Taint...)
		sources = append(sources, d.Sources...)
		for k, v := range d.PolicyContext {
			if policy == nil {
				policy = make(map[string]any)
			}
			policy[k] = v
		}
		if d.Capability != nil {
			capability = d.Capability
		}
	}

	return secmodel.SecurityDescriptor{
		Labels:        dedupe(labels),
		Taint:         intersect(dedupe(taint), dedupe(labels)),
		Sources:       dedupeOrdered(sources),
		PolicyContext: policy,
		Capability:    capability,
	}
}

// Normalize returns the canonical form of d: sorted labels/taint, sources
// deduplicated but kept in first-occurrence order (sources are provenance
// trails — their order is meaningful, their labels are a set and are not).
func Normalize(d secmodel.SecurityDescriptor) secmodel.SecurityDescriptor {
	out := d.Clone()
	sort.Strings(out.Labels)
	sort.Strings(out.Taint)
	out.Sources = dedupeOrdered(out.Sources)
	return out
}

// Subsumes reports whether a is at least as restrictive as b: a's labels
// and taint are supersets of b's.
func Subsumes(a, b secmodel.SecurityDescriptor) bool {
	return isSuperset(a.Labels, b.Labels) && isSuperset(a.Taint, b.Taint)
}

// IsProtectedLabel reports whether label is in the configured protected set.
func IsProtectedLabel(cfg *config.Config, label string) bool {
	if cfg == nil {
		return false
	}
	return cfg.IsProtected(label)
}

// WithAddedLabels returns a copy of d with labels added (always allowed,
// regardless of guard privilege).
func WithAddedLabels(d secmodel.SecurityDescriptor, labels ...string) secmodel.SecurityDescriptor {
	out := d.Clone()
	out.Labels = dedupe(append(out.Labels, labels...))
	return out
}

// WithRemovedLabels returns a copy of d with the given labels removed from
// both Labels and Taint. Privilege/protected-label enforcement happens at
// the call site (internal/guardeval), not here: this function is a pure
// set operation with no policy awareness.
func WithRemovedLabels(d secmodel.SecurityDescriptor, labels ...string) secmodel.SecurityDescriptor {
	remove := make(map[string]bool, len(labels))
	for _, l := range labels {
		remove[l] = true
	}
	out := d.Clone()
	out.Labels = filterOut(out.Labels, remove)
	out.Taint = filterOut(out.Taint, remove)
	return out
}

// WithSource appends a source if not already present (first-occurrence
// semantics), used by guard replacements and label removals to record
// "guard:<name>".
func WithSource(d secmodel.SecurityDescriptor, source string) secmodel.SecurityDescriptor {
	out := d.Clone()
	out.Sources = dedupeOrdered(append(out.Sources, source))
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// dedupeOrdered removes duplicates preserving first occurrence, exactly
// the "sources" semantics the language requires everywhere.
func dedupeOrdered(in []string) []string {
	return dedupe(in)
}

func intersect(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

func isSuperset(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

func filterOut(in []string, remove map[string]bool) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !remove[v] {
			out = append(out, v)
		}
	}
	return out
}
