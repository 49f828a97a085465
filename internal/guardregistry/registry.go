// Package guardregistry indexes registered guards by label, operation, and
// timing so selection never scans the full guard list.
package guardregistry

import (
	"sort"
	"strings"
	"sync"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Registry stores guard definitions and serves them back indexed by
// FilterKind and Timing. Thread-safe: registration can happen while guards
// are being looked up mid-evaluation (a guard script itself never
// registers, but host-driven hot-reload might).
type Registry struct {
	mu sync.RWMutex

	byID       map[string]secmodel.GuardDefinition
	byLabel    map[string][]string // label -> guard ids, registration order
	byOperation map[string][]string // normalized op key -> guard ids
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		byID:        make(map[string]secmodel.GuardDefinition),
		byLabel:     make(map[string][]string),
		byOperation: make(map[string][]string),
	}
}

// Register adds or replaces a guard definition. A new ID is indexed by its
// filter; registering a guard with an ID already present overwrites the old
// definition in place and leaves its index entries as they were (same
// position, and the old filter's bucket even if the filter changed).
func (r *Registry) Register(def secmodel.GuardDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.byID[def.ID]
	r.byID[def.ID] = def

	if existed {
		return
	}

	switch def.FilterKind {
	case secmodel.FilterLabel, secmodel.FilterOperationTag:
		r.byLabel[def.FilterValue] = append(r.byLabel[def.FilterValue], def.ID)
	case secmodel.FilterOp:
		key := opKey(def.FilterValue)
		r.byOperation[key] = append(r.byOperation[key], def.ID)
	}
}

// GetDataGuardsForTiming returns every perInput guard whose FilterKind is
// label-based and whose FilterValue is in labels, restricted to guards
// whose Timing matches at. Guards are grouped by label in the order labels
// lists them, in registration order within each label; across labels the
// result is not in overall registration order.
func (r *Registry) GetDataGuardsForTiming(labels []string, at secmodel.Timing) []secmodel.GuardDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	seen := make(map[string]bool)
	for _, l := range labels {
		for _, id := range r.byLabel[l] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return r.filterScopeTiming(ids, secmodel.ScopePerInput, at)
}

// GetOperationGuardsForTiming returns every perOperation guard registered
// against op (by normalized operation key or by one of op's labels),
// restricted to guards whose Timing matches at. Guards come grouped by
// lookup key (type, subtype, runCode language, then each label), in
// registration order within each key.
func (r *Registry) GetOperationGuardsForTiming(op secmodel.OperationContext, at secmodel.Timing) []secmodel.GuardDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	seen := make(map[string]bool)
	for _, id := range r.byOperation[opKey(op.Type)] {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if op.Subtype != "" {
		for _, id := range r.byOperation[opKey(op.Subtype)] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if lang, _ := op.Metadata["language"].(string); lang != "" && strings.EqualFold(op.Subtype, "runCode") {
		for _, id := range r.byOperation[opKey(lang)] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	for _, l := range op.Labels {
		for _, id := range r.byLabel[l] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	return r.filterScopeTiming(ids, secmodel.ScopePerOperation, at)
}

// GetBroadOperationGuardsForTiming returns every perOperation guard whose
// FilterKind is label-based and whose FilterValue is in labels, grouped by
// label in the order labels lists them (registration order within each
// label) — the broad-label sweep that complements
// GetOperationGuardsForTiming's operation-key lookup, letting a
// perOperation guard fire off any input's label rather than only the
// operation's own call-site labels.
func (r *Registry) GetBroadOperationGuardsForTiming(labels []string, at secmodel.Timing) []secmodel.GuardDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	seen := make(map[string]bool)
	for _, l := range labels {
		for _, id := range r.byLabel[l] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return r.filterScopeTiming(ids, secmodel.ScopePerOperation, at)
}

func (r *Registry) filterScopeTiming(ids []string, scope secmodel.GuardScope, at secmodel.Timing) []secmodel.GuardDefinition {
	out := make([]secmodel.GuardDefinition, 0, len(ids))
	for _, id := range ids {
		def := r.byID[id]
		if def.Scope != scope {
			continue
		}
		if !def.Timing.Matches(at) {
			continue
		}
		out = append(out, def)
	}
	return out
}

// Get returns a single guard definition by ID.
func (r *Registry) Get(id string) (secmodel.GuardDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byID[id]
	return def, ok
}

// All returns every registered guard, sorted by ID for deterministic
// serialization (registration order is preserved in the index slices, but
// export needs a single canonical order independent of index bucket).
func (r *Registry) All() []secmodel.GuardDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]secmodel.GuardDefinition, 0, len(r.byID))
	for _, def := range r.byID {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SerializeOwn exports every registered guard to wire format.
func (r *Registry) SerializeOwn() []secmodel.SerializedGuard {
	all := r.All()
	out := make([]secmodel.SerializedGuard, len(all))
	for i, def := range all {
		out[i] = secmodel.FromDefinition(def)
	}
	return out
}

// SerializeByNames exports only the named guards, skipping names not
// present (no error: a missing guard name is the caller's typo to find via
// the returned slice's shorter length, not a registry-level failure).
func (r *Registry) SerializeByNames(names []string) []secmodel.SerializedGuard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []secmodel.SerializedGuard
	for _, def := range r.byID {
		if want[def.Name] {
			out = append(out, secmodel.FromDefinition(def))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ImportSerialized registers a batch of wire-format guards, additive by ID:
// a guard whose ID is already present is skipped, never overwritten,
// because imports compose guard sets from other modules and must not let
// one module silently clobber another's guard.
func (r *Registry) ImportSerialized(guards []secmodel.SerializedGuard) {
	r.mu.Lock()
	existing := make(map[string]bool, len(r.byID))
	for id := range r.byID {
		existing[id] = true
	}
	r.mu.Unlock()

	for _, g := range guards {
		if existing[g.ID] {
			continue
		}
		r.Register(g.ToDefinition())
	}
}

// opKey normalizes an operation/subtype string for index lookup: lowercase,
// with the runtime's known synonyms folded together (run+runCommand share
// an index bucket with "cmd"; run+runExec* with "exec"). The runCode
// language key is added by GetOperationGuardsForTiming from the
// operation's "language" metadata, not here.
func opKey(s string) string {
	lower := strings.ToLower(s)
	switch lower {
	case "runcommand":
		return "cmd"
	case "runexec", "runexecutable":
		return "exec"
	default:
		if strings.HasPrefix(lower, "runexec") {
			return "exec"
		}
		return lower
	}
}
