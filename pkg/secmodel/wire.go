package secmodel

// SerializedGuard is the wire format for GuardRegistry import/export
// between modules.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type SerializedGuard struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Scope       GuardScope `json:"scope"`
	FilterKind  FilterKind `json:"filterKind"`
	FilterValue string     `json:"filterValue"`
	Timing      Timing     `json:"timing"`
	Privileged  bool       `json:"privileged,omitempty"`
	Block       Block      `json:"block"`
}

// ToDefinition converts a wire-format guard into a GuardDefinition.
func (s SerializedGuard) ToDefinition() GuardDefinition {
	return GuardDefinition{
		ID:          s.ID,
		Name:        s.Name,
		Scope:       s.Scope,
		FilterKind:  s.FilterKind,
		FilterValue: s.FilterValue,
		Timing:      s.Timing,
		Privileged:  s.Privileged,
		Block:       s.Block,
	}
}

// FromDefinition converts a GuardDefinition into its wire format.
func FromDefinition(d GuardDefinition) SerializedGuard {
	return SerializedGuard{
		ID:          d.ID,
		Name:        d.Name,
		Scope:       d.Scope,
		FilterKind:  d.FilterKind,
		FilterValue: d.FilterValue,
		Timing:      d.Timing,
		Privileged:  d.Privileged,
		Block:       d.Block,
	}
}

// GuardOverride is the `with: { guards: ... }` call-site override clause.
// At most one of Disable/Only/Except is set (the zero value means no override);
// Only and Except are mutually exclusive by construction rules enforced in
// internal/guardeval.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type GuardOverride struct {
	Disable bool     `json:"disable,omitempty"` // `guards: false`
	Only    []string `json:"only,omitempty"`    // `guards: { only: [@a, @b] }`
	Except  []string `json:"except,omitempty"`  // `guards: { except: [@a] }`
}

// HasOnly/HasExcept report which (if either) list is populated.
func (o GuardOverride) HasOnly() bool   { return len(o.Only) > 0 }
func (o GuardOverride) HasExcept() bool { return len(o.Except) > 0 }

// AttemptRecord is the per-(operation identity × scope × variable identity)
// bookkeeping the RetryCoordinator owns.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type AttemptRecord struct {
	NextAttempt int      `json:"nextAttempt"`
	History     []string `json:"history"` // hint history, oldest first
	Max         int      `json:"max"`
}
