// Package events implements the debug event bus: typed, fire-and-forget
// notifications the environment emits as it runs (guard timing, directive
// lifecycle, variable traffic) for observability subscribers to consume.
package events

import (
	"sync"
	"time"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Kind is a closed enum of event kinds the environment can emit.
type Kind string

const (
	KindGuardBefore       Kind = "debug:guard:before"
	KindGuardAfter        Kind = "debug:guard:after"
	KindDirectiveStart    Kind = "debug:directive:start"
	KindDirectiveComplete Kind = "debug:directive:complete"
	KindVariableCreate    Kind = "debug:variable:create"
	KindVariableAccess    Kind = "debug:variable:access"
	KindExportRegistered  Kind = "debug:export:registered"
	KindImportDynamic     Kind = "debug:import:dynamic"
)

var validKinds = map[Kind]bool{
	KindGuardBefore: true, KindGuardAfter: true, KindDirectiveStart: true,
	KindDirectiveComplete: true, KindVariableCreate: true, KindVariableAccess: true,
	KindExportRegistered: true, KindImportDynamic: true,
}

// Valid reports whether k is a recognized event kind.
func (k Kind) Valid() bool {
	return validKinds[k]
}

// Event is the envelope carried to subscribers. Payload holds one of the
// Payload* structs below, keyed by Kind; subscribers type-assert to the
// kind(s) they care about.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}

// GuardBeforePayload is emitted once per guard immediately before its
// before-timing rules evaluate.
type GuardBeforePayload struct {
	GuardName string
	Operation secmodel.OperationContext
	Labels    []string
}

// GuardAfterPayload is emitted once per guard after its after-timing rules
// evaluate, carrying the resulting decision.
type GuardAfterPayload struct {
	GuardName string
	Operation secmodel.OperationContext
	Decision  secmodel.Decision
	Reason    string
}

// DirectiveStartPayload marks the start of a directive evaluation.
type DirectiveStartPayload struct {
	Name string
}

// DirectiveCompletePayload marks directive completion with elapsed time.
type DirectiveCompletePayload struct {
	Name     string
	Duration time.Duration
}

// VariableCreatePayload is emitted when a scope binds a new variable.
type VariableCreatePayload struct {
	Name string
	Kind string
}

// VariableAccessPayload is emitted when a variable is read.
type VariableAccessPayload struct {
	Name string
}

// ExportRegisteredPayload is emitted when a module export is registered.
type ExportRegisteredPayload struct {
	Name string
}

// ImportDynamicPayload is emitted when a dynamic import is resolved.
type ImportDynamicPayload struct {
	Source string
}

// Handler receives published events. Handlers must not block; the bus
// invokes them synchronously on the publishing goroutine.
type Handler func(Event)

// Bus fans events out to subscribers. Subscription lists are copied under
// lock before iteration so a handler registering another handler mid-publish
// never deadlocks or races, matching how this pack guards its own
// registration lists elsewhere.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers handler for kind. Handlers run in registration order.
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish emits ev.Kind to every subscriber, stamping Timestamp if unset.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[ev.Kind]))
	copy(handlers, b.handlers[ev.Kind])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
