// Package environment implements the hierarchical scope chain every
// directive evaluates against: variable storage, the operation/guard/
// pipeline context stacks, guard-suppression recursion guarding, and effect
// emission.
package environment

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mlldlang/guardcore/internal/events"
	"github.com/mlldlang/guardcore/internal/hooks"
	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/internal/variable"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// Environment is one scope frame. CreateChild links a new frame to its
// parent; variable lookup walks up the chain, but writes always land in the
// frame they were called on (no implicit parent mutation).
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Environment struct {
	id     string
	parent *Environment

	mu        sync.RWMutex
	variables map[string]variable.Variable

	operationStack []secmodel.OperationContext
	guardStack     []secmodel.GuardContextSnapshot
	pipelineStack  []PipelineFrame
	deniedStack    []DeniedFrame

	suppressGuards bool

	hooks *hooks.Manager
	bus   *events.Bus
}

// PipelineFrame records one stage of an active pipeline, for guard scripts
// and error messages that need "which stage am I in" context.
type PipelineFrame struct {
	StageIndex int
	StageName  string
}

// DeniedFrame records a denial the environment is currently unwinding
// through, letting nested guard evaluation see that an enclosing operation
// was already denied.
type DeniedFrame struct {
	Operation secmodel.OperationContext
	Reason    string
}

// New creates a root environment with its own hook manager and event bus.
func New() *Environment {
	return &Environment{
		id:        uuid.New().String(),
		variables: make(map[string]variable.Variable),
		hooks:     hooks.NewManager(),
		bus:       events.NewBus(),
	}
}

// CreateChild returns a new environment scoped under e: variable reads fall
// through to e when not found locally; hooks and the event bus are shared
// with the root so subscribers see every scope's activity.
func (e *Environment) CreateChild() *Environment {
	return &Environment{
		id:        uuid.New().String(),
		parent:    e,
		variables: make(map[string]variable.Variable),
		hooks:     e.hooks,
		bus:       e.bus,
	}
}

// ID returns this frame's unique identifier.
func (e *Environment) ID() string {
	return e.id
}

// Hooks returns the shared hook manager for this environment chain.
func (e *Environment) Hooks() *hooks.Manager {
	return e.hooks
}

// Bus returns the shared event bus for this environment chain.
func (e *Environment) Bus() *events.Bus {
	return e.bus
}

// SetVariable binds name to v in this frame, emitting a variable-create
// event.
func (e *Environment) SetVariable(name string, v variable.Variable) {
	e.mu.Lock()
	e.variables[name] = v
	e.mu.Unlock()

	e.emit(events.KindVariableCreate, events.VariableCreatePayload{Name: name, Kind: string(v.Kind)})
}

// GetVariable looks up name in this frame, then walks up the parent chain.
// Found lookups emit a variable-access event.
func (e *Environment) GetVariable(name string) (variable.Variable, bool) {
	for env := e; env != nil; env = env.parent {
		env.mu.RLock()
		v, ok := env.variables[name]
		env.mu.RUnlock()
		if ok {
			e.emit(events.KindVariableAccess, events.VariableAccessPayload{Name: name})
			return v, true
		}
	}
	return variable.Variable{}, false
}

// HasVariable reports whether name is bound anywhere in the scope chain,
// without emitting an access event (a pure existence check).
func (e *Environment) HasVariable(name string) bool {
	for env := e; env != nil; env = env.parent {
		env.mu.RLock()
		_, ok := env.variables[name]
		env.mu.RUnlock()
		if ok {
			return true
		}
	}
	return false
}

// GetAllVariables returns every variable visible from this frame, with
// frames closer to e taking precedence over shadowed ancestor bindings.
func (e *Environment) GetAllVariables() map[string]variable.Variable {
	out := make(map[string]variable.Variable)
	var frames []*Environment
	for env := e; env != nil; env = env.parent {
		frames = append(frames, env)
	}
	for i := len(frames) - 1; i >= 0; i-- {
		frames[i].mu.RLock()
		for k, v := range frames[i].variables {
			out[k] = v
		}
		frames[i].mu.RUnlock()
	}
	return out
}

// WithOperation pushes op onto the operation stack for the duration of fn,
// always popping even if fn panics.
func (e *Environment) WithOperation(op secmodel.OperationContext, fn func()) {
	e.mu.Lock()
	e.operationStack = append(e.operationStack, op)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.operationStack = e.operationStack[:len(e.operationStack)-1]
		e.mu.Unlock()
	}()
	fn()
}

// CurrentOperation returns the innermost active operation context, if any.
func (e *Environment) CurrentOperation() (secmodel.OperationContext, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.operationStack) == 0 {
		return secmodel.OperationContext{}, false
	}
	return e.operationStack[len(e.operationStack)-1], true
}

// WithGuardContext pushes snap onto the guard context stack for fn's
// duration.
func (e *Environment) WithGuardContext(snap secmodel.GuardContextSnapshot, fn func()) {
	e.mu.Lock()
	e.guardStack = append(e.guardStack, snap)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.guardStack = e.guardStack[:len(e.guardStack)-1]
		e.mu.Unlock()
	}()
	fn()
}

// CurrentGuardContext returns the innermost active guard snapshot, if any.
func (e *Environment) CurrentGuardContext() (secmodel.GuardContextSnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.guardStack) == 0 {
		return secmodel.GuardContextSnapshot{}, false
	}
	return e.guardStack[len(e.guardStack)-1], true
}

// WithPipelineContext pushes frame onto the pipeline stack for fn's
// duration.
func (e *Environment) WithPipelineContext(frame PipelineFrame, fn func()) {
	e.mu.Lock()
	e.pipelineStack = append(e.pipelineStack, frame)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.pipelineStack = e.pipelineStack[:len(e.pipelineStack)-1]
		e.mu.Unlock()
	}()
	fn()
}

// CurrentPipelineFrame returns the innermost active pipeline frame, if any.
func (e *Environment) CurrentPipelineFrame() (PipelineFrame, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.pipelineStack) == 0 {
		return PipelineFrame{}, false
	}
	return e.pipelineStack[len(e.pipelineStack)-1], true
}

// WithDeniedContext pushes frame onto the denied stack for fn's duration.
func (e *Environment) WithDeniedContext(frame DeniedFrame, fn func()) {
	e.mu.Lock()
	e.deniedStack = append(e.deniedStack, frame)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.deniedStack = e.deniedStack[:len(e.deniedStack)-1]
		e.mu.Unlock()
	}()
	fn()
}

// InDeniedContext reports whether an enclosing operation is currently being
// unwound after a denial.
func (e *Environment) InDeniedContext() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.deniedStack) > 0
}

// ShouldSuppressGuards reports whether guard evaluation is currently
// suppressed in this frame (checked, not inherited automatically from the
// parent — see WithGuardSuppression).
func (e *Environment) ShouldSuppressGuards() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.suppressGuards
}

// WithGuardSuppression runs fn with guard evaluation suppressed in this
// frame, restoring the previous suppression state afterward. This is the
// recursion guard that stops a guard's own replacement-value construction
// from re-triggering the very guards that produced it.
func (e *Environment) WithGuardSuppression(fn func()) {
	e.mu.Lock()
	prev := e.suppressGuards
	e.suppressGuards = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.suppressGuards = prev
		e.mu.Unlock()
	}()
	fn()
}

// MergeSecurityDescriptors is a thin convenience wrapper so callers that
// only have an *Environment in scope don't need a separate import for the
// common "merge these descriptors" operation.
func MergeSecurityDescriptors(ds ...secmodel.SecurityDescriptor) secmodel.SecurityDescriptor {
	return security.Merge(ds...)
}

// emit publishes an event on the shared bus if one is configured.
func (e *Environment) emit(kind events.Kind, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Kind: kind, Payload: payload})
}

// EmitEffect is the public entry point directive evaluators use to report
// an effect (e.g. "export registered", "dynamic import resolved") without
// reaching into the bus directly.
func (e *Environment) EmitEffect(kind events.Kind, payload any) {
	e.emit(kind, payload)
}
