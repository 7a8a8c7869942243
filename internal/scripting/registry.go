package scripting

import (
	"fmt"
	"sort"
	"sync/atomic"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// registration owns the invocation counter of one hook.
type registration struct {
	hook  Hook
	calls atomic.Uint64
}

// Registry holds every hook of a theme. Registration happens while the theme
// loads; afterwards the registry is read-only and Evaluate is safe for
// concurrent use.
type Registry struct {
	hooks map[Kind]map[string]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{hooks: make(map[Kind]map[string]*registration, len(Kinds))}
	for _, k := range Kinds {
		r.hooks[k] = make(map[string]*registration)
	}
	return r
}

// Register adds h under its kind and name.
func (r *Registry) Register(h Hook) error {
	byName, ok := r.hooks[h.Kind()]
	if !ok {
		return fmt.Errorf("register %q: unknown hook kind %q", h.Name(), h.Kind())
	}
	if _, dup := byName[h.Name()]; dup {
		return fmt.Errorf("%w: %s %q", ErrDuplicateHook, h.Kind(), h.Name())
	}
	byName[h.Name()] = &registration{hook: h}
	return nil
}

// Evaluate invokes a hook. The counter is read and incremented atomically
// before the call, so Inputs.Times counts earlier invocations only.
func (r *Registry) Evaluate(kind Kind, name string, in Inputs) (any, error) {
	reg, ok := r.hooks[kind][name]
	if !ok {
		return nil, errors.ScriptError("hook not registered").
			WithCause(ErrUnknownHook).
			WithContext("hook", name).
			WithContext("kind", string(kind)).
			Build()
	}
	in.Times = reg.calls.Add(1) - 1

	out, err := reg.hook.Invoke(in)
	if err != nil {
		return nil, errors.ScriptError("hook failed").
			WithCause(err).
			WithContext("hook", name).
			WithContext("kind", string(kind)).
			Build()
	}
	return out, nil
}

// Has reports whether a hook is registered.
func (r *Registry) Has(kind Kind, name string) bool {
	_, ok := r.hooks[kind][name]
	return ok
}

// Names returns the registered names of a kind, sorted.
func (r *Registry) Names(kind Kind) []string {
	names := make([]string, 0, len(r.hooks[kind]))
	for n := range r.hooks[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Calls returns how many times a hook has been invoked.
func (r *Registry) Calls(kind Kind, name string) uint64 {
	if reg, ok := r.hooks[kind][name]; ok {
		return reg.calls.Load()
	}
	return 0
}

// Len returns the total number of registered hooks.
func (r *Registry) Len() int {
	n := 0
	for _, byName := range r.hooks {
		n += len(byName)
	}
	return n
}
