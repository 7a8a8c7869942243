// Package scripting hosts the theme extension points: named filters, testers,
// functions and shortcodes. The template engine talks to them only through
// Evaluator, so the scripting backend can change without touching rendering.
package scripting

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the extension point a hook is registered under.
type Kind string

const (
	KindFilter    Kind = "filter"
	KindTester    Kind = "tester"
	KindFunction  Kind = "function"
	KindShortcode Kind = "shortcode"
)

// Kinds lists every hook kind in registration order.
var Kinds = []Kind{KindFilter, KindTester, KindFunction, KindShortcode}

var (
	// ErrUnknownHook is returned when evaluating a name that was never registered.
	ErrUnknownHook = stderrors.New("unknown hook")
	// ErrDuplicateHook is returned when a name is registered twice for one kind.
	ErrDuplicateHook = stderrors.New("duplicate hook")
	// ErrNotBool is returned when a tester yields a non-boolean value.
	ErrNotBool = stderrors.New("tester must return a bool")
)

// Inputs carries one invocation's arguments.
//
// Times is the number of earlier invocations of the same registration. It is
// read before the counter is incremented, so the first call sees 0. Every
// invocation takes a value, including one that fails; concurrent calls each
// see a distinct value.
type Inputs struct {
	Value  any            // piped value (filters, testers)
	Args   map[string]any // named arguments
	Params []any          // positional tester parameters
	Times  uint64
}

// Hook is one named extension.
type Hook interface {
	Name() string
	Kind() Kind
	Invoke(in Inputs) (any, error)
}

// Evaluator is the capability the template engine depends on.
type Evaluator interface {
	Evaluate(kind Kind, name string, in Inputs) (any, error)
}

// Func is the signature of a built-in hook.
type Func func(in Inputs) (any, error)

// Builtin is a hook implemented in Go.
type Builtin struct {
	name string
	kind Kind
	fn   Func
}

// NewBuiltin wraps fn as a hook.
func NewBuiltin(kind Kind, name string, fn Func) *Builtin {
	return &Builtin{name: name, kind: kind, fn: fn}
}

func (b *Builtin) Name() string { return b.name }
func (b *Builtin) Kind() Kind   { return b.kind }

func (b *Builtin) Invoke(in Inputs) (any, error) {
	out, err := b.fn(in)
	if err != nil {
		return nil, err
	}
	if b.kind == KindTester {
		if _, ok := out.(bool); !ok {
			return nil, fmt.Errorf("%w, got %T", ErrNotBool, out)
		}
	}
	return out, nil
}
