package scripting

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Script environments. Field tags are the identifiers visible to scripts.
type filterEnv struct {
	Value any            `expr:"value"`
	Args  map[string]any `expr:"args"`
	Times uint64         `expr:"times"`
}

type testerEnv struct {
	Value  any    `expr:"value"`
	Params []any  `expr:"params"`
	Times  uint64 `expr:"times"`
}

type functionEnv struct {
	Args  map[string]any `expr:"args"`
	Times uint64         `expr:"times"`
}

// Script is a hook backed by a compiled expression. Expressions have no
// statements or loops of their own, so every invocation terminates.
type Script struct {
	name    string
	kind    Kind
	source  string
	program *vm.Program
}

// Compile compiles source for the given hook kind. Shortcodes are templates,
// not scripts, and cannot be compiled here.
func Compile(kind Kind, name, source string) (*Script, error) {
	var opts []expr.Option
	switch kind {
	case KindFilter:
		opts = append(opts, expr.Env(filterEnv{}))
	case KindTester:
		opts = append(opts, expr.Env(testerEnv{}), expr.AsBool())
	case KindFunction:
		opts = append(opts, expr.Env(functionEnv{}))
	default:
		return nil, fmt.Errorf("hook kind %q is not scriptable", kind)
	}

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %s %q: %w", kind, name, err)
	}
	return &Script{name: name, kind: kind, source: source, program: program}, nil
}

func (s *Script) Name() string   { return s.name }
func (s *Script) Kind() Kind     { return s.kind }
func (s *Script) Source() string { return s.source }

// Invoke runs the compiled program with the environment of its kind.
func (s *Script) Invoke(in Inputs) (any, error) {
	var env any
	switch s.kind {
	case KindFilter:
		env = filterEnv{Value: in.Value, Args: nonNilArgs(in.Args), Times: in.Times}
	case KindTester:
		env = testerEnv{Value: in.Value, Params: in.Params, Times: in.Times}
	default:
		env = functionEnv{Args: nonNilArgs(in.Args), Times: in.Times}
	}

	out, err := expr.Run(s.program, env)
	if err != nil {
		return nil, err
	}
	if s.kind == KindTester {
		if _, ok := out.(bool); !ok {
			return nil, fmt.Errorf("%w, got %T", ErrNotBool, out)
		}
	}
	return out, nil
}

func nonNilArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
