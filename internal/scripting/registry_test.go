package scripting

import (
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

func mustCompile(t *testing.T, kind Kind, name, src string) *Script {
	t.Helper()
	s, err := Compile(kind, name, src)
	require.NoError(t, err)
	return s
}

func TestCompileRejectsBrokenScripts(t *testing.T) {
	_, err := Compile(KindFilter, "broken", "value +")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)

	_, err = Compile(KindTester, "not_bool", `"text"`)
	require.Error(t, err)

	_, err = Compile(KindShortcode, "box", "value")
	require.Error(t, err)
}

func TestFilterEnvironment(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustCompile(t, KindFilter, "shout", `upper(value) + args["suffix"]`)))

	out, err := r.Evaluate(KindFilter, "shout", Inputs{Value: "hi", Args: map[string]any{"suffix": "!"}})
	require.NoError(t, err)
	assert.Equal(t, "HI!", out)
}

// The first invocation observes zero for every hook kind.
func TestCounterReadBeforeIncrement(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustCompile(t, KindFilter, "nth", `times`)))
	require.NoError(t, r.Register(mustCompile(t, KindTester, "first", `times == 0`)))
	require.NoError(t, r.Register(mustCompile(t, KindFunction, "count", `times`)))
	require.NoError(t, r.Register(NewBuiltin(KindShortcode, "box", func(in Inputs) (any, error) {
		return in.Times, nil
	})))

	for _, kind := range Kinds {
		for want := uint64(0); want < 3; want++ {
			out, err := r.Evaluate(kind, r.Names(kind)[0], Inputs{})
			require.NoError(t, err)
			if kind == KindTester {
				assert.Equal(t, want == 0, out)
				continue
			}
			assert.EqualValues(t, want, out, "kind %s call %d", kind, want)
		}
		assert.EqualValues(t, 3, r.Calls(kind, r.Names(kind)[0]))
	}
}

func TestFailedCallConsumesCount(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewBuiltin(KindFunction, "flaky", func(in Inputs) (any, error) {
		if in.Times == 0 {
			return nil, stderrors.New("first call fails")
		}
		return in.Times, nil
	})))

	_, err := r.Evaluate(KindFunction, "flaky", Inputs{})
	require.Error(t, err)

	out, err := r.Evaluate(KindFunction, "flaky", Inputs{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out)
	assert.EqualValues(t, 2, r.Calls(KindFunction, "flaky"))
}

func TestCountersAreScopedPerHook(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustCompile(t, KindFunction, "a", `times`)))
	require.NoError(t, r.Register(mustCompile(t, KindFunction, "b", `times`)))

	_, err := r.Evaluate(KindFunction, "a", Inputs{})
	require.NoError(t, err)
	_, err = r.Evaluate(KindFunction, "a", Inputs{})
	require.NoError(t, err)

	out, err := r.Evaluate(KindFunction, "b", Inputs{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, out)
}

func TestConcurrentEvaluateSeesEveryCount(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustCompile(t, KindFunction, "seq", `times`)))

	const n = 64
	seen := make([]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.Evaluate(KindFunction, "seq", Inputs{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[out.(uint64)] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	for i, ok := range seen {
		assert.True(t, ok, "count %d never observed", i)
	}
}

func TestTesterParams(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustCompile(t, KindTester, "longer_than", `len(value) > params[0]`)))

	out, err := r.Evaluate(KindTester, "longer_than", Inputs{Value: "abcdef", Params: []any{3}})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestEvaluateErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Evaluate(KindFilter, "missing", Inputs{})
	require.ErrorIs(t, err, ErrUnknownHook)
	assert.True(t, errors.HasCategory(err, errors.CategoryScript))

	require.NoError(t, r.Register(NewBuiltin(KindTester, "liar", func(Inputs) (any, error) { return "yes", nil })))
	_, err = r.Evaluate(KindTester, "liar", Inputs{})
	require.ErrorIs(t, err, ErrNotBool)

	err = r.Register(NewBuiltin(KindTester, "liar", func(Inputs) (any, error) { return true, nil }))
	require.ErrorIs(t, err, ErrDuplicateHook)
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"zed", "alpha", "mid"} {
		require.NoError(t, r.Register(NewBuiltin(KindFunction, n, func(Inputs) (any, error) { return nil, nil })))
	}
	assert.Equal(t, "alpha,mid,zed", strings.Join(r.Names(KindFunction), ","))
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Has(KindFunction, "mid"))
	assert.False(t, r.Has(KindFilter, "mid"))
}
