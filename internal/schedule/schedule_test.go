package schedule

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/observability"
	"git.home.luguber.info/inful/moklog/internal/source"
)

type fakePuller struct {
	results []source.Result
	err     error
	calls   int
}

func (p *fakePuller) Pull(context.Context) (source.Result, error) {
	if p.err != nil {
		return source.Result{}, p.err
	}
	res := p.results[p.calls%len(p.results)]
	p.calls++
	return res, nil
}

type fakeBuilder struct {
	calls   atomic.Int32
	trigger atomic.Value
}

func (b *fakeBuilder) Build(ctx context.Context) (*build.Report, error) {
	b.calls.Add(1)
	b.trigger.Store(observability.GetContext(ctx).Trigger)
	return &build.Report{ID: "b"}, nil
}

func TestTick(t *testing.T) {
	t.Run("builds when content changed", func(t *testing.T) {
		b := &fakeBuilder{}
		s, err := New(&fakePuller{results: []source.Result{{Commit: "abc", Changed: true}}}, b)
		require.NoError(t, err)

		report, err := s.Tick(t.Context())
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, int32(1), b.calls.Load())
		assert.Equal(t, TriggerName, b.trigger.Load())
	})

	t.Run("skips build when unchanged", func(t *testing.T) {
		b := &fakeBuilder{}
		s, err := New(&fakePuller{results: []source.Result{{Commit: "abc"}}}, b)
		require.NoError(t, err)

		report, err := s.Tick(t.Context())
		require.NoError(t, err)
		assert.Nil(t, report)
		assert.Zero(t, b.calls.Load())
	})

	t.Run("pull failure skips build", func(t *testing.T) {
		b := &fakeBuilder{}
		s, err := New(&fakePuller{err: stderrors.New("unreachable")}, b)
		require.NoError(t, err)

		_, err = s.Tick(t.Context())
		require.Error(t, err)
		assert.Zero(t, b.calls.Load())
	})

	t.Run("no puller always builds", func(t *testing.T) {
		b := &fakeBuilder{}
		s, err := New(nil, b)
		require.NoError(t, err)

		_, err = s.Tick(t.Context())
		require.NoError(t, err)
		assert.Equal(t, int32(1), b.calls.Load())
	})
}

func TestEvery(t *testing.T) {
	t.Run("runs periodically", func(t *testing.T) {
		b := &fakeBuilder{}
		s, err := New(nil, b)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		id, err := s.Every(20 * time.Millisecond)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		s.Start(t.Context())
		require.Eventually(t, func() bool { return b.calls.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s, err := New(nil, &fakeBuilder{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		_, err = s.Every(0)
		require.Error(t, err)
	})
}
