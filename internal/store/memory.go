package store

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/render"
)

// Memory is an in-process Store. Committed state is lost on exit.
type Memory struct {
	mu        sync.RWMutex
	artifacts []build.Artifact
	pages     map[string]render.Output
	feeds     map[string][]byte
	assets    map[string]*Asset
	links     map[string]string
	builds    []BuildRecord
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		pages:  make(map[string]render.Output),
		feeds:  make(map[string][]byte),
		assets: make(map[string]*Asset),
		links:  make(map[string]string),
	}
}

func (m *Memory) ListCurrentArtifacts(context.Context) ([]build.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]build.Artifact(nil), m.artifacts...), nil
}

func (m *Memory) Commit(ctx context.Context, b *build.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pages := make(map[string]render.Output, len(b.Pages))
	for _, o := range b.Pages {
		pages[o.Path] = o
	}
	feeds := make(map[string][]byte, len(b.Feeds))
	for _, f := range b.Feeds {
		feeds[f.Path] = f.Data
	}
	assets := make(map[string]*Asset, len(b.Assets))
	for _, a := range b.Assets {
		url := b.AssetURL(a)
		assets[url] = &Asset{URL: url, Hash: a.Hash, MediaType: a.MediaType, Data: a.Data}
	}
	links := make(map[string]string, len(b.Links))
	for p, url := range b.Links {
		links[p] = url
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append([]build.Artifact(nil), b.Artifacts...)
	m.pages = pages
	m.feeds = feeds
	m.assets = assets
	m.links = links
	m.builds = append(m.builds, recordOf(b, time.Now()))
	return nil
}

func (m *Memory) Page(_ context.Context, path string) (*render.Output, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.pages[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *Memory) Feed(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.feeds[path]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *Memory) Asset(_ context.Context, url string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[url]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) Links(context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.links))
	for p, url := range m.links {
		out[p] = url
	}
	return out, nil
}

func (m *Memory) Builds(_ context.Context, limit int) ([]BuildRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BuildRecord, 0, len(m.builds))
	for i := len(m.builds) - 1; i >= 0; i-- {
		out = append(out, m.builds[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
