package assets

import (
	"path"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// DefaultPrefix is the URL prefix assets are published under.
const DefaultPrefix = "/static/"

// StaticAsset is a content-addressed record. It is immutable once added.
type StaticAsset struct {
	Hash       uint64
	Name       string // rewritten {stem}.{hash}.{ext} name
	SourcePath string // first registered path carrying these bytes
	MediaType  string
	Data       []byte
}

// Prepared is the result of the pure half of registration.
type Prepared struct {
	Path      string // published path (output extension applied)
	Hash      uint64
	Name      string
	MediaType string
	Data      []byte
}

// Store maps relative paths and hashes to assets.
type Store struct {
	prefix    string
	optimizer *Optimizer

	mu     sync.RWMutex
	byHash map[uint64]*StaticAsset
	byPath map[string]*StaticAsset
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the URL prefix. It must start and end with '/'.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithOptimizer sets the optimizer used by Prepare.
func WithOptimizer(o *Optimizer) Option {
	return func(s *Store) { s.optimizer = o }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		prefix: DefaultPrefix,
		byHash: make(map[uint64]*StaticAsset),
		byPath: make(map[string]*StaticAsset),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.optimizer == nil {
		s.optimizer = NewOptimizer()
	}
	return s
}

// CleanPath normalizes a relative asset path: slash separated, no leading slash.
func CleanPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// Prepare optimizes and hashes data without touching the store.
// It returns (nil, nil) for content that is empty after optimization.
func (s *Store) Prepare(p string, data []byte) (*Prepared, error) {
	if len(data) == 0 {
		return nil, nil
	}
	p = CleanPath(p)
	outPath, out, err := s.optimizer.Optimize(p, data)
	if err != nil {
		return nil, errors.AssetError("asset optimization failed").
			WithCause(err).
			WithContext("path", p).
			Build()
	}
	if len(out) == 0 {
		return nil, nil
	}
	h := Hash(out)
	return &Prepared{
		Path:      outPath,
		Hash:      h,
		Name:      Name(path.Base(outPath), h),
		MediaType: MediaType(outPath),
		Data:      out,
	}, nil
}

// Add records a prepared asset. When the bytes are already known the existing
// record is reused and p.Path becomes another key for it.
func (s *Store) Add(p *Prepared) *StaticAsset {
	if p == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byHash[p.Hash]; ok {
		if _, taken := s.byPath[p.Path]; !taken {
			s.byPath[p.Path] = existing
		}
		return existing
	}
	if existing, taken := s.byPath[p.Path]; taken {
		// Entries are immutable; a second payload for the same path loses.
		return existing
	}
	a := &StaticAsset{
		Hash:       p.Hash,
		Name:       p.Name,
		SourcePath: p.Path,
		MediaType:  p.MediaType,
		Data:       p.Data,
	}
	s.byHash[p.Hash] = a
	s.byPath[p.Path] = a
	return a
}

// Register prepares and adds an asset in one step.
func (s *Store) Register(p string, data []byte) (*StaticAsset, error) {
	prepared, err := s.Prepare(p, data)
	if err != nil || prepared == nil {
		return nil, err
	}
	return s.Add(prepared), nil
}

// Lookup finds an asset by its relative path.
func (s *Store) Lookup(p string) (*StaticAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byPath[CleanPath(p)]
	return a, ok
}

// LookupHash finds an asset by content hash.
func (s *Store) LookupHash(h uint64) (*StaticAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byHash[h]
	return a, ok
}

// URL returns the published URL of a.
func (s *Store) URL(a *StaticAsset) string {
	return s.prefix + a.Name
}

// Resolve returns the published URL for a relative path.
func (s *Store) Resolve(p string) (string, bool) {
	a, ok := s.Lookup(p)
	if !ok {
		return "", false
	}
	return s.URL(a), true
}

// Prefix returns the URL prefix assets are published under.
func (s *Store) Prefix() string { return s.prefix }

// Links returns a snapshot of the path to URL map.
func (s *Store) Links() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := make(map[string]string, len(s.byPath))
	for p, a := range s.byPath {
		links[p] = s.prefix + a.Name
	}
	return links
}

// Assets returns the unique assets sorted by rewritten name.
func (s *Store) Assets() []*StaticAsset {
	s.mu.RLock()
	out := make([]*StaticAsset, 0, len(s.byHash))
	for _, a := range s.byHash {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of unique assets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash)
}
