package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/render"
)

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	id TEXT PRIMARY KEY,
	started INTEGER NOT NULL,
	committed INTEGER NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_builds_committed ON builds(committed);
CREATE TABLE IF NOT EXISTS artifacts (
	path TEXT NOT NULL,
	hash INTEGER NOT NULL,
	kind TEXT NOT NULL,
	PRIMARY KEY (path, hash)
);
CREATE TABLE IF NOT EXISTS pages (
	path TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	node TEXT NOT NULL,
	lang TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	redirect TEXT NOT NULL,
	meta TEXT NOT NULL,
	html BLOB
);
CREATE TABLE IF NOT EXISTS feeds (
	path TEXT PRIMARY KEY,
	data BLOB
);
CREATE TABLE IF NOT EXISTS assets (
	url TEXT PRIMARY KEY,
	hash INTEGER NOT NULL,
	media_type TEXT NOT NULL,
	data BLOB
);
CREATE TABLE IF NOT EXISTS links (
	path TEXT PRIMARY KEY,
	url TEXT NOT NULL
);
`

// SQLite implements Store using SQLite. Page, feed and asset bytes are
// stored zstd-compressed.
type SQLite struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLite opens (creating if needed) the database at dbPath.
// Use ":memory:" for a private in-memory database.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryPersistence, "open sqlite database").
			WithContext("path", dbPath).
			Build()
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryPersistence, "initialize schema").
			WithContext("path", dbPath).
			Build()
	}
	return s, nil
}

// ListCurrentArtifacts returns the artifacts of the last committed build.
func (s *SQLite) ListCurrentArtifacts(ctx context.Context) ([]build.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT path, hash, kind FROM artifacts ORDER BY path, hash")
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []build.Artifact
	for rows.Next() {
		var a build.Artifact
		var hash int64
		var kind string
		if err := rows.Scan(&a.Path, &hash, &kind); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Hash = uint64(hash)
		a.Kind = build.ArtifactKind(kind)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

// Commit replaces the current build with b in a single transaction.
func (s *SQLite) Commit(ctx context.Context, b *build.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	if err := s.replace(ctx, tx, b); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit build %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLite) replace(ctx context.Context, tx *sql.Tx, b *build.Bundle) error {
	for _, table := range []string{"artifacts", "pages", "feeds", "links"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, a := range b.Artifacts {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO artifacts (path, hash, kind) VALUES (?, ?, ?)",
			a.Path, int64(a.Hash), string(a.Kind)); err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.Path, err)
		}
	}

	for i := range b.Pages {
		o := &b.Pages[i]
		meta, err := encodeMeta(o)
		if err != nil {
			return fmt.Errorf("encode page %s: %w", o.Path, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pages (path, kind, node, lang, title, summary, redirect, meta, html) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			o.Path, string(o.Kind), o.Node, o.Lang, o.Title, o.Summary, o.Redirect, string(meta), compress(o.HTML)); err != nil {
			return fmt.Errorf("insert page %s: %w", o.Path, err)
		}
	}

	for _, f := range b.Feeds {
		if _, err := tx.ExecContext(ctx, "INSERT INTO feeds (path, data) VALUES (?, ?)", f.Path, compress(f.Data)); err != nil {
			return fmt.Errorf("insert feed %s: %w", f.Path, err)
		}
	}

	for p, url := range b.Links {
		if _, err := tx.ExecContext(ctx, "INSERT INTO links (path, url) VALUES (?, ?)", p, url); err != nil {
			return fmt.Errorf("insert link %s: %w", p, err)
		}
	}

	// Asset bytes never change under a URL, so only new URLs are written
	// and dropped ones deleted.
	for _, a := range b.Diff.Removed {
		if a.Kind != build.ArtifactAsset {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE url = ?", a.Path); err != nil {
			return fmt.Errorf("delete asset %s: %w", a.Path, err)
		}
	}
	for _, a := range b.Assets {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO assets (url, hash, media_type, data) VALUES (?, ?, ?, ?)",
			b.AssetURL(a), int64(a.Hash), a.MediaType, compress(a.Data)); err != nil {
			return fmt.Errorf("insert asset %s: %w", a.Name, err)
		}
	}

	now := time.Now()
	record, err := json.Marshal(recordOf(b, now))
	if err != nil {
		return fmt.Errorf("encode build record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO builds (id, started, committed, record) VALUES (?, ?, ?, ?)",
		b.ID, b.Started.UnixNano(), now.UnixNano(), string(record)); err != nil {
		return fmt.Errorf("insert build %s: %w", b.ID, err)
	}
	return nil
}

// Page returns the stored page or redirect at path.
func (s *SQLite) Page(ctx context.Context, path string) (*render.Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o render.Output
	var kind, meta string
	var html []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT path, kind, node, lang, title, summary, redirect, meta, html FROM pages WHERE path = ?", path).
		Scan(&o.Path, &kind, &o.Node, &o.Lang, &o.Title, &o.Summary, &o.Redirect, &meta, &html)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query page %s: %w", path, err)
	}
	o.Kind = render.OutputKind(kind)
	if err := decodeMeta([]byte(meta), &o); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", path, err)
	}
	if o.HTML, err = decompress(html); err != nil {
		return nil, fmt.Errorf("decompress page %s: %w", path, err)
	}
	return &o, nil
}

// Feed returns the stored feed document at path.
func (s *SQLite) Feed(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM feeds WHERE path = ?", path).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query feed %s: %w", path, err)
	}
	return decompress(data)
}

// Asset returns the stored asset published at url.
func (s *SQLite) Asset(ctx context.Context, url string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := &Asset{URL: url}
	var hash int64
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT hash, media_type, data FROM assets WHERE url = ?", url).
		Scan(&hash, &a.MediaType, &data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query asset %s: %w", url, err)
	}
	a.Hash = uint64(hash)
	if a.Data, err = decompress(data); err != nil {
		return nil, fmt.Errorf("decompress asset %s: %w", url, err)
	}
	return a, nil
}

// Links returns the asset source path to URL map of the current build.
func (s *SQLite) Links(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT path, url FROM links")
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]string)
	for rows.Next() {
		var p, url string
		if err := rows.Scan(&p, &url); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links[p] = url
	}
	return links, rows.Err()
}

// Builds returns up to limit committed builds, newest first.
func (s *SQLite) Builds(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM builds ORDER BY committed DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var out []BuildRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		var rec BuildRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode build: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
