package source

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/moklog/internal/config"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/retry"
)

type pullRecorder struct {
	metrics.NoopRecorder
	ok, failed int
}

func (p *pullRecorder) ObservePullDuration(_ time.Duration, success bool) {
	if success {
		p.ok++
	} else {
		p.failed++
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	require.NoError(t, err)
	return hash
}

// seedRemote creates a bare remote and a working clone that pushes to it.
func seedRemote(t *testing.T) (remote string, work *git.Repository, workDir string) {
	t.Helper()
	tmp := t.TempDir()
	remote = filepath.Join(tmp, "remote.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	workDir = filepath.Join(tmp, "seed")
	work, err = git.PlainInit(workDir, false)
	require.NoError(t, err)
	_, err = work.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{remote}})
	require.NoError(t, err)

	commitFile(t, work, workDir, "index.md", "# Home\n")
	require.NoError(t, work.Push(&git.PushOptions{RemoteName: "origin"}))
	return remote, work, workDir
}

func newTestRepo(remote, dir string) *Repo {
	return New(config.SourceConfig{URL: remote, Branch: "master", Dir: dir}).
		WithPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 0))
}

func TestPull_CloneThenUpdate(t *testing.T) {
	remote, work, workDir := seedRemote(t)
	dir := filepath.Join(t.TempDir(), "checkout")
	rec := &pullRecorder{}
	repo := newTestRepo(remote, dir).WithRecorder(rec)

	res, err := repo.Pull(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Cloned)
	assert.True(t, res.Changed)
	assert.FileExists(t, filepath.Join(dir, "index.md"))

	again, err := repo.Pull(t.Context())
	require.NoError(t, err)
	assert.False(t, again.Cloned)
	assert.False(t, again.Changed)
	assert.Equal(t, res.Commit, again.Commit)

	next := commitFile(t, work, workDir, "about.md", "# About\n")
	require.NoError(t, work.Push(&git.PushOptions{RemoteName: "origin"}))

	updated, err := repo.Pull(t.Context())
	require.NoError(t, err)
	assert.True(t, updated.Changed)
	assert.Equal(t, next.String(), updated.Commit)
	assert.FileExists(t, filepath.Join(dir, "about.md"))
	assert.Equal(t, 3, rec.ok)
	assert.Zero(t, rec.failed)
}

func TestPull_DivergedCheckoutIsReset(t *testing.T) {
	remote, work, workDir := seedRemote(t)
	dir := filepath.Join(t.TempDir(), "checkout")
	repo := newTestRepo(remote, dir)
	_, err := repo.Pull(t.Context())
	require.NoError(t, err)

	local, err := git.PlainOpen(dir)
	require.NoError(t, err)
	commitFile(t, local, dir, "local.md", "local only\n")

	upstream := commitFile(t, work, workDir, "remote.md", "remote\n")
	require.NoError(t, work.Push(&git.PushOptions{RemoteName: "origin"}))

	res, err := repo.Pull(t.Context())
	require.NoError(t, err)
	assert.Equal(t, upstream.String(), res.Commit)

	head, err := local.Head()
	require.NoError(t, err)
	assert.Equal(t, upstream, head.Hash())
	assert.FileExists(t, filepath.Join(dir, "remote.md"))
}

func TestPull_Errors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		_, err := New(config.SourceConfig{Dir: t.TempDir()}).Pull(t.Context())
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	})

	t.Run("unreachable remote", func(t *testing.T) {
		rec := &pullRecorder{}
		missing := filepath.Join(t.TempDir(), "absent.git")
		repo := newTestRepo(missing, filepath.Join(t.TempDir(), "checkout")).WithRecorder(rec)
		_, err := repo.Pull(t.Context())
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryGit))
		assert.Equal(t, 1, rec.failed)
	})
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"auth sentinel", fmt.Errorf("clone: %w", transport.ErrAuthenticationRequired), true},
		{"repository missing", transport.ErrRepositoryNotFound, true},
		{"unknown ref", plumbing.ErrReferenceNotFound, true},
		{"permission text", stderrors.New("ssh: permission denied (publickey)"), true},
		{"timeout", stderrors.New("dial tcp: i/o timeout"), false},
		{"reset", stderrors.New("connection reset by peer"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isPermanent(tc.err))
		})
	}
}

func TestClassify_RetryStrategy(t *testing.T) {
	permanent, ok := errors.AsClassified(classify("clone", "u", transport.ErrAuthorizationFailed))
	require.True(t, ok)
	assert.False(t, permanent.CanRetry())
	assert.True(t, stderrors.Is(permanent, transport.ErrAuthorizationFailed))

	transient, ok := errors.AsClassified(classify("fetch", "u", stderrors.New("connection reset by peer")))
	require.True(t, ok)
	assert.True(t, transient.CanRetry())
}
