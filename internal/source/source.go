// Package source keeps a local checkout of the content repository in sync with its remote.
package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/moklog/internal/config"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/retry"
)

// Result describes what a pull did to the checkout.
type Result struct {
	Commit  string
	Cloned  bool
	Changed bool
}

// Repo is a single-branch checkout of a remote repository.
type Repo struct {
	url      string
	branch   string
	dir      string
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New creates a Repo from the source configuration section.
func New(cfg config.SourceConfig) *Repo {
	branch := cfg.Branch
	if branch == "" {
		branch = config.DefaultBranch
	}
	return &Repo{
		url:      cfg.URL,
		branch:   branch,
		dir:      cfg.Dir,
		policy:   retry.FromConfig(cfg.Retry),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithPolicy replaces the retry policy.
func (r *Repo) WithPolicy(p retry.Policy) *Repo { r.policy = p; return r }

// WithRecorder attaches a metrics recorder.
func (r *Repo) WithRecorder(rec metrics.Recorder) *Repo {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// WithLogger replaces the logger.
func (r *Repo) WithLogger(l *slog.Logger) *Repo {
	if l != nil {
		r.logger = l
	}
	return r
}

// Dir returns the checkout directory.
func (r *Repo) Dir() string { return r.dir }

// Pull clones the repository when the checkout is missing and otherwise fetches
// and resets the local branch to the remote head. Transient failures are retried.
func (r *Repo) Pull(ctx context.Context) (Result, error) {
	if r.url == "" {
		return Result{}, errors.ConfigError("source url is not configured").Build()
	}
	start := time.Now()
	var res Result
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.pullOnce(ctx)
		return err
	})
	r.recorder.ObservePullDuration(time.Since(start), err == nil)
	if err != nil {
		r.logger.Error("Pull failed", logfields.URL(r.url), slog.String("branch", r.branch), logfields.Error(err))
		return Result{}, err
	}
	switch {
	case res.Cloned:
		r.logger.Info("Cloned repository", logfields.URL(r.url), slog.String("branch", r.branch), slog.String("commit", short(res.Commit)))
	case res.Changed:
		r.logger.Info("Repository updated", logfields.URL(r.url), slog.String("branch", r.branch), slog.String("commit", short(res.Commit)))
	default:
		r.logger.Debug("Repository already up-to-date", logfields.URL(r.url), slog.String("commit", short(res.Commit)))
	}
	return res, nil
}

func (r *Repo) pullOnce(ctx context.Context) (Result, error) {
	if _, err := os.Stat(filepath.Join(r.dir, ".git")); err != nil {
		return r.clone(ctx)
	}
	return r.update(ctx)
}

func (r *Repo) clone(ctx context.Context) (Result, error) {
	r.logger.Debug("Repository missing, cloning", logfields.URL(r.url), logfields.Path(r.dir))
	repository, err := git.PlainCloneContext(ctx, r.dir, false, &git.CloneOptions{
		URL:           r.url,
		ReferenceName: plumbing.NewBranchReferenceName(r.branch),
		SingleBranch:  true,
		Tags:          git.NoTags,
	})
	if err != nil {
		return Result{}, classify("clone", r.url, err)
	}
	head, err := repository.Head()
	if err != nil {
		return Result{}, classify("clone", r.url, err)
	}
	return Result{Commit: head.Hash().String(), Cloned: true, Changed: true}, nil
}

func (r *Repo) update(ctx context.Context) (Result, error) {
	repository, err := git.PlainOpen(r.dir)
	if err != nil {
		return Result{}, classify("open", r.url, err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return Result{}, classify("worktree", r.url, err)
	}
	err = repository.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", r.branch, r.branch))},
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return Result{}, classify("fetch", r.url, err)
	}

	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, r.branch), true)
	if err != nil {
		return Result{}, classify("fetch", r.url, fmt.Errorf("remote ref: %w", err))
	}
	localName := plumbing.NewBranchReferenceName(r.branch)
	localRef, lerr := repository.Reference(localName, true)
	if lerr != nil {
		if err := wt.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Branch: localName, Create: true, Force: true}); err != nil {
			return Result{}, classify("checkout", r.url, err)
		}
		return Result{Commit: remoteRef.Hash().String(), Changed: true}, nil
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: localName, Force: true}); err != nil {
		return Result{}, classify("checkout", r.url, err)
	}
	if localRef.Hash() == remoteRef.Hash() {
		return Result{Commit: localRef.Hash().String()}, nil
	}

	if ff, ffErr := isAncestor(repository, localRef.Hash(), remoteRef.Hash()); ffErr != nil {
		r.logger.Warn("ancestor check failed", logfields.Error(ffErr))
	} else if !ff {
		r.logger.Warn("Diverged branch, hard resetting", logfields.URL(r.url), slog.String("branch", r.branch))
	}
	// The checkout mirrors the remote; local commits are discarded.
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return Result{}, classify("reset", r.url, err)
	}
	return Result{Commit: remoteRef.Hash().String(), Changed: true}, nil
}

func isAncestor(repo *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	ca, err := repo.CommitObject(a)
	if err != nil {
		return false, err
	}
	cb, err := repo.CommitObject(b)
	if err != nil {
		return false, err
	}
	return ca.IsAncestor(cb)
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
