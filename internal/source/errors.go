package source

import (
	stderrors "errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

var permanentErrors = []error{
	transport.ErrAuthenticationRequired,
	transport.ErrAuthorizationFailed,
	transport.ErrRepositoryNotFound,
	transport.ErrEmptyRemoteRepository,
	transport.ErrInvalidAuthMethod,
	plumbing.ErrReferenceNotFound,
}

var permanentMarkers = []string{
	"authentication",
	"permission denied",
	"not found",
	"no such remote",
	"invalid reference",
	"couldn't find remote ref",
	"unsupported protocol",
}

// isPermanent reports whether retrying err cannot succeed without user action.
func isPermanent(err error) bool {
	for _, target := range permanentErrors {
		if stderrors.Is(err, target) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classify wraps a go-git failure as a git error; permanent failures are not retried.
func classify(op, url string, err error) error {
	b := errors.WrapError(err, errors.CategoryGit, "git "+op+" failed").
		WithContext("operation", op).
		WithContext("url", url)
	if isPermanent(err) {
		b = b.WithRetry(errors.RetryNever)
	} else {
		b = b.Retryable()
	}
	return b.Build()
}
