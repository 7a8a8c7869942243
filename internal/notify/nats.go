// Package notify announces committed builds on NATS so serving caches can
// invalidate the paths that changed.
package notify

import (
	"context"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/config"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/retry"
)

// Message is the JSON payload published for every committed build.
type Message struct {
	BuildID   string    `json:"build_id"`
	Trigger   string    `json:"trigger,omitempty"`
	Started   time.Time `json:"started"`
	Outcome   string    `json:"outcome"`
	Added     []string  `json:"added"`
	Removed   []string  `json:"removed"`
	Unchanged int       `json:"unchanged"`
	Skipped   int       `json:"skipped"`
}

// NewMessage builds the payload for a report. Paths appear once per list even
// when several artifacts share them.
func NewMessage(r *build.Report) Message {
	return Message{
		BuildID:   r.ID,
		Trigger:   r.Trigger,
		Started:   r.Started.UTC(),
		Outcome:   string(r.Outcome()),
		Added:     paths(r.Diff.Added),
		Removed:   paths(r.Diff.Removed),
		Unchanged: r.Diff.Unchanged,
		Skipped:   len(r.Skipped),
	}
}

func paths(artifacts []build.Artifact) []string {
	out := make([]string, 0, len(artifacts))
	for i, a := range artifacts {
		if i > 0 && artifacts[i-1].Path == a.Path {
			continue
		}
		out = append(out, a.Path)
	}
	return out
}

const flushTimeout = 5 * time.Second

type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes build messages on a core NATS subject.
type NATS struct {
	conn    conn
	subject string
	policy  retry.Policy
	logger  *slog.Logger
}

// Connect dials the server named in cfg.
func Connect(cfg config.NotifyConfig) (*NATS, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("moklog"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).Build()
	}
	subject := cfg.Subject
	if subject == "" {
		subject = config.DefaultSubject
	}
	slog.Info("NATS notifier connected", logfields.URL(cfg.NATSURL), slog.String("subject", subject))
	return newNATS(nc, subject), nil
}

func newNATS(c conn, subject string) *NATS {
	return &NATS{conn: c, subject: subject, policy: retry.DefaultPolicy(), logger: slog.Default()}
}

// WithPolicy replaces the retry policy used for publishing.
func (n *NATS) WithPolicy(p retry.Policy) *NATS { n.policy = p; return n }

// Notify publishes the report's message and waits for the server to accept it.
func (n *NATS) Notify(ctx context.Context, r *build.Report) error {
	data, err := json.Marshal(NewMessage(r))
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal build message").Build()
	}
	err = n.policy.Do(ctx, func(ctx context.Context) error {
		if err := n.conn.Publish(n.subject, data); err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "failed to publish build message").Retryable().Build()
		}
		// FlushWithContext requires a deadline.
		fctx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		if err := n.conn.FlushWithContext(fctx); err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "failed to flush build message").Retryable().Build()
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Debug("Published build message", logfields.BuildID(r.ID), slog.String("subject", n.subject))
	return nil
}

// Close closes the connection.
func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
