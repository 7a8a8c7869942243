package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryContent, "reserved name").
			WithSeverity(SeverityFatal).
			WithContext("path", "content/static").
			Build()

		if err.Category() != CategoryContent {
			t.Errorf("expected category %s, got %s", CategoryContent, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "reserved name" {
			t.Errorf("expected message 'reserved name', got %s", err.Message())
		}

		path, exists := err.Context().GetString("path")
		if !exists || path != "content/static" {
			t.Errorf("expected context path=content/static, got %v", path)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if err.CanRetry() {
			t.Error("expected config error to not be retryable")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := ThemeError("missing default.html").Build()
		wrapped := fmt.Errorf("load theme: %w", inner)

		if !IsFatal(wrapped) {
			t.Error("expected wrapped theme error to be fatal")
		}
		if GetCategory(wrapped) != CategoryTheme {
			t.Errorf("expected category %s, got %s", CategoryTheme, GetCategory(wrapped))
		}
		if IsFatal(errors.New("plain")) {
			t.Error("expected unclassified error to be non-fatal")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := WrapError(originalErr, CategoryNetwork, "network failure").
			Warning().
			Retryable().
			WithContext("host", "example.com").
			WithContext("port", 443).
			Build()

		if err.Category() != CategoryNetwork {
			t.Errorf("expected category %s, got %s", CategoryNetwork, err.Category())
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected severity %s, got %s", SeverityWarning, err.Severity())
		}
		if err.RetryStrategy() != RetryBackoff {
			t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
		}
		if !errors.Is(err, originalErr) {
			t.Error("expected error to wrap original error")
		}

		host, _ := err.Context().GetString("host")
		if host != "example.com" {
			t.Errorf("expected host context 'example.com', got %s", host)
		}
		port, ok := err.Context().Get("port")
		if !ok || port != 443 {
			t.Errorf("expected port context 443, got %v", port)
		}
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		cases := []struct {
			err      *ClassifiedError
			category ErrorCategory
			fatal    bool
		}{
			{ContentError("x").Build(), CategoryContent, true},
			{AssetError("x").Build(), CategoryAsset, false},
			{RenderError("x").Build(), CategoryRender, false},
			{ScriptError("x").Build(), CategoryScript, false},
			{PersistenceError("x").Build(), CategoryPersistence, true},
		}
		for _, c := range cases {
			if c.err.Category() != c.category {
				t.Errorf("expected category %s, got %s", c.category, c.err.Category())
			}
			if c.err.IsFatal() != c.fatal {
				t.Errorf("%s: expected fatal=%v", c.category, c.fatal)
			}
		}
	})

	t.Run("WithContext does not mutate receiver", func(t *testing.T) {
		base := RenderError("template failed").Build()
		derived := base.WithContext("path", "/blog/post")

		if _, ok := base.Context().Get("path"); ok {
			t.Error("expected base context to be unchanged")
		}
		if p, _ := derived.Context().GetString("path"); p != "/blog/post" {
			t.Errorf("expected derived path /blog/post, got %s", p)
		}
	})
}

func TestCLIErrorAdapter(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"content", ContentError("reserved").Build(), 3},
		{"theme", ThemeError("no default").Build(), 4},
		{"config", ConfigError("bad yaml").Build(), 7},
		{"persistence", PersistenceError("commit").Build(), 9},
		{"internal", InternalError("bug").Build(), 10},
		{"build", BuildError("stage").Build(), 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.code {
				t.Errorf("expected exit code %d, got %d", tt.code, got)
			}
		})
	}

	t.Run("format includes path", func(t *testing.T) {
		err := ContentError("reserved name").WithContext("path", "content/static").Build()
		want := "Error: reserved name (content/static)"
		if got := adapter.FormatError(err); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}

func TestCLIErrorAdapter_Locations(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	if got := adapter.ExitCodeFor(GitError("fetch").Build()); got != ExitExternal {
		t.Errorf("expected git errors to exit %d, got %d", ExitExternal, got)
	}

	err := NewError(CategoryTemplate, "undefined function").WithContext("template", "post.html").Build()
	if got, want := adapter.FormatError(err), "Error: undefined function (post.html)"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	internal := InternalError("nil pointer").WithContext("path", "x").Build()
	if got := adapter.FormatError(internal); got != "Internal error occurred (use -v for details)" {
		t.Errorf("internal errors should be hidden, got %q", got)
	}

	verbose := NewCLIErrorAdapter(true, nil)
	if got := verbose.FormatError(err); got != err.Error() {
		t.Errorf("verbose format should be the full error, got %q", got)
	}
}
