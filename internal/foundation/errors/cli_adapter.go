package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Exit codes returned by the moklog binary.
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitUsage       = 2
	ExitContent     = 3
	ExitTheme       = 4
	ExitConfig      = 7
	ExitExternal    = 8
	ExitPersistence = 9
	ExitInternal    = 10
	ExitBuild       = 11
	ExitRuntime     = 12
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation:  ExitUsage,
	CategoryContent:     ExitContent,
	CategoryTheme:       ExitTheme,
	CategoryTemplate:    ExitTheme,
	CategoryScript:      ExitTheme,
	CategoryConfig:      ExitConfig,
	CategoryNetwork:     ExitExternal,
	CategoryGit:         ExitExternal,
	CategoryPersistence: ExitPersistence,
	CategoryInternal:    ExitInternal,
	CategoryNotFound:    ExitInternal,
	CategoryBuild:       ExitBuild,
	CategoryRender:      ExitBuild,
	CategoryAsset:       ExitBuild,
	CategoryFileSystem:  ExitBuild,
	CategoryRuntime:     ExitRuntime,
}

// locationKeys are the context keys shown next to a short error message, in
// order of preference.
var locationKeys = []string{"path", "node", "template", "hook", "url"}

// CLIErrorAdapter turns errors returned by commands into a message and an exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates an adapter. A nil logger uses slog.Default.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor maps err to a process exit code.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	classified, ok := AsClassified(err)
	if !ok {
		return ExitGeneral
	}
	if code, ok := exitCodes[classified.Category()]; ok {
		return code
	}
	return ExitGeneral
}

// FormatError renders err for the terminal.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	switch {
	case !ok:
		return fmt.Sprintf("Error: %v", err)
	case a.verbose:
		return classified.Error()
	case classified.Category() == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	}
	for _, key := range locationKeys {
		if loc, ok := classified.Context().GetString(key); ok && loc != "" {
			return fmt.Sprintf("Error: %s (%s)", classified.Message(), loc)
		}
	}
	return "Error: " + classified.Message()
}

// HandleError logs and prints err, then exits with its code. A nil err is a no-op.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	fmt.Fprintln(os.Stderr, a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.IsFatal()
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", slog.String("error", err.Error()))
		return
	}

	attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	ctxKeys := make([]string, 0, len(classified.Context()))
	for k := range classified.Context() {
		ctxKeys = append(ctxKeys, k)
	}
	sort.Strings(ctxKeys)
	for _, k := range ctxKeys {
		attrs = append(attrs, slog.Any(k, classified.Context()[k]))
	}
	if cause := classified.Cause(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFor(classified.Severity()), classified.Message(), attrs...)
}

func levelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
