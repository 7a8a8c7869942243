package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyNode       = "node"
	KeyTemplate   = "template"
	KeyHook       = "hook"
	KeyHookKind   = "hook_kind"
	KeyAsset      = "asset"
	KeyLang       = "lang"
	KeyCount      = "count"
	KeyReason     = "reason"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Node(p string) slog.Attr         { return slog.String(KeyNode, p) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func Hook(name string) slog.Attr      { return slog.String(KeyHook, name) }
func HookKind(kind string) slog.Attr  { return slog.String(KeyHookKind, kind) }
func Asset(name string) slog.Attr     { return slog.String(KeyAsset, name) }
func Lang(tag string) slog.Attr       { return slog.String(KeyLang, tag) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
