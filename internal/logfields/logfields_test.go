package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Stage", KeyStage, "render", Stage("render")},
		{"Path", KeyPath, "/blog/post", Path("/blog/post")},
		{"Node", KeyNode, "/blog", Node("/blog")},
		{"Template", KeyTemplate, "default.html", Template("default.html")},
		{"Hook", KeyHook, "upper", Hook("upper")},
		{"HookKind", KeyHookKind, "filter", HookKind("filter")},
		{"Asset", KeyAsset, "logo.png", Asset("logo.png")},
		{"Lang", KeyLang, "fr", Lang("fr")},
		{"Reason", KeyReason, "orphan", Reason("orphan")},
		{"URL", KeyURL, "nats://x", URL("nats://x")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if tc.attr.Value.String() != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %s", tc.name, tc.attrVal, tc.attr.Value.String())
		}
	}
}

func TestNumericAndErrorHelpers(t *testing.T) {
	if a := DurationMS(12.5); a.Value.Float64() != 12.5 {
		t.Fatalf("unexpected duration value %v", a.Value)
	}
	if a := Count(3); a.Value.Int64() != 3 {
		t.Fatalf("unexpected count value %v", a.Value)
	}
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("expected empty error value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("expected boom, got %q", a.Value.String())
	}
}
