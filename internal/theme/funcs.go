package theme

import (
	"fmt"
	"html/template"
	"reflect"
	"regexp"
	"strings"
	"time"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/scripting"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TesterPrefix is prepended to tester names in templates: {{ if is_draft . }}.
const TesterPrefix = "is_"

// builtinFuncs are available to every theme. Hook names may not shadow them.
func (t *Theme) builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"safeHTML": func(v any) template.HTML {
			return template.HTML(fmt.Sprint(v)) //nolint:gosec // opt-in for theme authors
		},
		"dict":    dict,
		"list":    func(items ...any) []any { return items },
		"default": defaultValue,
		"join":    join,
		"lower":   strings.ToLower,
		"upper":   strings.ToUpper,
		"date":    t.formatDate,
		"asset":   t.assetURL,
		"shortcode": func(name string, kv ...any) (template.HTML, error) {
			return t.callShortcode(name, kv)
		},
	}
}

// hookFuncs exposes every registered hook under its template calling
// convention. A template name claimed by two hooks is a theme error.
func (t *Theme) hookFuncs() (template.FuncMap, error) {
	funcs := template.FuncMap{}
	owner := map[string]scripting.Kind{}
	claim := func(kind scripting.Kind, hook, name string, fn any) error {
		if prev, taken := owner[name]; taken {
			return errors.ThemeError("template name claimed by two hooks").
				WithContext("hook", hook).
				WithContext("name", name).
				WithContext("kind", string(kind)).
				WithContext("previous_kind", string(prev)).
				Build()
		}
		owner[name] = kind
		funcs[name] = fn
		return nil
	}

	for _, name := range t.hooks.Names(scripting.KindFilter) {
		fn := func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("filter %q needs a piped value", name)
			}
			kv, err := pairs(args[:len(args)-1])
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", name, err)
			}
			return t.hooks.Evaluate(scripting.KindFilter, name, scripting.Inputs{Value: args[len(args)-1], Args: kv})
		}
		if err := claim(scripting.KindFilter, name, name, fn); err != nil {
			return nil, err
		}
	}
	for _, name := range t.hooks.Names(scripting.KindTester) {
		fn := func(value any, params ...any) (bool, error) {
			out, err := t.hooks.Evaluate(scripting.KindTester, name, scripting.Inputs{Value: value, Params: params})
			if err != nil {
				return false, err
			}
			ok, _ := out.(bool)
			return ok, nil
		}
		if err := claim(scripting.KindTester, name, TesterPrefix+name, fn); err != nil {
			return nil, err
		}
	}
	for _, name := range t.hooks.Names(scripting.KindFunction) {
		fn := func(args ...any) (any, error) {
			kv, err := pairs(args)
			if err != nil {
				return nil, fmt.Errorf("function %q: %w", name, err)
			}
			return t.hooks.Evaluate(scripting.KindFunction, name, scripting.Inputs{Args: kv})
		}
		if err := claim(scripting.KindFunction, name, name, fn); err != nil {
			return nil, err
		}
	}
	for _, name := range t.hooks.Names(scripting.KindShortcode) {
		fn := func(args ...any) (template.HTML, error) {
			return t.callShortcode(name, args)
		}
		if err := claim(scripting.KindShortcode, name, name, fn); err != nil {
			return nil, err
		}
	}
	return funcs, nil
}

func (t *Theme) callShortcode(name string, args []any) (template.HTML, error) {
	kv, err := pairs(args)
	if err != nil {
		return "", fmt.Errorf("shortcode %q: %w", name, err)
	}
	out, err := t.hooks.Evaluate(scripting.KindShortcode, name, scripting.Inputs{Args: kv})
	if err != nil {
		return "", err
	}
	fragment, _ := out.(template.HTML)
	return fragment, nil
}

func (t *Theme) formatDate(layout string, v any) string {
	var ts time.Time
	switch x := v.(type) {
	case time.Time:
		ts = x
	case *time.Time:
		if x != nil {
			ts = *x
		}
	default:
		return ""
	}
	if ts.IsZero() {
		return ""
	}
	if t.location != nil {
		ts = ts.In(t.location)
	}
	return ts.Format(layout)
}

func (t *Theme) assetURL(p string) string {
	if t.store == nil {
		return p
	}
	if u, ok := t.store.Resolve(p); ok {
		return u
	}
	return p
}

// pairs turns "k1" v1 "k2" v2 into a map.
func pairs(kv []any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("odd number of key/value arguments (%d)", len(kv))
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("argument %d: key must be a string, got %T", i, kv[i])
		}
		out[key] = kv[i+1]
	}
	return out, nil
}

func dict(kv ...any) (map[string]any, error) {
	return pairs(kv)
}

func defaultValue(fallback, v any) any {
	if isEmpty(v) {
		return fallback
	}
	return v
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Bool:
		return !rv.Bool()
	}
	return rv.IsZero()
}

func join(sep string, items any) string {
	switch x := items.(type) {
	case []string:
		return strings.Join(x, sep)
	case nil:
		return ""
	}
	rv := reflect.ValueOf(items)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Sprint(items)
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}
