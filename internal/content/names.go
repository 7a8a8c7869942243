package content

import (
	stderrors "errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// DefaultReservedNames collide with routes of the serving layer and may
// never be used as content directories.
var DefaultReservedNames = []string{
	"static", "api", "admin", "feeds", "rss", "tags", "search", "sitemap", "assets",
}

// reservedChars may not appear in a directory name.
const reservedChars = "/\\?#%&=+:;@,!$'\"()*[]<>{}|^~`"

var (
	ErrNonUTF8       = stderrors.New("name is not valid UTF-8")
	ErrReservedName  = stderrors.New("name is reserved")
	ErrLanguageName  = stderrors.New("name is a language tag")
	ErrReservedChar  = stderrors.New("name contains a reserved character")
	ErrLeadingSymbol = stderrors.New("name must start with a letter or digit")
)

// NameValidator checks directory names against the namespace rules.
type NameValidator struct {
	reserved map[string]struct{}
}

// NewNameValidator creates a validator for the default reserved names plus extra.
func NewNameValidator(extra ...string) *NameValidator {
	v := &NameValidator{reserved: make(map[string]struct{}, len(DefaultReservedNames)+len(extra))}
	for _, n := range DefaultReservedNames {
		v.reserved[strings.ToLower(n)] = struct{}{}
	}
	for _, n := range extra {
		if n = strings.TrimSpace(n); n != "" {
			v.reserved[strings.ToLower(n)] = struct{}{}
		}
	}
	return v
}

// Validate returns nil when name may be used as a content directory.
func (v *NameValidator) Validate(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q", ErrNonUTF8, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrLeadingSymbol)
	}
	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return fmt.Errorf("%w: %q", ErrLeadingSymbol, name)
	}
	for _, r := range name {
		if strings.ContainsRune(reservedChars, r) || unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w %q in %q", ErrReservedChar, r, name)
		}
	}
	if _, ok := v.reserved[strings.ToLower(name)]; ok {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	if IsLanguageTag(name) {
		return fmt.Errorf("%w: %q", ErrLanguageName, name)
	}
	return nil
}

// IsLanguageTag reports whether s parses as a known BCP-47 tag.
func IsLanguageTag(s string) bool {
	_, err := language.Parse(s)
	return err == nil
}

// ParseTranslationName parses "<tag>.md" or "<tag>.html" file names.
func ParseTranslationName(filename string) (language.Tag, DocumentKind, bool) {
	var kind DocumentKind
	var stem string
	switch {
	case strings.HasSuffix(filename, ".md"):
		kind, stem = KindPage, strings.TrimSuffix(filename, ".md")
	case strings.HasSuffix(filename, ".html"):
		kind, stem = KindPreBuilt, strings.TrimSuffix(filename, ".html")
	default:
		return language.Und, 0, false
	}
	if stem == "" || stem == "index" {
		return language.Und, 0, false
	}
	tag, err := language.Parse(stem)
	if err != nil {
		return language.Und, 0, false
	}
	return tag, kind, true
}

// IndexFiles lists primary document names in attach priority.
var IndexFiles = []string{"index.md", "index.html", "index.log"}

// IndexKind returns the kind of a primary document file name.
func IndexKind(filename string) (DocumentKind, bool) {
	switch filename {
	case "index.md":
		return KindPage, true
	case "index.html":
		return KindPreBuilt, true
	case "index.log":
		return KindLog, true
	default:
		return 0, false
	}
}
