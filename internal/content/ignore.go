package content

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreRules accumulates gitignore-style patterns down a directory walk.
type IgnoreRules struct {
	files    []string
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
}

func NewIgnoreRules(files []string) *IgnoreRules {
	return &IgnoreRules{files: files, matcher: gitignore.NewMatcher(nil)}
}

// Enter returns the rules in effect inside dir. domain is the directory's
// path segments relative to the content root.
func (r *IgnoreRules) Enter(absDir string, domain []string) (*IgnoreRules, error) {
	var added []gitignore.Pattern
	for _, name := range r.files {
		data, err := os.ReadFile(filepath.Join(absDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		added = append(added, parsePatterns(data, domain)...)
	}
	if len(added) == 0 {
		return r, nil
	}
	patterns := make([]gitignore.Pattern, 0, len(r.patterns)+len(added))
	patterns = append(patterns, r.patterns...)
	patterns = append(patterns, added...)
	return &IgnoreRules{
		files:    r.files,
		patterns: patterns,
		matcher:  gitignore.NewMatcher(patterns),
	}, nil
}

// Ignored reports whether a path (segments relative to the root) is excluded.
func (r *IgnoreRules) Ignored(segments []string, isDir bool) bool {
	return r.matcher.Match(segments, isDir)
}

func parsePatterns(data []byte, domain []string) []gitignore.Pattern {
	var out []gitignore.Pattern
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, gitignore.ParsePattern(line, domain))
	}
	return out
}
