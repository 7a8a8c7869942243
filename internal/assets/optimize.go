package assets

import (
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"

	"git.home.luguber.info/inful/moklog/internal/logfields"
)

const (
	mediaCSS  = "text/css"
	mediaJS   = "application/javascript"
	mediaJSON = "application/json"
	mediaSVG  = "image/svg+xml"
)

// Optimizer transforms text assets before hashing. It is safe for concurrent use.
type Optimizer struct {
	minifier     *minify.M
	sassBinary   string
	includePaths []string

	sassOnce sync.Once
	sass     *godartsass.Transpiler
	sassErr  error
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithSassBinary sets the Dart Sass executable. Empty means "sass" from PATH.
func WithSassBinary(bin string) OptimizerOption {
	return func(o *Optimizer) { o.sassBinary = bin }
}

// WithIncludePaths sets the directories searched by SCSS @use and @import.
func WithIncludePaths(dirs ...string) OptimizerOption {
	return func(o *Optimizer) { o.includePaths = append(o.includePaths, dirs...) }
}

// NewOptimizer creates an optimizer with CSS, JS, JSON and SVG minifiers.
// The Sass compiler is started lazily on the first stylesheet.
func NewOptimizer(opts ...OptimizerOption) *Optimizer {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	m.AddFunc(mediaJSON, json.Minify)
	m.AddFunc(mediaSVG, svg.Minify)

	o := &Optimizer{minifier: m}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize returns the published path and bytes for an asset. Stylesheets in
// Sass syntax are compiled and get a .css extension. Minifier failures keep
// the original bytes; a Sass failure is returned as an error.
func (o *Optimizer) Optimize(p string, data []byte) (string, []byte, error) {
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".scss", ".sass":
		out, err := o.compileSass(data, ext == ".sass")
		if err != nil {
			return p, nil, err
		}
		return strings.TrimSuffix(p, path.Ext(p)) + ".css", out, nil
	case ".css":
		return p, o.minify(p, mediaCSS, data), nil
	case ".js", ".mjs":
		return p, o.minify(p, mediaJS, data), nil
	case ".json":
		return p, o.minify(p, mediaJSON, data), nil
	case ".svg":
		return p, o.minify(p, mediaSVG, data), nil
	default:
		return p, data, nil
	}
}

func (o *Optimizer) minify(p, mediaType string, data []byte) []byte {
	out, err := o.minifier.Bytes(mediaType, data)
	if err != nil {
		slog.Debug("Minify failed, publishing original bytes", logfields.Path(p), logfields.Error(err))
		return data
	}
	return out
}

func (o *Optimizer) compileSass(data []byte, indented bool) ([]byte, error) {
	o.sassOnce.Do(func() {
		o.sass, o.sassErr = godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: o.sassBinary})
	})
	if o.sassErr != nil {
		return nil, fmt.Errorf("start sass compiler: %w", o.sassErr)
	}

	syntax := godartsass.SourceSyntaxSCSS
	if indented {
		syntax = godartsass.SourceSyntaxSASS
	}
	res, err := o.sass.Execute(godartsass.Args{
		Source:       string(data),
		OutputStyle:  godartsass.OutputStyleCompressed,
		SourceSyntax: syntax,
		IncludePaths: o.includePaths,
	})
	if err != nil {
		return nil, fmt.Errorf("compile sass: %w", err)
	}
	return []byte(res.CSS), nil
}

// Close stops the Sass compiler if it was started.
func (o *Optimizer) Close() error {
	if o.sass != nil {
		return o.sass.Close()
	}
	return nil
}

// MediaType guesses the media type of a published path.
func MediaType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}
