package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("moklog"), kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func TestParse_Commands(t *testing.T) {
	cli, ctx := parse(t, "-c", "site.yaml", "build", "--pull", "-o", "out")
	assert.Equal(t, "build", ctx.Command())
	assert.Equal(t, "site.yaml", cli.Config)
	assert.True(t, cli.Build.Pull)
	assert.Equal(t, "out", cli.Build.Output)

	cli, ctx = parse(t, "new", "blog/firstpost", "--title", "First", "--tags", "go,web", "--kind", "series")
	assert.Equal(t, "new <path>", ctx.Command())
	assert.Equal(t, []string{"go", "web"}, cli.New.Tags)
	assert.Equal(t, "series", cli.New.Kind)

	cli, ctx = parse(t, "-v", "daemon", "--watch")
	assert.Equal(t, "daemon", ctx.Command())
	assert.True(t, cli.Verbose)
	assert.True(t, cli.Daemon.Watch)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("error", true))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning", false))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR", false))
	assert.Equal(t, slog.LevelInfo, parseLevel("", false))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "json", false).Info("hello", slog.String("k", "v"))
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	newLogger(&buf, "warn", "text", false).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestInitCmd_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moklog.yaml")
	root := &CLI{Config: path}

	require.NoError(t, (&InitCmd{}).Run(&Global{Logger: slog.Default()}, root))
	assert.FileExists(t, path)
	require.Error(t, (&InitCmd{}).Run(&Global{Logger: slog.Default()}, root))
	require.NoError(t, (&InitCmd{Force: true}).Run(&Global{Logger: slog.Default()}, root))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
