package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/storage"
)

const siteBuild = `
targets:
  scripts:
    kind: preprocess
    input: src/game.js
    output: bin/game.js
    base: src
  html:
    kind: copy
    src: src/html
    dst: bin
    inputs_dir: {path: src/html}
  all:
    depends_on: [scripts, html]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newProject(t *testing.T, build string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.yaml"), build)
	writeFile(t, filepath.Join(dir, "src", "game.js"), "#include \"lib.js\"\nrun();\n")
	writeFile(t, filepath.Join(dir, "src", "lib.js"), "function run() {}")
	writeFile(t, filepath.Join(dir, "src", "html", "index.html"), "<html/>")
	return dir
}

func run(t *testing.T, c CLI) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := c.Run(context.Background(), &out)
	return out.String(), err
}

func TestBuildThenSkip(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")
	gameOut := filepath.Join(dir, "bin", "game.js")

	out, err := run(t, CLI{File: file, Targets: []string{"all"}})
	require.NoError(t, err)
	require.Equal(t, "Done\n", out)
	data, err := os.ReadFile(gameOut)
	require.NoError(t, err)
	require.Equal(t, "function run() {}\nrun();\n", string(data))
	require.FileExists(t, filepath.Join(dir, "bin", "index.html"))

	// Nothing changed: the output is not regenerated.
	writeFile(t, gameOut, "stale")
	_, err = run(t, CLI{File: file, Targets: []string{"all"}})
	require.NoError(t, err)
	data, _ = os.ReadFile(gameOut)
	require.Equal(t, "stale", string(data))

	// Forcing the target regenerates it.
	_, err = run(t, CLI{File: file, Targets: []string{"scripts"}, ForceSingle: true})
	require.NoError(t, err)
	data, _ = os.ReadFile(gameOut)
	require.Equal(t, "function run() {}\nrun();\n", string(data))
}

func TestInputChangeTriggersRebuild(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")
	game := filepath.Join(dir, "src", "game.js")

	_, err := run(t, CLI{File: file, Targets: []string{"scripts"}})
	require.NoError(t, err)

	writeFile(t, game, "changed();\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(game, later, later))

	_, err = run(t, CLI{File: file, Targets: []string{"scripts"}})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "bin", "game.js"))
	require.NoError(t, err)
	require.Equal(t, "changed();\n", string(data))
}

func TestUnknownAndListing(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")

	out, err := run(t, CLI{File: file, Targets: []string{"foo", "html"}})
	require.NoError(t, err)
	require.Equal(t, "Unknown target: foo\n\nDone\n", out)

	out, err = run(t, CLI{File: file})
	require.NoError(t, err)
	require.Equal(t, "Valid targets are:\n -  all\n -  html\n -  scripts\nDone\n", out)
}

func TestClearCache(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")

	_, err := run(t, CLI{File: file, All: true})
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(dir, ".cachedir"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	out, err := run(t, CLI{File: file, ClearCache: true})
	require.NoError(t, err)
	require.Equal(t, "Clearing Cache\nDone\n", out)
	entries, err = os.ReadDir(filepath.Join(dir, ".cachedir"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestClearCacheInProjectDirKeepsProject(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")

	_, err := run(t, CLI{File: file, CacheDir: dir, Targets: []string{"scripts"}})
	require.NoError(t, err)

	out, err := run(t, CLI{File: file, CacheDir: dir, ClearCache: true})
	require.NoError(t, err)
	require.Equal(t, "Clearing Cache\nDone\n", out)

	require.FileExists(t, file)
	require.FileExists(t, filepath.Join(dir, "src", "game.js"))
	require.FileExists(t, filepath.Join(dir, "src", "html", "index.html"))
	require.FileExists(t, filepath.Join(dir, "bin", "game.js"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"bin", "build.yaml", "src"}, names)
}

func TestSQLiteBackendAndMetrics(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")
	metricsFile := filepath.Join(dir, "incbuild.prom")

	_, err := run(t, CLI{File: file, All: true, CacheBackend: "sqlite", MetricsFile: metricsFile})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, ".cachedir", storage.SQLiteFileName))

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `incbuild_build_outcomes_total{outcome="success"} 3`)
	require.Contains(t, string(data), `incbuild_task_results_total{kind="preprocess",result="executed"} 1`)
}

func TestFailingCommandExitCode(t *testing.T) {
	dir := newProject(t, "targets:\n  broken:\n    kind: command\n    command: [sh, -c, \"exit 2\"]\n")
	file := filepath.Join(dir, "build.yaml")

	out, err := run(t, CLI{File: file, Targets: []string{"broken"}})
	require.Error(t, err)
	require.NotContains(t, out, "Done")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
	require.Equal(t, 11, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestGraphOutput(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")

	out, err := run(t, CLI{File: file, Targets: []string{"all"}, Graph: "text"})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, "group(all)", lines[0])
	require.Equal(t, "  preprocess(scripts)", lines[1])
	require.NoDirExists(t, filepath.Join(dir, "bin"), "graph output does not build")

	out, err = run(t, CLI{File: file, Graph: "dot"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "digraph incbuild {"))

	_, err = run(t, CLI{File: file, Targets: []string{"nope"}, Graph: "text"})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	_, err = run(t, CLI{File: file, Graph: "mermaid"})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestConfigErrors(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")

	_, err := run(t, CLI{File: file, Watch: true, Every: time.Second})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = run(t, CLI{File: file, CacheBackend: "redis"})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = run(t, CLI{File: filepath.Join(dir, "missing.yaml")})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestPeriodicModeStopsWithContext(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	c := CLI{File: file, Targets: []string{"scripts"}, Every: 100 * time.Millisecond}
	require.NoError(t, c.Run(ctx, &out))
	require.GreaterOrEqual(t, strings.Count(out.String(), "Done"), 2)
}

func TestWatchModeTracksInputsAddedToBuildFile(t *testing.T) {
	dir := newProject(t, siteBuild)
	file := filepath.Join(dir, "build.yaml")
	level := filepath.Join(dir, "assets", "level.txt")
	copied := filepath.Join(dir, "out", "level.txt")
	writeFile(t, level, "v1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		c := CLI{File: file, Targets: []string{"levels"}, Watch: true}
		done <- c.Run(ctx, io.Discard)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	readCopy := func() string {
		data, err := os.ReadFile(copied)
		if err != nil {
			return ""
		}
		return string(data)
	}

	// Let the watcher start before the build file changes.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, file, siteBuild+`
  levels:
    kind: copy
    src: assets
    dst: out
    inputs: [assets/level.txt]
`)
	require.Eventually(t, func() bool { return readCopy() == "v1" }, 5*time.Second, 20*time.Millisecond)

	writeFile(t, level, "v2")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(level, later, later))
	require.Eventually(t, func() bool { return readCopy() == "v2" }, 5*time.Second, 20*time.Millisecond)
}
