package scripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/afterpkg/internal/graph"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
)

type fakeRepo map[string][]string

func (f fakeRepo) Lookup(name string) (*repo.Info, error) {
	deps, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, repo.ErrNotFound)
	}
	return &repo.Info{Name: name, Category: "cat", Requires: deps}, nil
}

func resolve(t *testing.T, src fakeRepo, roots ...string) *graph.Graph {
	t.Helper()
	g, err := graph.Resolve(context.Background(), src, nil, roots)
	require.NoError(t, err)
	return g
}

func nodeID(t *testing.T, g *graph.Graph, name string) graph.ID {
	t.Helper()
	n, ok := g.FindName(name)
	require.True(t, ok)
	return n.ID
}

const nativePlaceholder = "NATIVE-BUILD"

func placeholder(*graph.Node) string { return nativePlaceholder }

func TestComposeOrder(t *testing.T) {
	g := resolve(t, fakeRepo{"pkg": {"D1", "D2"}, "D1": nil, "D2": nil}, "pkg")
	src := MapSource{
		"pkg/before":   "X",
		"pkg/after":    "Y",
		"D1/requires":  "R1",
		"D2/requires":  "R2",
		"pkg/requires": "OWN-REQUIRES",
	}

	script, err := NewInjector(src, placeholder).Compose(g, nodeID(t, g, "pkg"))
	require.NoError(t, err)

	assert.Equal(t, "#!/bin/sh\nX\nR1\nR2\nNATIVE-BUILD\nY\n", script)
	assert.NotContains(t, script, "OWN-REQUIRES")
}

func TestComposeMissingFragments(t *testing.T) {
	g := resolve(t, fakeRepo{"pkg": {"D1", "D2"}, "D1": nil, "D2": nil}, "pkg")
	src := MapSource{"D2/requires": "R2\n"}

	script, err := NewInjector(src, placeholder).Compose(g, nodeID(t, g, "pkg"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\nR2\nNATIVE-BUILD\n", script)
}

func TestComposeRequiresNotTransitive(t *testing.T) {
	g := resolve(t, fakeRepo{"top": {"mid"}, "mid": {"base"}, "base": nil}, "top")
	src := MapSource{"base/requires": "BASE-ENV", "mid/requires": "MID-ENV"}
	inj := NewInjector(src, placeholder)

	top, err := inj.Compose(g, nodeID(t, g, "top"))
	require.NoError(t, err)
	assert.Contains(t, top, "MID-ENV")
	assert.NotContains(t, top, "BASE-ENV")

	mid, err := inj.Compose(g, nodeID(t, g, "mid"))
	require.NoError(t, err)
	assert.Contains(t, mid, "BASE-ENV")
}

func TestComposeDisabledRoles(t *testing.T) {
	g := resolve(t, fakeRepo{"pkg": {"dep"}, "dep": nil}, "pkg")
	src := MapSource{"pkg/before": "X", "pkg/after": "Y", "dep/requires": "R"}

	script, err := NewInjector(src, placeholder).Disable(Before).Disable(Requires).Compose(g, nodeID(t, g, "pkg"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\nNATIVE-BUILD\nY\n", script)
}

func TestComposeRuncGolang(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "development", "golang")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requires.sh"), []byte("export GOPATH=/tmp/go\n"), 0o644))

	src, err := NewDirSource(root)
	require.NoError(t, err)

	g := resolve(t, fakeRepo{"runc": {"golang"}, "golang": nil}, "runc")
	inj := NewInjector(src, SlackBuildStep("/tmp", ""))

	runc, err := inj.Compose(g, nodeID(t, g, "runc"))
	require.NoError(t, err)
	exportAt := strings.Index(runc, "export GOPATH=/tmp/go")
	nativeAt := strings.Index(runc, "sh ./runc.SlackBuild")
	require.GreaterOrEqual(t, exportAt, 0)
	require.GreaterOrEqual(t, nativeAt, 0)
	assert.Less(t, exportAt, nativeAt)

	golang, err := inj.Compose(g, nodeID(t, g, "golang"))
	require.NoError(t, err)
	assert.NotContains(t, golang, "GOPATH")
	assert.Equal(t, "#!/bin/sh\nOUTPUT=/tmp sh ./golang.SlackBuild || exit $?\n", golang)
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("system/runc/before.sh", "echo before")
	write("python/python3-six/requires.sh", "export PYTHON=3")

	src, err := NewDirSource(root)
	require.NoError(t, err)

	text, ok, err := src.Fragment("system", "runc", Before)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "echo before", text)

	_, ok, err = src.Fragment("system", "runc", After)
	require.NoError(t, err)
	assert.False(t, ok)

	text, ok, err = src.Fragment("", "python3-six", Requires)
	require.NoError(t, err)
	assert.True(t, ok, "uncategorized lookups fall back to the name index")
	assert.Equal(t, "export PYTHON=3", text)

	empty, err := NewDirSource(filepath.Join(root, "absent"))
	require.NoError(t, err)
	_, ok, err = empty.Fragment("system", "runc", Before)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlackBuildStepQuoting(t *testing.T) {
	n := &graph.Node{Key: graph.Key{Name: "foo"}}
	assert.Equal(t, "OUTPUT='/tmp/my out' PKGTYPE=txz sh ./foo.SlackBuild || exit $?", SlackBuildStep("/tmp/my out", "txz")(n))
	assert.Equal(t, "sh ./foo.SlackBuild || exit $?", SlackBuildStep("", "")(n))
	assert.Equal(t, `'it'\''s'`, ShellQuote("it's"))
}

func TestDigestAndWrite(t *testing.T) {
	d1 := Digest("#!/bin/sh\necho a\n")
	d2 := Digest("#!/bin/sh\necho b\n")
	assert.Len(t, d1, 64)
	assert.NotEqual(t, d1, d2)
	assert.Equal(t, d1, Digest("#!/bin/sh\necho a\n"))

	dir := t.TempDir()
	path, err := Write(dir, "#!/bin/sh\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ScriptName), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)
}
