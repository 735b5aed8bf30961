package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
)

// fakeRepo maps name -> requires; every package lives in category "cat".
type fakeRepo map[string][]string

func (f fakeRepo) Lookup(name string) (*repo.Info, error) {
	deps, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, repo.ErrNotFound)
	}
	return &repo.Info{Name: name, Category: "cat", Version: "1.0", Requires: deps}, nil
}

type fakeClassifier map[string]equiv.Verdict

func (f fakeClassifier) Classify(_ context.Context, name string, requested bool) equiv.Verdict {
	if requested {
		return equiv.Verdict{}
	}
	return f[name]
}

func mustResolve(t *testing.T, src MetadataSource, cls Classifier, roots ...string) *Graph {
	t.Helper()
	g, err := Resolve(context.Background(), src, cls, roots)
	require.NoError(t, err)
	return g
}

func names(g *Graph, ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Node(id).Name()
	}
	return out
}

func id(t *testing.T, g *Graph, name string) ID {
	t.Helper()
	n, ok := g.FindName(name)
	require.True(t, ok, "node %s", name)
	return n.ID
}

func TestResolveClosure(t *testing.T) {
	src := fakeRepo{
		"app":  {"lib1", "lib2"},
		"lib1": {"base"},
		"lib2": {"base"},
		"base": nil,
	}
	g := mustResolve(t, src, nil, "app")

	require.Equal(t, 4, g.Len())
	for _, n := range g.Nodes() {
		for _, dep := range n.Deps {
			assert.NotEqual(t, n.ID, dep, "self edge on %s", n.Name())
			assert.Less(t, int(dep), g.Len())
		}
		for _, dep := range n.Deps {
			assert.NotContains(t, g.Closure(dep), n.ID, "%s depends on itself", n.Name())
		}
	}

	app, _ := g.FindName("app")
	assert.True(t, app.Requested)
	assert.Equal(t, []string{"lib1", "lib2"}, names(g, app.Deps))
	assert.Equal(t, Key{Category: "cat", Name: "app"}, app.Key)
	assert.Equal(t, []string{"app"}, names(g, g.Roots()))
}

func TestResolveStructuralSharing(t *testing.T) {
	src := fakeRepo{"x": {"z"}, "y": {"z"}, "z": nil}
	g := mustResolve(t, src, nil, "x", "y")

	assert.Equal(t, 3, g.Len())
	x, _ := g.FindName("x")
	y, _ := g.FindName("y")
	require.Len(t, x.Deps, 1)
	require.Len(t, y.Deps, 1)
	assert.Equal(t, x.Deps[0], y.Deps[0])

	z := g.Node(x.Deps[0])
	assert.ElementsMatch(t, []ID{x.ID, y.ID}, z.Dependents)
}

func TestResolveCycle(t *testing.T) {
	tests := []struct {
		name    string
		src     fakeRepo
		root    string
		members []string
	}{
		{"two node cycle", fakeRepo{"A": {"B"}, "B": {"A"}}, "A", []string{"A", "B"}},
		{"self dependency", fakeRepo{"A": {"A"}}, "A", []string{"A"}},
		{"cycle below root", fakeRepo{"root": {"A"}, "A": {"B"}, "B": {"C"}, "C": {"A"}}, "root", []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(context.Background(), tt.src, nil, []string{tt.root})
			var cycle *CycleError
			require.ErrorAs(t, err, &cycle)
			assert.ElementsMatch(t, tt.members, cycle.Members)
			assert.Contains(t, err.Error(), "cyclic dependency")
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	src := fakeRepo{"runc": {"golang"}}
	_, err := Resolve(context.Background(), src, nil, []string{"runc"})

	assert.ErrorIs(t, err, repo.ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "golang", nf.Name)
	assert.Equal(t, []string{"runc"}, nf.Via)
}

func TestResolveNoRoots(t *testing.T) {
	_, err := Resolve(context.Background(), fakeRepo{}, nil, nil)
	assert.Error(t, err)
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Resolve(ctx, fakeRepo{"a": nil}, nil, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVirtualNodes(t *testing.T) {
	src := fakeRepo{
		"app":           {"python3-attrs", "golang"},
		"python3-attrs": {"python3-never-looked-up"},
		"golang":        nil,
	}
	cls := fakeClassifier{
		"python3-attrs": {Virtual: true, Reason: equiv.ReasonPip, Index: "py3", Equivalent: "attrs"},
		"app":           {Virtual: true, Reason: equiv.ReasonInstalled},
	}
	g := mustResolve(t, src, cls, "app")

	attrs, ok := g.FindName("python3-attrs")
	require.True(t, ok)
	assert.Equal(t, Virtual, attrs.Kind)
	assert.Empty(t, attrs.Deps, "virtual nodes are leaves")
	assert.Equal(t, Done, g.State(attrs.ID))
	assert.Equal(t, "pip:py3 (attrs)", g.Reason(attrs.ID))

	app, _ := g.FindName("app")
	assert.Equal(t, Real, app.Kind, "requested roots stay real")

	assert.Equal(t, []string{"golang"}, names(g, g.ReadySet()))
	assert.Equal(t, []string{"golang", "app"}, names(g, g.BuildOrder()))
	assert.NotContains(t, names(g, g.BuildOrder()), "python3-attrs")
}

func TestVirtualNodeMissingFromRepository(t *testing.T) {
	src := fakeRepo{"app": {"python3-six"}}
	cls := fakeClassifier{"python3-six": {Virtual: true, Reason: equiv.ReasonPip, Index: "py3", Equivalent: "six"}}
	g := mustResolve(t, src, cls, "app")

	six, ok := g.FindName("python3-six")
	require.True(t, ok)
	assert.Nil(t, six.Info)
	assert.Equal(t, "", six.Category())
}

func TestTopoOrder(t *testing.T) {
	src := fakeRepo{
		"runc":       {"golang", "libseccomp"},
		"libseccomp": {"gperf"},
		"golang":     {"gperf"},
		"gperf":      nil,
		"docker":     {"runc"},
	}
	g := mustResolve(t, src, nil, "docker", "runc")

	order := names(g, g.TopoOrder())
	assert.Equal(t, []string{"gperf", "golang", "libseccomp", "runc", "docker"}, order)

	pos := make(map[ID]int)
	for i, id := range g.TopoOrder() {
		pos[id] = i
	}
	for _, n := range g.Nodes() {
		for _, dep := range n.Deps {
			assert.Less(t, pos[dep], pos[n.ID])
		}
	}
}

func TestStateTransitions(t *testing.T) {
	src := fakeRepo{"a": {"b"}, "b": nil}
	g := mustResolve(t, src, nil, "a")
	a, b := id(t, g, "a"), id(t, g, "b")

	assert.Equal(t, Pending, g.State(a))
	assert.Equal(t, Ready, g.State(b))

	assert.ErrorIs(t, g.MarkRunning(a), ErrInvalidTransition, "a is blocked on b")
	assert.ErrorIs(t, g.MarkDone(b), ErrInvalidTransition, "b never ran")

	require.NoError(t, g.MarkRunning(b))
	assert.ErrorIs(t, g.MarkRunning(b), ErrInvalidTransition)
	require.NoError(t, g.MarkDone(b))
	assert.Equal(t, Ready, g.State(a))

	require.NoError(t, g.MarkRunning(a))
	require.NoError(t, g.MarkDone(a))
	assert.True(t, g.Settled())
	assert.Equal(t, map[State]int{Done: 2}, g.Counts())
}

func TestMarkFailedCascades(t *testing.T) {
	src := fakeRepo{
		"top":   {"mid", "other"},
		"mid":   {"base"},
		"base":  nil,
		"other": nil,
	}
	g := mustResolve(t, src, nil, "top")
	base, mid, top, other := id(t, g, "base"), id(t, g, "mid"), id(t, g, "top"), id(t, g, "other")

	require.NoError(t, g.MarkRunning(other))
	require.NoError(t, g.MarkRunning(base))

	skipped, err := g.MarkFailed(base)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ID{mid, top}, skipped)
	assert.Equal(t, Skipped, g.State(mid))
	assert.Equal(t, Skipped, g.State(top))
	assert.Equal(t, "dependency failed: base", g.Reason(top))

	// running siblings finish normally but unblock nothing
	require.NoError(t, g.MarkDone(other))
	assert.Equal(t, Skipped, g.State(top))
	assert.Empty(t, g.ReadySet())
	assert.True(t, g.Settled())
}

func TestSkipRemaining(t *testing.T) {
	src := fakeRepo{"a": nil, "b": nil, "c": {"a"}}
	g := mustResolve(t, src, nil, "a", "b", "c")
	require.NoError(t, g.MarkRunning(id(t, g, "a")))

	skipped := g.SkipRemaining("run aborted")
	assert.Equal(t, []string{"b", "c"}, names(g, skipped))
	assert.Equal(t, Running, g.State(id(t, g, "a")))
	assert.False(t, g.Settled())

	assert.ErrorIs(t, g.MarkSkipped(id(t, g, "a"), "late"), ErrInvalidTransition)
	require.NoError(t, g.MarkDone(id(t, g, "a")))
	assert.True(t, g.Settled())
	assert.Equal(t, "run aborted", g.Reason(id(t, g, "c")))
}

func TestConcurrentTransitions(t *testing.T) {
	src := fakeRepo{"top": nil}
	for i := 0; i < 50; i++ {
		dep := fmt.Sprintf("leaf%02d", i)
		src[dep] = nil
		src["top"] = append(src["top"], dep)
	}
	g := mustResolve(t, src, nil, "top")

	ready := g.ReadySet()
	require.Len(t, ready, 50)

	var wg sync.WaitGroup
	for _, leaf := range ready {
		wg.Add(1)
		go func(leaf ID) {
			defer wg.Done()
			assert.NoError(t, g.MarkRunning(leaf))
			assert.NoError(t, g.MarkDone(leaf))
		}(leaf)
	}
	wg.Wait()

	assert.Equal(t, []string{"top"}, names(g, g.ReadySet()))
}

func TestPackageURL(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{
			name: "real",
			node: Node{Key: Key{Category: "system", Name: "runc"}, Version: "1.1.12"},
			want: "pkg:generic/slackbuilds/runc@1.1.12?category=system",
		},
		{
			name: "pip equivalent",
			node: Node{Key: Key{Name: "python3-django"}, Kind: Virtual, Verdict: equiv.Verdict{Virtual: true, Reason: equiv.ReasonPip, Equivalent: "Django"}},
			want: "pkg:pypi/django",
		},
		{
			name: "installed",
			node: Node{Key: Key{Category: "development", Name: "golang"}, Version: "1.22", Kind: Virtual, Verdict: equiv.Verdict{Virtual: true, Reason: equiv.ReasonInstalled, Equivalent: "1.21"}},
			want: "pkg:generic/slackbuilds/golang@1.21?category=development",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.PackageURL())
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	var cycle *CycleError
	assert.False(t, errors.As(&NotFoundError{Name: "x", Err: repo.ErrNotFound}, &cycle))
}
