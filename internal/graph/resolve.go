package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
)

// MetadataSource returns package metadata by name. Misses wrap repo.ErrNotFound.
type MetadataSource interface {
	Lookup(name string) (*repo.Info, error)
}

// Classifier decides whether a package is virtual.
type Classifier interface {
	Classify(ctx context.Context, name string, requested bool) equiv.Verdict
}

// CycleError reports a dependency cycle. Members are in stack order,
// starting with the package that closed the cycle.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	path := append(append([]string(nil), e.Members...), e.Members[0])
	return "cyclic dependency: " + strings.Join(path, " -> ")
}

// NotFoundError reports a package missing from the repository, with the
// chain of packages that led to it.
type NotFoundError struct {
	Name string
	Via  []string
	Err  error
}

func (e *NotFoundError) Error() string {
	if len(e.Via) == 0 {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s (required by %s): %v", e.Name, strings.Join(e.Via, " -> "), e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

type resolver struct {
	ctx   context.Context
	src   MetadataSource
	cls   Classifier
	g     *Graph
	roots map[string]bool

	stack    []string
	visiting map[string]int
}

// Resolve expands roots into the full dependency closure. Virtual nodes are
// leaves: their own requirements are never looked up. Any missing package
// or cycle fails the whole resolution.
func Resolve(ctx context.Context, src MetadataSource, cls Classifier, roots []string) (*Graph, error) {
	if len(roots) == 0 {
		return nil, errors.New("no packages requested")
	}

	r := &resolver{
		ctx:      ctx,
		src:      src,
		cls:      cls,
		g:        newGraph(),
		roots:    make(map[string]bool, len(roots)),
		visiting: make(map[string]int),
	}
	for _, name := range roots {
		r.roots[name] = true
	}

	for _, name := range roots {
		id, err := r.visit(name)
		if err != nil {
			return nil, err
		}
		if !containsID(r.g.roots, id) {
			r.g.roots = append(r.g.roots, id)
		}
	}

	r.g.seal()
	return r.g, nil
}

func (r *resolver) visit(name string) (ID, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if idx, ok := r.visiting[name]; ok {
		return 0, &CycleError{Members: append([]string(nil), r.stack[idx:]...)}
	}
	if id, ok := r.g.byName[name]; ok {
		return id, nil
	}

	requested := r.roots[name]
	verdict := equiv.Verdict{}
	if r.cls != nil {
		verdict = r.cls.Classify(r.ctx, name, requested)
	}

	info, err := r.src.Lookup(name)
	if err != nil {
		if !verdict.Virtual || !errors.Is(err, repo.ErrNotFound) {
			if errors.Is(err, repo.ErrNotFound) {
				return 0, &NotFoundError{Name: name, Via: append([]string(nil), r.stack...), Err: err}
			}
			return 0, fmt.Errorf("lookup %s: %w", name, err)
		}
		info = nil
	}

	node := &Node{
		Key:       Key{Name: name},
		Verdict:   verdict,
		Requested: requested,
		Info:      info,
	}
	if info != nil {
		node.Key.Category = info.Category
		node.Version = info.Version
	}
	if verdict.Virtual {
		node.Kind = Virtual
	}
	id := r.g.add(node)

	if node.Kind == Real {
		r.visiting[name] = len(r.stack)
		r.stack = append(r.stack, name)

		for _, depName := range info.Requires {
			depID, err := r.visit(depName)
			if err != nil {
				return 0, err
			}
			if !containsID(node.Deps, depID) {
				node.Deps = append(node.Deps, depID)
			}
		}

		r.stack = r.stack[:len(r.stack)-1]
		delete(r.visiting, name)
	}

	r.g.order = append(r.g.order, id)
	return id, nil
}

func containsID(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
