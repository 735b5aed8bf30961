// Package repo reads an on-disk SlackBuilds (SBo) tree and the local
// package database.
package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Lookup for names absent from the tree.
var ErrNotFound = errors.New("package not found")

// Repository is a read-only view of <root>/<category>/<package>/.
// It is safe for concurrent use.
type Repository struct {
	root string
	dirs map[string]string // package name -> category

	mu    sync.RWMutex
	cache map[string]*Info
}

// Open indexes every package directory under root, skipping hidden and
// non-directory entries.
func Open(root string) (*Repository, error) {
	categories, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", root, err)
	}

	r := &Repository{
		root:  root,
		dirs:  make(map[string]string),
		cache: make(map[string]*Info),
	}
	for _, cat := range categories {
		if !cat.IsDir() || strings.HasPrefix(cat.Name(), ".") {
			continue
		}
		pkgs, err := os.ReadDir(filepath.Join(root, cat.Name()))
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", cat.Name(), err)
		}
		for _, pkg := range pkgs {
			if !pkg.IsDir() || strings.HasPrefix(pkg.Name(), ".") {
				continue
			}
			r.dirs[pkg.Name()] = cat.Name()
		}
	}
	return r, nil
}

// Root returns the repository directory.
func (r *Repository) Root() string {
	return r.root
}

// Len is the number of indexed packages.
func (r *Repository) Len() int {
	return len(r.dirs)
}

// Has reports whether name is an SBo package.
func (r *Repository) Has(name string) bool {
	_, ok := r.dirs[name]
	return ok
}

// Names returns every package name, sorted.
func (r *Repository) Names() []string {
	names := make([]string, 0, len(r.dirs))
	for name := range r.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the parsed metadata for name. Misses wrap ErrNotFound.
func (r *Repository) Lookup(name string) (*Info, error) {
	r.mu.RLock()
	info, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return info, nil
	}

	category, ok := r.dirs[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	dir := filepath.Join(r.root, category, name)
	f, err := os.Open(filepath.Join(dir, name+".info"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()

	fields, err := ParseInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s.info: %w", name, err)
	}
	info = newInfo(name, category, dir, fields)

	r.mu.Lock()
	r.cache[name] = info
	r.mu.Unlock()
	return info, nil
}

// IsPython reports whether name is a python package: in the python
// category, named python[3]-*, or built with "python setup.py install".
func (r *Repository) IsPython(name string) bool {
	category, ok := r.dirs[name]
	if !ok {
		return false
	}
	if category == "python" {
		return true
	}
	if strings.HasPrefix(name, "python-") || strings.HasPrefix(name, "python3-") {
		return true
	}
	script, err := os.ReadFile(filepath.Join(r.root, category, name, name+".SlackBuild"))
	if err != nil {
		return false
	}
	return bytes.Contains(script, []byte("python setup.py install ")) ||
		bytes.Contains(script, []byte("python3 setup.py install "))
}
