// Package scripts composes the shell script executed for each package
// from user supplied fragments and the package's native build step.
package scripts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Role is the insertion point of a fragment.
type Role string

const (
	Before   Role = "before"
	After    Role = "after"
	Requires Role = "requires"
)

// Roles lists every role in composition order.
var Roles = []Role{Before, Requires, After}

// FragmentSource finds fragments by package and role. A missing fragment is
// reported with ok == false, never as an error.
type FragmentSource interface {
	Fragment(category, name string, role Role) (text string, ok bool, err error)
}

// DirSource reads <root>/<category>/<name>/<role>.sh. When category is
// empty, or the categorized path is absent, the first category holding a
// directory for name is used.
type DirSource struct {
	root   string
	byName map[string]string
}

// NewDirSource indexes root. A missing root behaves as an empty source.
func NewDirSource(root string) (*DirSource, error) {
	s := &DirSource{root: root, byName: make(map[string]string)}

	categories, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}
	for _, cat := range categories {
		if !cat.IsDir() || strings.HasPrefix(cat.Name(), ".") {
			continue
		}
		pkgs, err := os.ReadDir(filepath.Join(root, cat.Name()))
		if err != nil {
			return nil, fmt.Errorf("read scripts category %s: %w", cat.Name(), err)
		}
		for _, pkg := range pkgs {
			if pkg.IsDir() {
				if _, dup := s.byName[pkg.Name()]; !dup {
					s.byName[pkg.Name()] = cat.Name()
				}
			}
		}
	}
	return s, nil
}

// Path returns where the fragment for category/name/role would live.
func (s *DirSource) Path(category, name string, role Role) string {
	return filepath.Join(s.root, category, name, string(role)+".sh")
}

// Fragment implements FragmentSource.
func (s *DirSource) Fragment(category, name string, role Role) (string, bool, error) {
	paths := make([]string, 0, 2)
	if category != "" {
		paths = append(paths, s.Path(category, name, role))
	}
	if alt, ok := s.byName[name]; ok && alt != category {
		paths = append(paths, s.Path(alt, name, role))
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("read %s fragment for %s: %w", role, name, err)
		}
		return string(data), true, nil
	}
	return "", false, nil
}

// MapSource is an in-memory FragmentSource keyed by "name/role".
type MapSource map[string]string

// Fragment implements FragmentSource, ignoring category.
func (m MapSource) Fragment(_, name string, role Role) (string, bool, error) {
	text, ok := m[name+"/"+string(role)]
	return text, ok, nil
}
