package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
)

var installedRe = regexp.MustCompile(`^(.*)-([^-]*)-([^-]*)-([^-]*)$`)

// InstalledPackage is one entry of the pkgtools database.
type InstalledPackage struct {
	Name    string
	Version string
	Arch    string
	Build   string
}

// InstalledDB lists packages already installed on this host.
type InstalledDB struct {
	pkgs map[string]InstalledPackage
}

// OpenInstalled reads dir (normally /var/lib/pkgtools/packages). A missing
// directory yields an empty database.
func OpenInstalled(dir string) (*InstalledDB, error) {
	db := &InstalledDB{pkgs: make(map[string]InstalledPackage)}
	if dir == "" {
		return db, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return db, nil
		}
		return nil, fmt.Errorf("read installed packages: %w", err)
	}
	for _, e := range entries {
		if p, ok := ParsePackageName(e.Name()); ok {
			db.pkgs[p.Name] = p
		}
	}
	return db, nil
}

// ParsePackageName splits name-version-arch-build.
func ParsePackageName(s string) (InstalledPackage, bool) {
	m := installedRe.FindStringSubmatch(s)
	if m == nil {
		return InstalledPackage{}, false
	}
	return InstalledPackage{Name: m[1], Version: m[2], Arch: m[3], Build: m[4]}, true
}

// Installed reports whether name is installed, and which version.
func (db *InstalledDB) Installed(name string) (InstalledPackage, bool) {
	if db == nil {
		return InstalledPackage{}, false
	}
	p, ok := db.pkgs[name]
	return p, ok
}

// Len is the number of installed packages.
func (db *InstalledDB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.pkgs)
}
