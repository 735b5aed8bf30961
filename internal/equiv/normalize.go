// Package equiv decides whether an SBo package is already satisfied by an
// equivalent artifact from a secondary ecosystem (pip-installed Python
// packages) or by the local package database.
package equiv

import (
	"regexp"
	"strings"
)

// Normalizer maps an SBo package name to the names it may carry in a
// secondary ecosystem, most likely first. An empty result means the package
// must never be considered equivalent to anything.
type Normalizer interface {
	Candidates(name string) []string
}

var separatorRun = regexp.MustCompile(`[-_.]+`)

// Canonical folds a Python project name the way PEP 503 does:
// lower case, runs of "-", "_" and "." become a single "-".
func Canonical(name string) string {
	return separatorRun.ReplaceAllString(strings.ToLower(name), "-")
}

// DefaultPythonSpecials covers SBo names whose PyPI name cannot be derived
// mechanically. An empty value marks a package that has no pip equivalent.
var DefaultPythonSpecials = map[string]string{
	"python-cheetah":            "Cheetah",
	"python-django-legacy":      "Django",
	"python-xrandr":             "",
	"python-importlib_metadata": "importlib-metadata",
	"python-uri-templates":      "uri-template",
	"python-pmw":                "Pmw",
	"python-django":             "Django",
	"python-distutils-extra":    "",
	"python-elib.intl":          "elib",
	"python-configargparse":     "ConfigArgParse",
	"python-slip":               "SLIP",
	"python-setuptools-doc":     "",
	"python-keybinder":          "",
	"python-twisted":            "Twisted",

	"python3-setuptools_autover": "",
	"python3-jupyter-ipykernel":  "ipykernel",
	"python3-django":             "Django",
	"python3-babel":              "Babel",
	"python3-prompt_toolkit":     "prompt-toolkit",
	"python3-cycler":             "Cycler",
	"python3-dvdvideo":           "",

	"websocket-client": "websocket_client",
}

// PythonNormalizer derives PyPI candidates from SBo names.
type PythonNormalizer struct {
	// Specials override the derived candidates entirely.
	Specials map[string]string
}

// NewPythonNormalizer returns a normalizer using DefaultPythonSpecials
// plus extra, which wins on conflicts.
func NewPythonNormalizer(extra map[string]string) *PythonNormalizer {
	specials := make(map[string]string, len(DefaultPythonSpecials)+len(extra))
	for k, v := range DefaultPythonSpecials {
		specials[k] = v
	}
	for k, v := range extra {
		specials[k] = v
	}
	return &PythonNormalizer{Specials: specials}
}

// Candidates tries, in order: the name without its python[3]- prefix, the
// name as is, and for python3- names the python- spelling.
func (n *PythonNormalizer) Candidates(name string) []string {
	if special, ok := n.Specials[name]; ok {
		if special == "" {
			return nil
		}
		return []string{special}
	}

	var out []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c == "" || seen[Canonical(c)] {
			return
		}
		seen[Canonical(c)] = true
		out = append(out, c)
	}

	prefix := pythonPrefix(name)
	if prefix != "" {
		add(strings.TrimPrefix(name, prefix))
	}
	add(name)
	if prefix == "python3-" {
		add("python-" + strings.TrimPrefix(name, prefix))
	}
	return out
}

func pythonPrefix(name string) string {
	switch {
	case strings.HasPrefix(name, "python3-"):
		return "python3-"
	case strings.HasPrefix(name, "python-"):
		return "python-"
	}
	return ""
}
