package scripts

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

// ScriptName is the file the composed script is written to in a work dir.
const ScriptName = "afterpkg-build.sh"

// NativeStep returns the shell line(s) that run a package's own build.
type NativeStep func(n *graph.Node) string

// SlackBuildStep runs ./<name>.SlackBuild from the work dir, directing
// the package to outputDir. A failing SlackBuild ends the script with its
// own status so a later after fragment cannot mask it.
func SlackBuildStep(outputDir, pkgType string) NativeStep {
	return func(n *graph.Node) string {
		var env []string
		if outputDir != "" {
			env = append(env, "OUTPUT="+ShellQuote(outputDir))
		}
		if pkgType != "" {
			env = append(env, "PKGTYPE="+ShellQuote(pkgType))
		}
		env = append(env, "sh", "./"+n.Name()+".SlackBuild", "||", "exit", "$?")
		return strings.Join(env, " ")
	}
}

const shellSpecials = " \t\n'\"$`\\;&|<>*?()[]{}!#~"

// ShellQuote quotes s for a POSIX shell when it needs quoting.
func ShellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, shellSpecials) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Injector composes build scripts. Disabled roles contribute nothing.
type Injector struct {
	source  FragmentSource
	native  NativeStep
	enabled map[Role]bool
}

// NewInjector creates an Injector with every role enabled.
func NewInjector(source FragmentSource, native NativeStep) *Injector {
	return &Injector{
		source:  source,
		native:  native,
		enabled: map[Role]bool{Before: true, After: true, Requires: true},
	}
}

// Disable turns off one role.
func (inj *Injector) Disable(role Role) *Injector {
	inj.enabled[role] = false
	return inj
}

// Compose builds the script for node id: the shebang, its own before
// fragment, the requires fragment of each direct dependency in declared
// order, the native step, then its own after fragment. Requires fragments
// of transitive dependencies are not included.
func (inj *Injector) Compose(g *graph.Graph, id graph.ID) (string, error) {
	n := g.Node(id)

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")

	if err := inj.splice(&b, n.Category(), n.Name(), Before); err != nil {
		return "", err
	}
	for _, depID := range n.Deps {
		dep := g.Node(depID)
		if err := inj.splice(&b, dep.Category(), dep.Name(), Requires); err != nil {
			return "", err
		}
	}
	if inj.native != nil {
		writeLine(&b, inj.native(n))
	}
	if err := inj.splice(&b, n.Category(), n.Name(), After); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (inj *Injector) splice(b *strings.Builder, category, name string, role Role) error {
	if !inj.enabled[role] || inj.source == nil {
		return nil
	}
	text, ok, err := inj.source.Fragment(category, name, role)
	if err != nil {
		return err
	}
	if ok {
		writeLine(b, text)
	}
	return nil
}

func writeLine(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
}

// Digest is the hex blake3 hash of a composed script.
func Digest(script string) string {
	sum := blake3.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Write stores script as dir/ScriptName, executable.
func Write(dir, script string) (string, error) {
	path := filepath.Join(dir, ScriptName)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write build script: %w", err)
	}
	return path, nil
}
