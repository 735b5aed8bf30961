package graph

import (
	packageurl "github.com/package-url/packageurl-go"

	"github.com/felixgeelhaar/afterpkg/internal/equiv"
)

// PackageURL identifies the artifact that satisfies the node: a pypi purl
// for pip equivalents, a generic slackbuilds purl otherwise.
func (n *Node) PackageURL() string {
	if n.Kind == Virtual && n.Verdict.Reason == equiv.ReasonPip {
		return packageurl.NewPackageURL(packageurl.TypePyPi, "", equiv.Canonical(n.Verdict.Equivalent), "", nil, "").ToString()
	}

	version := n.Version
	if n.Kind == Virtual && n.Verdict.Reason == equiv.ReasonInstalled && n.Verdict.Equivalent != "" {
		version = n.Verdict.Equivalent
	}
	var qualifiers packageurl.Qualifiers
	if n.Key.Category != "" {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{"category": n.Key.Category})
	}
	return packageurl.NewPackageURL(packageurl.TypeGeneric, "slackbuilds", n.Key.Name, version, qualifiers, "").ToString()
}
