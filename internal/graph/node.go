// Package graph holds the resolved dependency graph of a run: an arena of
// package nodes keyed by (category, name), edges as node IDs, and the
// synchronized state machine the build scheduler drives.
package graph

import (
	"fmt"

	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
)

// Kind tells whether a node is built or satisfied elsewhere.
type Kind int

const (
	Real Kind = iota
	Virtual
)

func (k Kind) String() string {
	if k == Virtual {
		return "virtual"
	}
	return "real"
}

// MarshalText renders the kind in reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// State is a node's position in the run lifecycle.
type State int

const (
	Pending State = iota
	Ready
	Running
	Done
	Failed
	Skipped
)

var stateNames = [...]string{"pending", "ready", "running", "done", "failed", "skipped"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state in reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Done || s == Failed || s == Skipped
}

// Satisfied reports whether dependents may proceed past this state.
func (s State) Satisfied() bool {
	return s == Done || s == Skipped
}

// ID indexes a node in its graph's arena.
type ID int

// Key is the unique identity of a node.
type Key struct {
	Category string
	Name     string
}

func (k Key) String() string {
	if k.Category == "" {
		return k.Name
	}
	return k.Category + "/" + k.Name
}

// Node is one resolved package. Everything but state is fixed once Resolve
// returns; state lives in the Graph behind its lock.
type Node struct {
	ID        ID
	Key       Key
	Version   string
	Kind      Kind
	Verdict   equiv.Verdict
	Requested bool
	// Deps are direct dependencies in declared order.
	Deps []ID
	// Dependents are the nodes listing this one in Deps.
	Dependents []ID
	// Info is the repository metadata; nil for virtual nodes not in the tree.
	Info *repo.Info
}

// Name is shorthand for Key.Name.
func (n *Node) Name() string { return n.Key.Name }

// Category is shorthand for Key.Category.
func (n *Node) Category() string { return n.Key.Category }
