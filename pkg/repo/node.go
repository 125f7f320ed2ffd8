package repo

import (
	"fmt"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Node Base
// ============================================================================

// node carries the bookkeeping every item variant shares: tree structure,
// the one-shot fetch flag and the open/error lifecycle state. Variants embed
// it and override only the hooks they need. The parent reference is
// non-owning; a parent exclusively owns its children slice.
type node struct {
	name     string
	fileName string
	parent   Item
	children []Item

	// fetchable records whether this variant ever produces children
	// lazily. canFetch is the live one-shot flag: it starts equal to
	// fetchable, flips to false after the first fetch attempt and is
	// re-armed only by removing all children.
	fetchable bool
	canFetch  bool

	isOpen  bool
	lastErr error
}

// newNode builds the shared state for a variant. fileName may be empty for
// items that have no backing file.
func newNode(name, fileName string, fetchable bool) node {
	return node{
		name:      name,
		fileName:  fileName,
		fetchable: fetchable,
		canFetch:  fetchable,
	}
}

func (n *node) base() *node { return n }

// Name returns the node name, unique among its siblings by convention.
func (n *node) Name() string { return n.name }

// SetName renames the node. Paths are derived from names on demand, so the
// rename is immediately visible in the paths of the whole subtree.
func (n *node) SetName(name string) error {
	if err := checkNodeName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	n.name = name
	notifyItemChanged(n.selfItem())
	return nil
}

// Path returns the node path from the tree root, or just the name while the
// node is detached.
func (n *node) Path() string {
	if n.parent == nil {
		return n.name
	}
	return joinNodePath(n.parent.Path(), n.name)
}

// FileName returns the backing file path, or "" for in-memory items.
func (n *node) FileName() string { return n.fileName }

func (n *node) Parent() Item { return n.parent }

func (n *node) ChildCount() int { return len(n.children) }

func (n *node) ChildAt(i int) Item { return n.children[i] }

// Children returns the current child list. The slice is a copy; the items
// are not.
func (n *node) Children() []Item {
	out := make([]Item, len(n.children))
	copy(out, n.children)
	return out
}

// HasChildren reports whether the node has, or can still lazily produce,
// children. Permanent leaves report false unconditionally.
func (n *node) HasChildren() bool {
	return n.canFetch || len(n.children) > 0
}

func (n *node) CanFetchChildren() bool { return n.canFetch }

func (n *node) IsOpen() bool { return n.isOpen }

// LastErr returns the error captured by the most recent open, close or
// fetch, or nil when the node is healthy.
func (n *node) LastErr() error { return n.lastErr }

// selfItem recovers the full variant interface from the embedded base. The
// parent back-reference is only set while attached, so detached nodes fall
// back to a nil item and skip notifications.
func (n *node) selfItem() Item {
	if n.parent == nil {
		return nil
	}
	for i := range n.parent.base().children {
		if c := n.parent.base().children[i]; c.base() == n {
			return c
		}
	}
	return nil
}

// ============================================================================
// Default Variant Hooks
// ============================================================================

// In-memory variants need no resources, produce no children and expose no
// array contract. Embedding node gives them these defaults; file-backed and
// array variants shadow the ones they implement.

func (n *node) openResources() error { return nil }

func (n *node) closeResources() error { return nil }

func (n *node) fetchResources() ([]Item, error) { return nil, nil }

func (n *node) IsSliceable() bool { return false }

func (n *node) ElemType() string { return "" }

func (n *node) Shape() []int { return nil }

func (n *node) sliceData(sels []masked.Sel) (*masked.Array, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotSliceable, n.Path())
}

func (n *node) MissingValue() any { return nil }

func (n *node) Unit() string { return "" }

func (n *node) Chunking() string { return "" }

// ============================================================================
// Structural Mutation
// ============================================================================

// attachChild inserts child under parent at position. A negative or
// out-of-range position appends. The child must be detached.
func attachChild(parent, child Item, position int) error {
	cn := child.base()
	if cn.parent != nil {
		return fmt.Errorf("%w: %s", ErrItemAttached, child.Path())
	}
	if err := checkNodeName(cn.name); err != nil {
		return fmt.Errorf("%w: %q", err, cn.name)
	}
	pn := parent.base()
	if position < 0 || position > len(pn.children) {
		position = len(pn.children)
	}
	pn.children = append(pn.children, nil)
	copy(pn.children[position+1:], pn.children[position:])
	pn.children[position] = child
	cn.parent = parent
	return nil
}

// detachChild removes the child at position and clears its parent
// reference. It does not finalize; callers decide whether the subtree is
// being discarded or reparented.
func detachChild(parent Item, position int) Item {
	pn := parent.base()
	child := pn.children[position]
	pn.children = append(pn.children[:position], pn.children[position+1:]...)
	child.base().parent = nil
	return child
}

// childPosition returns the index of child under parent, or -1.
func childPosition(parent, child Item) int {
	pn := parent.base()
	for i, c := range pn.children {
		if c == child {
			return i
		}
	}
	return -1
}

// clearChildren detaches and finalizes every child of parent, then re-arms
// lazy fetching so the subtree can be repopulated.
func clearChildren(parent Item) {
	pn := parent.base()
	for len(pn.children) > 0 {
		child := detachChild(parent, len(pn.children)-1)
		finalizeTree(child)
	}
	pn.canFetch = pn.fetchable
}
