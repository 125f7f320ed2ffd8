package repo

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Repository Store
// ============================================================================

// Store owns a repository tree: one invisible root item, the structural
// mutations on it, and the change notifications viewers subscribe to. All
// boundary operations address items by handle, which is simply the item's
// node path.
//
// The store is meant for single-threaded use by a controlling loop. Every
// operation is a plain blocking call, listeners run synchronously on the
// mutating call, and neither listeners nor variant hooks may mutate the
// store re-entrantly. Long-running work happens out of band and feeds its
// result back in through InsertChild.
type Store struct {
	fs        billy.Filesystem
	registry  *FormatRegistry
	root      *RootItem
	listeners []Listener
}

// NewStore builds an empty store reading files from fs. A nil registry
// falls back to DefaultRegistry.
func NewStore(fs billy.Filesystem, registry *FormatRegistry) *Store {
	if registry == nil {
		registry = DefaultRegistry()
	}
	s := &Store{fs: fs, registry: registry}
	s.root = newRootItem(s)
	return s
}

// Root returns the invisible root item. Its children are the loaded
// top-level entries.
func (s *Store) Root() Item { return s.root }

// Registry returns the format registry classification goes through.
func (s *Store) Registry() *FormatRegistry { return s.registry }

// ============================================================================
// Boundary Operations
// ============================================================================

// Load classifies filePath, constructs the matching item variant and
// inserts it as a root-level child, returning the new item's handle.
// Classification never fails: paths that stat as directories become
// directory items, everything else goes through the format registry with
// an unknown-file fallback. A missing or unreadable file is not detected
// here; it surfaces as a captured error when the item first opens.
func (s *Store) Load(filePath string) string {
	name, cleaned := splitLoadPath(filePath)

	var it Item
	if !strings.Contains(cleaned, "://") {
		if fi, err := s.fs.Stat(cleaned); err == nil && fi.IsDir() {
			it = NewDirectoryItem(s.fs, name, cleaned, s.registry)
		}
	}
	if it == nil {
		it = s.registry.ItemFor(s.fs, name, cleaned)
	}

	s.insert(s.root, it, -1)
	log.Info("loaded %s as %s", cleaned, it.Kind())
	return it.Path()
}

// LoadAs is Load with the classification forced to a named format,
// bypassing glob matching. Returns ErrUnknownFormat when no such format is
// registered.
func (s *Store) LoadAs(format, filePath string) (string, error) {
	name, cleaned := splitLoadPath(filePath)
	it, err := s.registry.New(format, s.fs, name, cleaned)
	if err != nil {
		return "", err
	}
	s.insert(s.root, it, -1)
	log.Info("loaded %s as %s", cleaned, it.Kind())
	return it.Path(), nil
}

// Resolve walks a handle down from the root, lazily expanding items along
// the way when a segment is not present yet. Returns ErrItemNotFound when
// a segment matches no child even after expansion.
func (s *Store) Resolve(handle string) (Item, error) {
	cur := Item(s.root)
	for _, seg := range splitNodePath(handle) {
		next := childNamed(cur, seg)
		if next == nil && cur.CanFetchChildren() {
			s.expandItem(cur)
			next = childNamed(cur, seg)
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q under %s", ErrItemNotFound, seg, cur.Path())
		}
		cur = next
	}
	return cur, nil
}

// Expand fetches and attaches the item's children, notifying listeners of
// the inserted range. A no-op when the item already fetched or never
// produces children. Fetch failures are captured on the item, so the only
// returned errors are resolution failures.
func (s *Store) Expand(handle string) error {
	it, err := s.Resolve(handle)
	if err != nil {
		return err
	}
	s.expandItem(it)
	return nil
}

// Collapse removes and finalizes the item's whole subtree, re-arms lazy
// fetching and closes the item itself, releasing its backing resources
// until the next expansion.
func (s *Store) Collapse(handle string) error {
	it, err := s.Resolve(handle)
	if err != nil {
		return err
	}
	clearChildren(it)
	s.allChildrenRemoved(it)
	Close(it)
	return nil
}

// Remove detaches the item from its parent and finalizes the subtree.
func (s *Store) Remove(handle string) error {
	it, err := s.Resolve(handle)
	if err != nil {
		return err
	}
	parent := it.Parent()
	if parent == nil {
		return fmt.Errorf("cannot remove the root item")
	}
	position := childPosition(parent, it)
	detachChild(parent, position)
	finalizeTree(it)
	s.childRemoved(parent, position)
	return nil
}

// Slice resolves the handle, opens the item when necessary and applies the
// selection expression to its backing data. Unlike open and fetch, this is
// a caller-facing data request, so failures are returned: a non-sliceable
// item, an open failure (also captured on the item) or a bad expression.
func (s *Store) Slice(handle, indexExpr string) (*masked.Array, error) {
	it, err := s.Resolve(handle)
	if err != nil {
		return nil, err
	}
	if !it.IsSliceable() {
		return nil, fmt.Errorf("%w: %s", ErrNotSliceable, it.Path())
	}
	if !it.IsOpen() {
		Open(it)
		if !it.IsOpen() {
			return nil, fmt.Errorf("opening %s: %w", it.Path(), it.LastErr())
		}
	}
	sels, err := masked.ParseSelection(indexExpr)
	if err != nil {
		return nil, err
	}
	return Slice(it, sels...)
}

// InsertChild attaches a detached item under a parent belonging to this
// store. position -1 appends. This is also the entry point for out-of-band
// workers delivering finished derived products.
func (s *Store) InsertChild(parent, child Item, position int) error {
	if storeOf(parent) != s {
		return fmt.Errorf("%w: %s", ErrItemDetached, parent.Path())
	}
	_, err := s.insert(parent, child, position)
	return err
}

// Replace swaps the item at handle for a freshly constructed one of the
// named format, keeping its position among its siblings. The old subtree
// is finalized. Used to reload a file under a different decoder.
func (s *Store) Replace(handle, format string) (string, error) {
	it, err := s.Resolve(handle)
	if err != nil {
		return "", err
	}
	parent := it.Parent()
	if parent == nil {
		return "", fmt.Errorf("cannot replace the root item")
	}

	name, cleaned := splitLoadPath(it.FileName())
	fresh, err := s.registry.New(format, s.fs, name, cleaned)
	if err != nil {
		return "", err
	}

	position := childPosition(parent, it)
	detachChild(parent, position)
	finalizeTree(it)
	s.childRemoved(parent, position)
	if _, err := s.insert(parent, fresh, position); err != nil {
		return "", err
	}
	log.Info("reloaded %s as %s", cleaned, fresh.Kind())
	return fresh.Path(), nil
}

// Len returns the number of root-level items.
func (s *Store) Len() int { return s.root.ChildCount() }

// Clear removes and finalizes every loaded item.
func (s *Store) Clear() {
	clearChildren(s.root)
	s.allChildrenRemoved(s.root)
}

// ============================================================================
// Internals
// ============================================================================

func (s *Store) insert(parent, child Item, position int) (int, error) {
	pn := parent.base()
	if position < 0 || position > len(pn.children) {
		position = len(pn.children)
	}
	if err := attachChild(parent, child, position); err != nil {
		return 0, err
	}
	s.childrenInserted(parent, position, position)
	return position, nil
}

func (s *Store) expandItem(it Item) {
	if !it.CanFetchChildren() {
		return
	}
	children, err := FetchChildren(it)
	if err != nil || len(children) == 0 {
		return
	}
	first := it.ChildCount()
	for _, child := range children {
		if aerr := attachChild(it, child, -1); aerr != nil {
			log.Error("attach %s under %s: %v", child.Name(), it.Path(), aerr)
		}
	}
	last := it.ChildCount() - 1
	if last >= first {
		s.childrenInserted(it, first, last)
	}
}

func childNamed(parent Item, name string) Item {
	pn := parent.base()
	for _, c := range pn.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// splitLoadPath derives the node name and the normalized backing path for
// a load. Scheme paths such as "s3://bucket/prefix" are kept verbatim
// because path.Clean would collapse their double slash.
func splitLoadPath(filePath string) (name, cleaned string) {
	cleaned = filePath
	if !strings.Contains(filePath, "://") {
		cleaned = path.Clean(filePath)
	}
	name = path.Base(cleaned)
	if checkNodeName(name) != nil {
		name = "untitled"
	}
	return name, cleaned
}

// ============================================================================
// Root Item
// ============================================================================

// RootItem is the invisible root of a store's tree. It produces no
// children of its own, opens nothing and is never sliceable; it exists so
// every loaded item has a parent and so detached subtrees can tell they
// left the store.
type RootItem struct {
	node
	store *Store
}

func newRootItem(s *Store) *RootItem {
	return &RootItem{node: newNode("/", "", false), store: s}
}

func (it *RootItem) Kind() Kind { return KindRoot }

// ============================================================================
// Change Notifications
// ============================================================================

// Listener receives tree change notifications. Implementations run
// synchronously on the store's mutating call and must not call back into
// the store.
type Listener interface {
	// ItemChanged fires when an item's open, closed or error state
	// changed, including renames.
	ItemChanged(it Item)
	// ChildrenInserted fires after children were attached at positions
	// first through last under parent.
	ChildrenInserted(parent Item, first, last int)
	// ChildRemoved fires after the child at position was detached and
	// finalized.
	ChildRemoved(parent Item, position int)
	// AllChildrenRemoved fires after a collapse or clear emptied parent.
	AllChildrenRemoved(parent Item)
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields ignore their notification.
type ListenerFuncs struct {
	OnItemChanged        func(it Item)
	OnChildrenInserted   func(parent Item, first, last int)
	OnChildRemoved       func(parent Item, position int)
	OnAllChildrenRemoved func(parent Item)
}

func (l ListenerFuncs) ItemChanged(it Item) {
	if l.OnItemChanged != nil {
		l.OnItemChanged(it)
	}
}

func (l ListenerFuncs) ChildrenInserted(parent Item, first, last int) {
	if l.OnChildrenInserted != nil {
		l.OnChildrenInserted(parent, first, last)
	}
}

func (l ListenerFuncs) ChildRemoved(parent Item, position int) {
	if l.OnChildRemoved != nil {
		l.OnChildRemoved(parent, position)
	}
}

func (l ListenerFuncs) AllChildrenRemoved(parent Item) {
	if l.OnAllChildrenRemoved != nil {
		l.OnAllChildrenRemoved(parent)
	}
}

// AddListener subscribes a listener to all subsequent notifications.
func (s *Store) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Store) itemChanged(it Item) {
	for _, l := range s.listeners {
		l.ItemChanged(it)
	}
}

func (s *Store) childrenInserted(parent Item, first, last int) {
	for _, l := range s.listeners {
		l.ChildrenInserted(parent, first, last)
	}
}

func (s *Store) childRemoved(parent Item, position int) {
	for _, l := range s.listeners {
		l.ChildRemoved(parent, position)
	}
}

func (s *Store) allChildrenRemoved(parent Item) {
	for _, l := range s.listeners {
		l.AllChildrenRemoved(parent)
	}
}
