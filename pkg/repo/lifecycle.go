package repo

import (
	"fmt"

	"github.com/firnlab/firn/internal/logger"
	"github.com/firnlab/firn/pkg/masked"
)

var log = logger.WithScope("repo")

// ============================================================================
// Item Lifecycle
// ============================================================================

// The lifecycle functions implement the error-containment policy shared by
// every variant: failures inside the resource hooks are captured on the
// item and exposed through LastErr, never returned. One bad file must not
// abort browsing of its siblings, so the only errors these functions return
// are contract violations by the caller.

// Open acquires the item's backing resources. Opening an already-open item
// closes it first. On success the item is open and its captured error is
// cleared; on failure it stays closed with the error captured. Either way
// an item-changed notification reaches the store, so viewers can render
// the new state.
func Open(it Item) {
	n := it.base()
	n.lastErr = nil

	if n.isOpen {
		log.Warn("%s already open, closing before reopening", it.Path())
		n.isOpen = false
		if err := it.closeResources(); err != nil {
			n.lastErr = fmt.Errorf("reopening %s: %w", it.Path(), err)
			log.Error("reopen %s: %v", it.Path(), err)
			notifyItemChanged(it)
			return
		}
	}

	log.Debug("opening %s", it.Path())
	if err := it.openResources(); err != nil {
		n.lastErr = err
		log.Error("open %s: %v", it.Path(), err)
	} else {
		n.isOpen = true
	}
	notifyItemChanged(it)
}

// Close releases the item's backing resources. Closing a closed item is a
// logged no-op, so teardown paths may call it unconditionally. A release
// failure leaves the item closed with the error captured; a clean release
// also clears any error captured earlier in the open period.
func Close(it Item) {
	n := it.base()
	if !n.isOpen {
		log.Debug("%s already closed, ignoring", it.Path())
		return
	}

	log.Debug("closing %s", it.Path())
	n.isOpen = false
	if err := it.closeResources(); err != nil {
		n.lastErr = err
		log.Error("close %s: %v", it.Path(), err)
	} else {
		n.lastErr = nil
	}
	notifyItemChanged(it)
}

// FetchChildren runs the item's one-shot child production and returns the
// produced items, still detached. Whatever happens, the item's fetch flag
// flips to false; only removing all children re-arms it.
//
// The item is opened first when necessary. If opening fails, or child
// production fails, the error is captured on the item and an empty list is
// returned. Partial child lists are never returned: a fetch either yields
// the complete set or nothing. The only returned error is the
// ErrAlreadyFetched precondition.
func FetchChildren(it Item) ([]Item, error) {
	n := it.base()
	if !n.canFetch {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFetched, it.Path())
	}
	defer func() { n.canFetch = false }()

	if !n.isOpen {
		Open(it)
		if !n.isOpen {
			return nil, nil
		}
	}

	log.Debug("fetching children of %s", it.Path())
	children, err := it.fetchResources()
	if err != nil {
		n.lastErr = err
		log.Error("fetch children of %s: %v", it.Path(), err)
		notifyItemChanged(it)
		return nil, nil
	}
	return children, nil
}

// Slice applies a selection to the item's backing data and returns the
// masked view. Unlike the lifecycle functions this is a caller-facing data
// request with contract preconditions: the item must be sliceable and
// open, and violating either is an error returned to the caller, not
// captured on the item. Callers are expected to check IsSliceable first.
func Slice(it Item, sels ...masked.Sel) (*masked.Array, error) {
	if !it.IsSliceable() {
		return nil, fmt.Errorf("%w: %s", ErrNotSliceable, it.Path())
	}
	if !it.IsOpen() {
		return nil, fmt.Errorf("%w: %s", ErrItemClosed, it.Path())
	}
	return it.sliceData(sels)
}

// finalizeTree closes a subtree bottom-up: children first, then the item
// itself. Called on detached subtrees during removal, where the closes no
// longer produce notifications.
func finalizeTree(it Item) {
	for _, child := range it.Children() {
		finalizeTree(child)
	}
	Close(it)
}

// ============================================================================
// Store Resolution
// ============================================================================

// storeOf climbs the parent chain to the root item and returns its store.
// Detached items resolve to nil and their state changes go unannounced.
func storeOf(it Item) *Store {
	for cur := it; cur != nil; {
		if root, ok := cur.(*RootItem); ok {
			return root.store
		}
		cur = cur.base().parent
	}
	return nil
}

func notifyItemChanged(it Item) {
	if it == nil {
		return
	}
	if s := storeOf(it); s != nil {
		s.itemChanged(it)
	}
}
