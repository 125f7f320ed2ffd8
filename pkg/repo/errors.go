package repo

import "errors"

// ============================================================================
// Repository Errors
// ============================================================================

// Two kinds of failure move through this package and they are kept apart
// deliberately. Data conditions (a missing file, a corrupt survey, an
// unreadable variable) are captured on the item that hit them, exposed
// through LastErr, and never propagate past the item boundary. Contract
// violations (slicing a closed item, inserting an attached child) are
// returned to the caller immediately as one of the sentinels below,
// usually wrapped with the item path:
//
//	return fmt.Errorf("%w: %s", repo.ErrNotSliceable, it.Path())
//
// Callers match with errors.Is.
var (
	// ErrItemNotFound indicates a path segment matched no child during
	// FindByPath or Store.Resolve.
	ErrItemNotFound = errors.New("item not found")

	// ErrItemAttached indicates an insert of a child that already has a
	// parent. Reparenting requires an explicit removal first.
	ErrItemAttached = errors.New("item already has a parent")

	// ErrItemDetached indicates a structural operation on an item that is
	// not reachable from the store it was given to.
	ErrItemDetached = errors.New("item is not attached to this store")

	// ErrNotSliceable indicates a slicing call on an item that does not
	// expose array data. Check IsSliceable first.
	ErrNotSliceable = errors.New("item is not sliceable")

	// ErrItemClosed indicates a slicing call on an item whose resources
	// are not open.
	ErrItemClosed = errors.New("item is not open")

	// ErrAlreadyFetched indicates FetchChildren was called while
	// CanFetchChildren is false. Fetching is one-shot until an explicit
	// removal of all children re-arms it.
	ErrAlreadyFetched = errors.New("children already fetched")

	// ErrBadNodeName indicates an empty node name or one containing a
	// path separator.
	ErrBadNodeName = errors.New("invalid node name")

	// ErrUnknownFormat indicates a format name that is not registered.
	ErrUnknownFormat = errors.New("unknown format")
)
