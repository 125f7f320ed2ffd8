package repo

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
)

// ============================================================================
// Unknown File Item
// ============================================================================

// UnknownFileItem is the leaf placeholder for files no registered format
// recognizes. Opening only verifies the file exists, so a dangling path
// still shows up as an errored node instead of failing silently.
type UnknownFileItem struct {
	node
	fs billy.Filesystem
}

func NewUnknownFileItem(fs billy.Filesystem, name, fileName string) *UnknownFileItem {
	return &UnknownFileItem{node: newNode(name, fileName, true), fs: fs}
}

func (it *UnknownFileItem) Kind() Kind { return KindUnknownFile }

// HasChildren is false unconditionally: the fetch hook exists only so
// expanding the item opens it and surfaces file errors, never to produce
// children.
func (it *UnknownFileItem) HasChildren() bool { return false }

func (it *UnknownFileItem) openResources() error {
	fi, err := it.fs.Stat(it.fileName)
	if err != nil {
		return fmt.Errorf("file %s: %w", it.fileName, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("expected a file, found a directory: %s", it.fileName)
	}
	return nil
}
