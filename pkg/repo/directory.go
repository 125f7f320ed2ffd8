package repo

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// ============================================================================
// Directory Item
// ============================================================================

// DirectoryItem browses a filesystem directory. Its children are the
// directory entries, classified through the registry it was constructed
// with: subdirectories first, then files, each group sorted by name.
// Dotfiles are skipped.
type DirectoryItem struct {
	node
	fs       billy.Filesystem
	registry *FormatRegistry
}

func NewDirectoryItem(fs billy.Filesystem, name, fileName string, registry *FormatRegistry) *DirectoryItem {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &DirectoryItem{
		node:     newNode(name, fileName, true),
		fs:       fs,
		registry: registry,
	}
}

func (it *DirectoryItem) Kind() Kind { return KindDirectory }

// openResources verifies the directory exists and really is one; listing
// happens at fetch time.
func (it *DirectoryItem) openResources() error {
	fi, err := it.fs.Stat(it.fileName)
	if err != nil {
		return fmt.Errorf("directory %s: %w", it.fileName, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("not a directory: %s", it.fileName)
	}
	return nil
}

func (it *DirectoryItem) fetchResources() ([]Item, error) {
	entries, err := it.fs.ReadDir(it.fileName)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", it.fileName, err)
	}

	var dirs, files []os.FileInfo
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}
	byName := func(s []os.FileInfo) {
		sort.Slice(s, func(i, j int) bool {
			return strings.ToLower(s[i].Name()) < strings.ToLower(s[j].Name())
		})
	}
	byName(dirs)
	byName(files)

	children := make([]Item, 0, len(dirs)+len(files))
	for _, e := range dirs {
		children = append(children,
			NewDirectoryItem(it.fs, e.Name(), path.Join(it.fileName, e.Name()), it.registry))
	}
	for _, e := range files {
		children = append(children,
			it.registry.ItemFor(it.fs, e.Name(), path.Join(it.fileName, e.Name())))
	}
	return children, nil
}
