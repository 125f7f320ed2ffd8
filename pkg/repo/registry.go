package repo

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
)

// ============================================================================
// Format Registry
// ============================================================================

// Format binds a named file format to the globs that recognize it and the
// constructor producing its item variant. Constructors receive the node
// name and the backing path and must return a detached, closed item;
// decoding happens later, when the item opens.
type Format struct {
	Name string

	// Globs recognize backing paths for this format. A glob containing
	// "://" matches as a case-insensitive scheme prefix (the "*" tail is
	// ignored); any other glob matches the lowercased base name with
	// path.Match rules.
	Globs []string

	New func(fs billy.Filesystem, name, fileName string) Item
}

// FormatRegistry maps backing paths to item variants. It is explicit
// shared state: build one at startup and hand it to each store instead of
// relying on process-wide registration. Safe for concurrent reads.
type FormatRegistry struct {
	mu      sync.RWMutex
	formats []Format
}

func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{}
}

// Register appends a format. Earlier registrations win when globs overlap.
func (r *FormatRegistry) Register(f Format) error {
	if f.Name == "" {
		return fmt.Errorf("format has no name")
	}
	if len(f.Globs) == 0 {
		return fmt.Errorf("format %s has no globs", f.Name)
	}
	if f.New == nil {
		return fmt.Errorf("format %s has no constructor", f.Name)
	}
	for _, glob := range f.Globs {
		if strings.Contains(glob, "://") {
			continue
		}
		if _, err := path.Match(glob, "probe"); err != nil {
			return fmt.Errorf("format %s: glob %q: %w", f.Name, glob, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, have := range r.formats {
		if strings.EqualFold(have.Name, f.Name) {
			return fmt.Errorf("format %s already registered", f.Name)
		}
	}
	r.formats = append(r.formats, f)
	return nil
}

// MustRegister is Register for statically known formats; it panics on a
// registration error.
func (r *FormatRegistry) MustRegister(f Format) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Formats returns the registered formats in registration order.
func (r *FormatRegistry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Match returns the first registered format recognizing fileName.
func (r *FormatRegistry) Match(fileName string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := strings.ToLower(fileName)
	base := strings.ToLower(path.Base(fileName))
	for _, f := range r.formats {
		for _, glob := range f.Globs {
			if strings.Contains(glob, "://") {
				prefix := strings.ToLower(strings.TrimSuffix(glob, "*"))
				if strings.HasPrefix(lowered, prefix) {
					return f, true
				}
				continue
			}
			if ok, _ := path.Match(strings.ToLower(glob), base); ok {
				return f, true
			}
		}
	}
	return Format{}, false
}

// ItemFor classifies fileName and constructs the matching variant, falling
// back to an unknown-file leaf. Classification itself never fails.
func (r *FormatRegistry) ItemFor(fs billy.Filesystem, name, fileName string) Item {
	if f, ok := r.Match(fileName); ok {
		return f.New(fs, name, fileName)
	}
	return NewUnknownFileItem(fs, name, fileName)
}

// New constructs an item of a named format regardless of its globs.
// Returns ErrUnknownFormat when no format carries the name.
func (r *FormatRegistry) New(format string, fs billy.Filesystem, name, fileName string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		if strings.EqualFold(f.Name, format) {
			return f.New(fs, name, fileName), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// DefaultRegistry recognizes the file formats the repository decodes
// natively: pik1 radar survey products and classic NetCDF datasets.
func DefaultRegistry() *FormatRegistry {
	r := NewFormatRegistry()
	r.MustRegister(Format{
		Name:  "pik1",
		Globs: []string{"*.pik1", "magloresinco*", "maghiresinco*"},
		New: func(fs billy.Filesystem, name, fileName string) Item {
			return NewPIK1Item(fs, name, fileName)
		},
	})
	r.MustRegister(Format{
		Name:  "netcdf",
		Globs: []string{"*.nc", "*.cdf"},
		New: func(fs billy.Filesystem, name, fileName string) Item {
			return NewNetCDFItem(fs, name, fileName)
		},
	})
	return r
}
