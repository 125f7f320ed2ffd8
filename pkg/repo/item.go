package repo

import (
	"fmt"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Repository Item Contract
// ============================================================================

// Item is one entry in the repository tree: a directory, a file, an
// in-memory value or a derived product. All variants share tree structure,
// the lazy-fetch flag and the open/close lifecycle through the embedded
// node base; each variant contributes its kind, its resource hooks and,
// where it exposes numeric data, the slicing contract.
//
// Lifecycle transitions go through the package functions Open, Close and
// FetchChildren rather than methods, so the capture-don't-propagate policy
// lives in exactly one place. The unexported hooks are what variants
// actually implement:
//
//   - openResources acquires the backing resource (file handle, decoded
//     buffer). In-memory variants inherit the no-op default.
//   - closeResources releases it. Must tolerate being called on a
//     partially opened item.
//   - fetchResources produces the child items, detached. It runs with the
//     item open and must not mutate the tree itself.
//   - sliceData applies a selection to the backing data, reached through
//     the Slice function once the contract preconditions hold.
//
// Data failures inside the hooks never escape an item: they are captured
// as LastErr and the item stays closed (or childless). Only contract
// violations, such as slicing a closed item, surface as returned errors.
type Item interface {
	base() *node

	// Tree structure and naming.
	Name() string
	SetName(name string) error
	Path() string
	FileName() string
	Parent() Item
	Children() []Item
	ChildCount() int
	ChildAt(i int) Item
	HasChildren() bool
	CanFetchChildren() bool

	// Lifecycle state.
	IsOpen() bool
	LastErr() error

	// Kind identifies the variant. Every variant declares its own; there
	// is no default.
	Kind() Kind

	// Slicing contract, valid only when IsSliceable reports true.
	IsSliceable() bool
	ElemType() string
	Shape() []int
	MissingValue() any

	// Display metadata. Empty strings when not applicable.
	Unit() string
	Chunking() string

	// Variant hooks, called through the lifecycle and Slice functions
	// only.
	openResources() error
	closeResources() error
	fetchResources() ([]Item, error)
	sliceData(sels []masked.Sel) (*masked.Array, error)
}

// ============================================================================
// Kinds
// ============================================================================

// Kind enumerates the closed set of item variants.
type Kind int

const (
	KindRoot Kind = iota
	KindDirectory
	KindUnknownFile
	KindArray
	KindField
	KindScalar
	KindSequence
	KindMapping
	KindSurvey
	KindDataset
	KindVariable
	KindBucket
	KindObject
	KindDerived
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindDirectory:
		return "directory"
	case KindUnknownFile:
		return "file"
	case KindArray:
		return "array"
	case KindField:
		return "field"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindSurvey:
		return "survey"
	case KindDataset:
		return "dataset"
	case KindVariable:
		return "variable"
	case KindBucket:
		return "bucket"
	case KindObject:
		return "object"
	case KindDerived:
		return "derived"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ============================================================================
// Derived Metadata
// ============================================================================

// NDim returns the number of axes of a sliceable item's data.
func NDim(it Item) int {
	return len(it.Shape())
}

// Dimensionality returns a short label such as "scalar", "1D" or "2D" for
// sliceable items, and "" otherwise.
func Dimensionality(it Item) string {
	if !it.IsSliceable() {
		return ""
	}
	nd := NDim(it)
	if nd == 0 {
		return "scalar"
	}
	return fmt.Sprintf("%dD", nd)
}

// Decoration colors, one per variant family, with a shared override for
// items holding a captured error. Purely cosmetic.
const (
	colorError     = "#EC4C42"
	colorRoot      = "#FFFFFF"
	colorDirectory = "#C8B07D"
	colorUnknown   = "#999999"
	colorMemory    = "#FFCC3E"
	colorSurvey    = "#4A90D9"
	colorDataset   = "#2E8B57"
	colorRemote    = "#D97B29"
	colorDerived   = "#9B59B6"
)

// DecorationColor returns the hex color a viewer should decorate the item
// with. Items with a captured error always decorate as errored.
func DecorationColor(it Item) string {
	if it.LastErr() != nil {
		return colorError
	}
	switch it.Kind() {
	case KindRoot:
		return colorRoot
	case KindDirectory:
		return colorDirectory
	case KindUnknownFile:
		return colorUnknown
	case KindArray, KindField, KindScalar, KindSequence, KindMapping:
		return colorMemory
	case KindSurvey:
		return colorSurvey
	case KindDataset, KindVariable:
		return colorDataset
	case KindBucket, KindObject:
		return colorRemote
	case KindDerived:
		return colorDerived
	default:
		return colorUnknown
	}
}

// ============================================================================
// Lookup
// ============================================================================

// FindByPath resolves a slash-separated path relative to start, matching
// each segment against child names. Empty segments are skipped, so
// "a//b" and "/a/b/" both resolve like "a/b". Only children already
// present are considered; no fetching happens.
func FindByPath(start Item, path string) (Item, error) {
	cur := start
	for _, seg := range splitNodePath(path) {
		var next Item
		for _, c := range cur.Children() {
			if c.Name() == seg {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q under %s", ErrItemNotFound, seg, cur.Path())
		}
		cur = next
	}
	return cur, nil
}
