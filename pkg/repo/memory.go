package repo

import (
	"fmt"
	"sort"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// In-Memory Items
// ============================================================================

// FromValue mounts an in-memory value into the tree: masked arrays and raw
// buffers become array items, mappings and sequences become expandable
// containers, anything else becomes a scalar leaf.
func FromValue(name string, value any) Item {
	switch v := value.(type) {
	case *masked.Array:
		return NewArrayItem(name, v)
	case *masked.Buffer:
		return NewArrayItem(name, masked.New(v, nil))
	case map[string]any:
		return NewMappingItem(name, v)
	case []any:
		return NewSequenceItem(name, v)
	default:
		return NewScalarItem(name, v)
	}
}

// ============================================================================
// Array Item
// ============================================================================

// ArrayItem wraps an in-memory masked array. Structured arrays expand into
// one field item per named field; plain arrays are leaves.
type ArrayItem struct {
	node
	arr *masked.Array
}

func NewArrayItem(name string, arr *masked.Array) *ArrayItem {
	structured := arr.Kind() == masked.Structured
	return &ArrayItem{node: newNode(name, "", structured), arr: arr}
}

func (it *ArrayItem) Kind() Kind { return KindArray }

func (it *ArrayItem) IsSliceable() bool { return true }

func (it *ArrayItem) ElemType() string { return it.arr.Kind().String() }

func (it *ArrayItem) Shape() []int { return it.arr.Shape() }

func (it *ArrayItem) MissingValue() any { return it.arr.Fill }

// Array returns the backing masked array.
func (it *ArrayItem) Array() *masked.Array { return it.arr }

func (it *ArrayItem) sliceData(sels []masked.Sel) (*masked.Array, error) {
	return it.arr.Select(sels...)
}

func (it *ArrayItem) fetchResources() ([]Item, error) {
	names := it.arr.Data.FieldNames()
	children := make([]Item, 0, len(names))
	for _, name := range names {
		children = append(children, NewFieldItem(it.arr, name))
	}
	return children, nil
}

// ============================================================================
// Structured Field Item
// ============================================================================

// FieldItem exposes one named field of a structured array. It holds a
// non-owning reference to the backing array; slicing indexes the field
// first, then applies the selection, and the outer mask broadcasts over
// any per-field sub-dimensions. Fields that are themselves structured
// expand one level further.
type FieldItem struct {
	node
	backing *masked.Array
	field   string
	view    *masked.Array
}

func NewFieldItem(backing *masked.Array, field string) *FieldItem {
	fetchable := false
	if fb, ok := backing.Data.FieldBuffer(field); ok {
		fetchable = fb.Kind() == masked.Structured
	}
	return &FieldItem{
		node:    newNode(field, "", fetchable),
		backing: backing,
		field:   field,
	}
}

func (it *FieldItem) Kind() Kind { return KindField }

func (it *FieldItem) IsSliceable() bool { return true }

func (it *FieldItem) ElemType() string {
	if fb, ok := it.backing.Data.FieldBuffer(it.field); ok {
		return fb.Kind().String()
	}
	return ""
}

func (it *FieldItem) Shape() []int {
	if fb, ok := it.backing.Data.FieldBuffer(it.field); ok {
		return fb.Shape()
	}
	return nil
}

// MissingValue selects this field's component from the backing array's
// composite missing value, or passes a scalar one through.
func (it *FieldItem) MissingValue() any {
	fills, ok := it.backing.Fill.([]any)
	if !ok {
		return it.backing.Fill
	}
	for i, name := range it.backing.Data.FieldNames() {
		if name == it.field {
			if i < len(fills) {
				return fills[i]
			}
			break
		}
	}
	return nil
}

func (it *FieldItem) openResources() error {
	fb, ok := it.backing.Data.FieldBuffer(it.field)
	if !ok {
		return fmt.Errorf("array has no field %q", it.field)
	}
	view, err := fieldView(it.backing, fb, it.MissingValue())
	if err != nil {
		return err
	}
	it.view = view
	return nil
}

func (it *FieldItem) closeResources() error {
	it.view = nil
	return nil
}

func (it *FieldItem) sliceData(sels []masked.Sel) (*masked.Array, error) {
	return it.view.Select(sels...)
}

func (it *FieldItem) fetchResources() ([]Item, error) {
	names := it.view.Data.FieldNames()
	children := make([]Item, 0, len(names))
	for _, name := range names {
		children = append(children, NewFieldItem(it.view, name))
	}
	return children, nil
}

// fieldView pairs a field buffer with the outer array's mask. A scalar
// mask carries over as-is; a buffer mask is broadcast across the field's
// sub-dimensions so its shape matches the field data exactly.
func fieldView(outer *masked.Array, fb *masked.Buffer, fill any) (*masked.Array, error) {
	if outer.MaskIsScalar() {
		if outer.AnyMasked() {
			return masked.NewAllMasked(fb, fill), nil
		}
		return masked.New(fb, fill), nil
	}

	outerMask := outer.MaskBuffer()
	sub := 1
	shape := fb.Shape()
	for _, d := range shape[outerMask.NDim():] {
		sub *= d
	}
	src := outerMask.Bools()
	dst := make([]bool, len(src)*sub)
	for i, m := range src {
		if !m {
			continue
		}
		for j := 0; j < sub; j++ {
			dst[i*sub+j] = true
		}
	}
	mask, err := masked.NewBool(shape, dst)
	if err != nil {
		return nil, err
	}
	return masked.NewWithMask(fb, mask, fill)
}

// ============================================================================
// Scalar, Sequence and Mapping Items
// ============================================================================

// ScalarItem wraps a single in-memory value. It is a permanent leaf and
// not sliceable.
type ScalarItem struct {
	node
	value any
}

func NewScalarItem(name string, value any) *ScalarItem {
	return &ScalarItem{node: newNode(name, "", false), value: value}
}

func (it *ScalarItem) Kind() Kind { return KindScalar }

func (it *ScalarItem) ElemType() string { return fmt.Sprintf("%T", it.value) }

func (it *ScalarItem) Value() any { return it.value }

// SequenceItem expands into one child per element, named "elem-<n>" by
// position.
type SequenceItem struct {
	node
	values []any
}

func NewSequenceItem(name string, values []any) *SequenceItem {
	return &SequenceItem{node: newNode(name, "", true), values: values}
}

func (it *SequenceItem) Kind() Kind { return KindSequence }

func (it *SequenceItem) fetchResources() ([]Item, error) {
	children := make([]Item, 0, len(it.values))
	for i, v := range it.values {
		children = append(children, FromValue(fmt.Sprintf("elem-%d", i), v))
	}
	return children, nil
}

// MappingItem expands into one child per key, sorted by key.
type MappingItem struct {
	node
	values map[string]any
}

func NewMappingItem(name string, values map[string]any) *MappingItem {
	return &MappingItem{node: newNode(name, "", true), values: values}
}

func (it *MappingItem) Kind() Kind { return KindMapping }

func (it *MappingItem) fetchResources() ([]Item, error) {
	keys := make([]string, 0, len(it.values))
	for k := range it.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	children := make([]Item, 0, len(keys))
	for _, k := range keys {
		children = append(children, FromValue(k, it.values[k]))
	}
	return children, nil
}
