package repo

import (
	"fmt"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/go-git/go-billy/v5"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// NetCDF Dataset Item
// ============================================================================

// readOnlyFile adapts a billy file to the reader/writer contract the cdf
// package expects. The repository only reads datasets, so writes are
// refused outright.
type readOnlyFile struct {
	billy.File
}

func (readOnlyFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("dataset is read-only")
}

// NetCDFItem browses a classic NetCDF dataset. While open it keeps the
// file handle for header access; expanding produces one child per
// variable. Numeric variables become lazy variable items that read their
// data on their own open. Character variables are decoded eagerly into
// in-memory string items, since they are typically tiny labels.
type NetCDFItem struct {
	node
	fs   billy.Filesystem
	f    billy.File
	ds   *cdf.File
	size int64
}

func NewNetCDFItem(fs billy.Filesystem, name, fileName string) *NetCDFItem {
	return &NetCDFItem{node: newNode(name, fileName, true), fs: fs}
}

func (it *NetCDFItem) Kind() Kind { return KindDataset }

func (it *NetCDFItem) openResources() error {
	fi, err := it.fs.Stat(it.fileName)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", it.fileName, err)
	}
	f, err := it.fs.Open(it.fileName)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", it.fileName, err)
	}
	ds, err := cdf.Open(readOnlyFile{f})
	if err != nil {
		f.Close()
		return fmt.Errorf("dataset %s: %w", it.fileName, err)
	}
	it.f, it.ds, it.size = f, ds, fi.Size()
	return nil
}

func (it *NetCDFItem) closeResources() error {
	it.ds = nil
	if it.f == nil {
		return nil
	}
	f := it.f
	it.f = nil
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", it.fileName, err)
	}
	return nil
}

func (it *NetCDFItem) fetchResources() ([]Item, error) {
	h := it.ds.Header
	names := h.Variables()
	children := make([]Item, 0, len(names))
	for _, v := range names {
		shape := append([]int(nil), h.Lengths(v)...)
		record := h.IsRecordVariable(v)
		if record && len(shape) > 0 {
			shape[0] = int(h.NumRecs(it.size))
		}

		zv := h.ZeroValue(v, 1)
		if _, isChar := zv.(string); isChar {
			val, err := readCharVariable(it.ds, v, shape)
			if err != nil {
				return nil, fmt.Errorf("reading %s of %s: %w", v, it.fileName, err)
			}
			children = append(children, FromValue(v, val))
			continue
		}

		children = append(children, newNetCDFVarItem(it.fs, it.fileName, v, varMeta{
			shape:   shape,
			dims:    h.Dimensions(v),
			elem:    varKind(zv),
			unit:    attrString(h.GetAttribute(v, "units")),
			missing: varMissing(h, v),
			record:  record,
		}))
	}
	return children, nil
}

// ============================================================================
// NetCDF Variable Item
// ============================================================================

// varMeta is the display metadata a variable item carries from the moment
// its parent dataset enumerated it, so shape and unit are browsable
// without opening the variable.
type varMeta struct {
	shape   []int
	dims    []string
	elem    masked.Kind
	unit    string
	missing any
	record  bool
}

// NetCDFVarItem reads one variable of a dataset. It opens its own handle,
// decodes the variable completely and releases the handle again, so no two
// items ever share a live descriptor. The declared missing value, when the
// file carries one, is masked out at open time.
type NetCDFVarItem struct {
	node
	fs       billy.Filesystem
	variable string
	meta     varMeta
	arr      *masked.Array
}

func newNetCDFVarItem(fs billy.Filesystem, fileName, variable string, meta varMeta) *NetCDFVarItem {
	return &NetCDFVarItem{
		node:     newNode(variable, fileName, false),
		fs:       fs,
		variable: variable,
		meta:     meta,
	}
}

func (it *NetCDFVarItem) Kind() Kind { return KindVariable }

func (it *NetCDFVarItem) IsSliceable() bool { return true }

func (it *NetCDFVarItem) ElemType() string { return it.meta.elem.String() }

func (it *NetCDFVarItem) Shape() []int {
	if it.arr != nil {
		return it.arr.Shape()
	}
	return append([]int(nil), it.meta.shape...)
}

func (it *NetCDFVarItem) Unit() string { return it.meta.unit }

func (it *NetCDFVarItem) Chunking() string {
	if it.meta.record {
		return "interleaved records"
	}
	return "contiguous"
}

func (it *NetCDFVarItem) MissingValue() any { return it.meta.missing }

// Dimensions returns the named dimensions of the variable.
func (it *NetCDFVarItem) Dimensions() []string {
	return append([]string(nil), it.meta.dims...)
}

func (it *NetCDFVarItem) openResources() error {
	fi, err := it.fs.Stat(it.fileName)
	if err != nil {
		return fmt.Errorf("variable %s: %w", it.variable, err)
	}
	f, err := it.fs.Open(it.fileName)
	if err != nil {
		return fmt.Errorf("variable %s: %w", it.variable, err)
	}
	defer f.Close()

	ds, err := cdf.Open(readOnlyFile{f})
	if err != nil {
		return fmt.Errorf("dataset %s: %w", it.fileName, err)
	}
	h := ds.Header
	if h.ZeroValue(it.variable, 1) == nil {
		return fmt.Errorf("dataset %s has no variable %q", it.fileName, it.variable)
	}

	// Record counts can change between the parent's enumeration and now,
	// so the shape is derived fresh from the current file size.
	shape := append([]int(nil), h.Lengths(it.variable)...)
	if h.IsRecordVariable(it.variable) && len(shape) > 0 {
		shape[0] = int(h.NumRecs(fi.Size()))
	}

	values, err := readVariable(ds, it.variable, shape)
	if err != nil {
		return fmt.Errorf("reading %s of %s: %w", it.variable, it.fileName, err)
	}
	buf, err := bufferFrom(shape, values)
	if err != nil {
		return fmt.Errorf("variable %s: %w", it.variable, err)
	}

	if it.meta.missing != nil {
		it.arr = masked.MaskedEqual(buf, it.meta.missing)
	} else {
		it.arr = masked.New(buf, nil)
	}
	return nil
}

func (it *NetCDFVarItem) closeResources() error {
	it.arr = nil
	return nil
}

func (it *NetCDFVarItem) sliceData(sels []masked.Sel) (*masked.Array, error) {
	return it.arr.Select(sels...)
}

// ============================================================================
// Variable Decoding
// ============================================================================

// readVariable reads a numeric variable in full. For record variables the
// end corner must be passed explicitly: the reader's open-ended default
// reports EOF at the first record boundary.
func readVariable(ds *cdf.File, v string, shape []int) (any, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	var end []int
	if ds.Header.IsRecordVariable(v) && len(shape) > 0 && n > 0 {
		end = make([]int, len(shape))
		for i, d := range shape {
			end[i] = d - 1
		}
	}
	r := ds.Reader(v, nil, end)
	if r == nil {
		return nil, fmt.Errorf("no such variable %q", v)
	}
	buf := r.Zero(n)
	if n == 0 {
		return buf, nil
	}
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readCharVariable decodes a character variable into a string, or into one
// string per row along the last axis when it has more than one dimension.
func readCharVariable(ds *cdf.File, v string, shape []int) (any, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	var end []int
	if ds.Header.IsRecordVariable(v) && len(shape) > 0 && n > 0 {
		end = make([]int, len(shape))
		for i, d := range shape {
			end[i] = d - 1
		}
	}
	buf := make([]uint8, n)
	if n > 0 {
		r := ds.Reader(v, nil, end)
		if r == nil {
			return nil, fmt.Errorf("no such variable %q", v)
		}
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
	}

	if len(shape) <= 1 {
		return trimChar(buf), nil
	}
	last := shape[len(shape)-1]
	if last <= 0 {
		return "", nil
	}
	rows := make([]any, 0, n/last)
	for i := 0; i+last <= n; i += last {
		rows = append(rows, trimChar(buf[i:i+last]))
	}
	return rows, nil
}

func trimChar(b []uint8) string {
	return strings.TrimRight(string(b), "\x00 ")
}

// bufferFrom converts the slice types the cdf reader produces into a
// buffer, widening the sub-32-bit integer types.
func bufferFrom(shape []int, values any) (*masked.Buffer, error) {
	switch data := values.(type) {
	case []uint8:
		widened := make([]int32, len(data))
		for i, v := range data {
			widened[i] = int32(v)
		}
		return masked.NewInt32(shape, widened)
	case []int16:
		widened := make([]int32, len(data))
		for i, v := range data {
			widened[i] = int32(v)
		}
		return masked.NewInt32(shape, widened)
	case []int32:
		return masked.NewInt32(shape, data)
	case []float32:
		return masked.NewFloat32(shape, data)
	case []float64:
		return masked.NewFloat64(shape, data)
	}
	return nil, fmt.Errorf("unsupported variable data of type %T", values)
}

func varKind(zeroValue any) masked.Kind {
	switch zeroValue.(type) {
	case []float32:
		return masked.Float32
	case []float64:
		return masked.Float64
	default:
		return masked.Int32
	}
}

// varMissing returns the declared missing sentinel of a variable, checking
// the conventional attribute names. Files without one yield nil and are
// never masked.
func varMissing(h *cdf.Header, v string) any {
	if m := attrScalar(h.GetAttribute(v, "_FillValue")); m != nil {
		return m
	}
	return attrScalar(h.GetAttribute(v, "missing_value"))
}

// attrScalar extracts the first element of a numeric attribute value.
func attrScalar(v any) any {
	switch vv := v.(type) {
	case []int16:
		if len(vv) > 0 {
			return vv[0]
		}
	case []int32:
		if len(vv) > 0 {
			return vv[0]
		}
	case []float32:
		if len(vv) > 0 {
			return vv[0]
		}
	case []float64:
		if len(vv) > 0 {
			return vv[0]
		}
	case []uint8:
		if len(vv) > 0 {
			return vv[0]
		}
	}
	return nil
}

// attrString extracts a text attribute value.
func attrString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []uint8:
		return trimChar(s)
	}
	return ""
}
