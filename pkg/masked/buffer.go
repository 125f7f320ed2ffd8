// Package masked implements n-dimensional typed buffers and masked arrays.
//
// A Buffer is a dense, row-major block of elements of a single Kind together
// with its shape. An Array pairs a Buffer with a mask describing which
// elements are missing and with the fill value that stands in for them. The
// mask is either a single boolean covering every element or a same-shaped
// boolean Buffer; operations preserve whichever form they are given.
package masked

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the element type of a Buffer.
type Kind uint8

const (
	Bool Kind = iota
	Int32
	Int64
	Float32
	Float64
	// Structured buffers hold named fields instead of scalar elements.
	// Each field is itself a Buffer whose shape starts with the outer
	// shape and may extend it with per-element sub-dimensions.
	Structured
)

// String returns the element type label shown in item metadata.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Structured:
		return "<structured>"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsNumeric reports whether elements of this kind can be read as numbers.
func (k Kind) IsNumeric() bool {
	switch k {
	case Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

// IsInteger reports whether the kind stores integral values.
func (k Kind) IsInteger() bool {
	return k == Int32 || k == Int64
}

// IsFloat reports whether the kind stores floating point values.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// Field is one named component of a structured Buffer.
type Field struct {
	Name string
	Data *Buffer
}

// Buffer is a dense n-dimensional block of elements stored in row-major
// order. The zero value is not usable; use one of the constructors.
type Buffer struct {
	kind  Kind
	shape []int

	bools    []bool
	int32s   []int32
	int64s   []int64
	float32s []float32
	float64s []float64
	fields   []Field
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func checkShape(shape []int) error {
	for _, d := range shape {
		if d < 0 {
			return consistencyf("negative dimension in shape", "dimensions >= 0", FormatShape(shape))
		}
	}
	return nil
}

func checkLen(shape []int, n int) error {
	if err := checkShape(shape); err != nil {
		return err
	}
	if want := sizeOf(shape); n != want {
		return consistencyf("flat data length does not match shape "+FormatShape(shape),
			strconv.Itoa(want), strconv.Itoa(n))
	}
	return nil
}

// NewBool builds a boolean buffer over the given flat data. The data slice
// is retained, not copied.
func NewBool(shape []int, data []bool) (*Buffer, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Buffer{kind: Bool, shape: cloneInts(shape), bools: data}, nil
}

// NewInt32 builds an int32 buffer over the given flat data.
func NewInt32(shape []int, data []int32) (*Buffer, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Buffer{kind: Int32, shape: cloneInts(shape), int32s: data}, nil
}

// NewInt64 builds an int64 buffer over the given flat data.
func NewInt64(shape []int, data []int64) (*Buffer, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Buffer{kind: Int64, shape: cloneInts(shape), int64s: data}, nil
}

// NewFloat32 builds a float32 buffer over the given flat data.
func NewFloat32(shape []int, data []float32) (*Buffer, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Buffer{kind: Float32, shape: cloneInts(shape), float32s: data}, nil
}

// NewFloat64 builds a float64 buffer over the given flat data.
func NewFloat64(shape []int, data []float64) (*Buffer, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Buffer{kind: Float64, shape: cloneInts(shape), float64s: data}, nil
}

// NewStructured builds a buffer of named fields. Every field buffer must
// cover the outer shape: its own shape starts with shape and may continue
// with sub-dimensions of its elements.
func NewStructured(shape []int, fields []Field) (*Buffer, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &ConsistencyError{Reason: "structured buffer needs at least one field"}
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Data == nil {
			return nil, &ConsistencyError{Reason: fmt.Sprintf("field %q has no data", f.Name)}
		}
		if _, dup := seen[f.Name]; dup {
			return nil, &ConsistencyError{Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		seen[f.Name] = struct{}{}
		if len(f.Data.shape) < len(shape) || !equalInts(f.Data.shape[:len(shape)], shape) {
			return nil, consistencyf(fmt.Sprintf("field %q does not cover the outer shape", f.Name),
				FormatShape(shape), FormatShape(f.Data.shape))
		}
	}
	return &Buffer{kind: Structured, shape: cloneInts(shape), fields: fields}, nil
}

// Zeros allocates a zero-filled buffer of a scalar kind.
func Zeros(kind Kind, shape ...int) *Buffer {
	n := sizeOf(shape)
	b := &Buffer{kind: kind, shape: cloneInts(shape)}
	switch kind {
	case Bool:
		b.bools = make([]bool, n)
	case Int32:
		b.int32s = make([]int32, n)
	case Int64:
		b.int64s = make([]int64, n)
	case Float32:
		b.float32s = make([]float32, n)
	case Float64:
		b.float64s = make([]float64, n)
	default:
		panic(fmt.Sprintf("masked: Zeros does not support kind %s", kind))
	}
	return b
}

// Full allocates a buffer of a scalar kind with every element set to v.
func Full(kind Kind, v any, shape ...int) *Buffer {
	b := Zeros(kind, shape...)
	for i := 0; i < b.Len(); i++ {
		b.setFlat(i, v)
	}
	return b
}

// Kind returns the element kind.
func (b *Buffer) Kind() Kind { return b.kind }

// Shape returns a copy of the buffer's shape.
func (b *Buffer) Shape() []int { return cloneInts(b.shape) }

// NDim returns the number of dimensions.
func (b *Buffer) NDim() int { return len(b.shape) }

// Len returns the number of elements covered by the outer shape.
func (b *Buffer) Len() int { return sizeOf(b.shape) }

// FieldNames lists the field names of a structured buffer in declaration
// order. It returns nil for scalar kinds.
func (b *Buffer) FieldNames() []string {
	if b.kind != Structured {
		return nil
	}
	names := make([]string, len(b.fields))
	for i, f := range b.fields {
		names[i] = f.Name
	}
	return names
}

// FieldBuffer returns the buffer backing the named field of a structured
// buffer.
func (b *Buffer) FieldBuffer(name string) (*Buffer, bool) {
	for _, f := range b.fields {
		if f.Name == name {
			return f.Data, true
		}
	}
	return nil, false
}

// Bools returns the underlying storage of a Bool buffer. The slice is a
// view, not a copy.
func (b *Buffer) Bools() []bool { b.mustKind(Bool); return b.bools }

// Int32s returns the underlying storage of an Int32 buffer.
func (b *Buffer) Int32s() []int32 { b.mustKind(Int32); return b.int32s }

// Int64s returns the underlying storage of an Int64 buffer.
func (b *Buffer) Int64s() []int64 { b.mustKind(Int64); return b.int64s }

// Float32s returns the underlying storage of a Float32 buffer.
func (b *Buffer) Float32s() []float32 { b.mustKind(Float32); return b.float32s }

// Float64s returns the underlying storage of a Float64 buffer.
func (b *Buffer) Float64s() []float64 { b.mustKind(Float64); return b.float64s }

func (b *Buffer) mustKind(k Kind) {
	if b.kind != k {
		panic(fmt.Sprintf("masked: buffer holds %s, not %s", b.kind, k))
	}
}

// At returns the element at the given multi-index. Indexing follows Go
// slice semantics: a wrong rank or an out-of-range coordinate panics.
// Negative coordinates count from the end of their axis. Structured
// buffers have no scalar elements; address a field instead.
func (b *Buffer) At(ix ...int) any {
	if b.kind == Structured {
		panic("masked: structured buffer has no scalar elements, use FieldBuffer")
	}
	return b.atFlat(b.flatIndex(ix))
}

// SetAt stores v at the given multi-index, coercing compatible Go numeric
// types to the buffer's kind. Incompatible values panic.
func (b *Buffer) SetAt(v any, ix ...int) {
	if b.kind == Structured {
		panic("masked: structured buffer has no scalar elements, use FieldBuffer")
	}
	b.setFlat(b.flatIndex(ix), v)
}

func (b *Buffer) flatIndex(ix []int) int {
	if len(ix) != len(b.shape) {
		panic(fmt.Sprintf("masked: %d indices for %d dimensions", len(ix), len(b.shape)))
	}
	flat := 0
	for axis, i := range ix {
		d := b.shape[axis]
		if i < 0 {
			i += d
		}
		if i < 0 || i >= d {
			panic(fmt.Sprintf("masked: index %d out of range for axis %d of length %d", ix[axis], axis, d))
		}
		flat = flat*d + i
	}
	return flat
}

func (b *Buffer) atFlat(flat int) any {
	switch b.kind {
	case Bool:
		return b.bools[flat]
	case Int32:
		return b.int32s[flat]
	case Int64:
		return b.int64s[flat]
	case Float32:
		return b.float32s[flat]
	case Float64:
		return b.float64s[flat]
	default:
		panic("masked: structured buffer has no scalar elements")
	}
}

func (b *Buffer) setFlat(flat int, v any) {
	switch b.kind {
	case Bool:
		bv, ok := v.(bool)
		if !ok {
			panic(fmt.Sprintf("masked: cannot store %T in a bool buffer", v))
		}
		b.bools[flat] = bv
	case Int32:
		b.int32s[flat] = int32(coerceInt(v))
	case Int64:
		b.int64s[flat] = coerceInt(v)
	case Float32:
		b.float32s[flat] = float32(coerceFloat(v))
	case Float64:
		b.float64s[flat] = coerceFloat(v)
	default:
		panic("masked: structured buffer has no scalar elements")
	}
}

// numericAt reads the element at flat as float64. Only valid for numeric
// kinds.
func (b *Buffer) numericAt(flat int) float64 {
	switch b.kind {
	case Int32:
		return float64(b.int32s[flat])
	case Int64:
		return float64(b.int64s[flat])
	case Float32:
		return float64(b.float32s[flat])
	case Float64:
		return b.float64s[flat]
	default:
		panic(fmt.Sprintf("masked: %s buffer is not numeric", b.kind))
	}
}

func coerceInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return integralOrPanic(float64(n))
	case float64:
		return integralOrPanic(n)
	default:
		panic(fmt.Sprintf("masked: cannot store %T in an integer buffer", v))
	}
}

func integralOrPanic(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		panic(fmt.Sprintf("masked: cannot store non-integral value %v in an integer buffer", f))
	}
	return int64(f)
}

func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("masked: cannot store %T in a float buffer", v))
	}
}

// Copy returns a deep copy of the buffer.
func (b *Buffer) Copy() *Buffer {
	out := &Buffer{kind: b.kind, shape: cloneInts(b.shape)}
	switch b.kind {
	case Bool:
		out.bools = append([]bool(nil), b.bools...)
	case Int32:
		out.int32s = append([]int32(nil), b.int32s...)
	case Int64:
		out.int64s = append([]int64(nil), b.int64s...)
	case Float32:
		out.float32s = append([]float32(nil), b.float32s...)
	case Float64:
		out.float64s = append([]float64(nil), b.float64s...)
	case Structured:
		out.fields = make([]Field, len(b.fields))
		for i, f := range b.fields {
			out.fields[i] = Field{Name: f.Name, Data: f.Data.Copy()}
		}
	}
	return out
}

// AsFloat64 returns the elements widened to float64 in row-major order.
// Bool and structured buffers cannot be widened.
func (b *Buffer) AsFloat64() ([]float64, error) {
	if !b.kind.IsNumeric() {
		return nil, fmt.Errorf("cannot read %s buffer as float64", b.kind)
	}
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = b.numericAt(i)
	}
	return out, nil
}

// ToFloat64 returns a Float64 buffer with the same shape and widened
// elements. A Float64 receiver is returned unchanged.
func (b *Buffer) ToFloat64() (*Buffer, error) {
	if b.kind == Float64 {
		return b, nil
	}
	data, err := b.AsFloat64()
	if err != nil {
		return nil, err
	}
	return &Buffer{kind: Float64, shape: cloneInts(b.shape), float64s: data}, nil
}

// Select applies one selection per axis and gathers the chosen elements
// into a new buffer. Missing trailing selections default to All. Index
// selections drop their axis from the result shape.
func (b *Buffer) Select(sels ...Sel) (*Buffer, error) {
	if b.kind == Structured {
		return b.selectStructured(sels)
	}
	norm, outShape, err := normalizeSels(b.shape, sels)
	if err != nil {
		return nil, err
	}
	out := Zeros(b.kind, outShape...)
	srcIx := make([]int, len(b.shape))
	dst := 0
	walkSels(norm, srcIx, 0, func() {
		flat := 0
		for axis, i := range srcIx {
			flat = flat*b.shape[axis] + i
		}
		out.copyElem(dst, b, flat)
		dst++
	})
	return out, nil
}

func (b *Buffer) selectStructured(sels []Sel) (*Buffer, error) {
	_, outShape, err := normalizeSels(b.shape, sels)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, len(b.fields))
	for i, f := range b.fields {
		sub := f.Data.NDim() - len(b.shape)
		fieldSels := make([]Sel, 0, len(b.shape)+sub)
		fieldSels = append(fieldSels, padSels(b.shape, sels)...)
		for j := 0; j < sub; j++ {
			fieldSels = append(fieldSels, All())
		}
		fd, err := f.Data.Select(fieldSels...)
		if err != nil {
			return nil, err
		}
		fields[i] = Field{Name: f.Name, Data: fd}
	}
	return &Buffer{kind: Structured, shape: outShape, fields: fields}, nil
}

// Transpose permutes the buffer's axes. With no arguments the axis order
// is reversed. For structured buffers the permutation applies to the outer
// shape and per-element sub-dimensions keep their positions.
func (b *Buffer) Transpose(axes ...int) (*Buffer, error) {
	perm, err := normalizePerm(len(b.shape), axes)
	if err != nil {
		return nil, err
	}
	if b.kind == Structured {
		fields := make([]Field, len(b.fields))
		for i, f := range b.fields {
			sub := f.Data.NDim() - len(b.shape)
			fieldPerm := make([]int, 0, len(perm)+sub)
			fieldPerm = append(fieldPerm, perm...)
			for j := 0; j < sub; j++ {
				fieldPerm = append(fieldPerm, len(perm)+j)
			}
			fd, err := f.Data.Transpose(fieldPerm...)
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: f.Name, Data: fd}
		}
		outShape := make([]int, len(perm))
		for i, ax := range perm {
			outShape[i] = b.shape[ax]
		}
		return &Buffer{kind: Structured, shape: outShape, fields: fields}, nil
	}

	outShape := make([]int, len(perm))
	for i, ax := range perm {
		outShape[i] = b.shape[ax]
	}
	out := Zeros(b.kind, outShape...)
	if b.Len() == 0 {
		return out, nil
	}
	srcIx := make([]int, len(b.shape))
	for flat := 0; flat < b.Len(); flat++ {
		dstFlat := 0
		for i, ax := range perm {
			dstFlat = dstFlat*outShape[i] + srcIx[ax]
		}
		out.copyElem(dstFlat, b, flat)
		incIndex(srcIx, b.shape)
	}
	return out, nil
}

// copyElem copies a single element from src[srcFlat] into b[dstFlat]. Both
// buffers must share the same scalar kind.
func (b *Buffer) copyElem(dstFlat int, src *Buffer, srcFlat int) {
	switch b.kind {
	case Bool:
		b.bools[dstFlat] = src.bools[srcFlat]
	case Int32:
		b.int32s[dstFlat] = src.int32s[srcFlat]
	case Int64:
		b.int64s[dstFlat] = src.int64s[srcFlat]
	case Float32:
		b.float32s[dstFlat] = src.float32s[srcFlat]
	case Float64:
		b.float64s[dstFlat] = src.float64s[srcFlat]
	default:
		panic("masked: copyElem on structured buffer")
	}
}

func normalizePerm(ndim int, axes []int) ([]int, error) {
	if len(axes) == 0 {
		perm := make([]int, ndim)
		for i := range perm {
			perm[i] = ndim - 1 - i
		}
		return perm, nil
	}
	if len(axes) != ndim {
		return nil, fmt.Errorf("transpose needs %d axes, got %d", ndim, len(axes))
	}
	seen := make([]bool, ndim)
	perm := make([]int, ndim)
	for i, ax := range axes {
		if ax < 0 {
			ax += ndim
		}
		if ax < 0 || ax >= ndim {
			return nil, fmt.Errorf("transpose axis %d out of range for %d dimensions", axes[i], ndim)
		}
		if seen[ax] {
			return nil, fmt.Errorf("transpose axis %d repeated", ax)
		}
		seen[ax] = true
		perm[i] = ax
	}
	return perm, nil
}

// incIndex advances a row-major multi-index by one position.
func incIndex(ix, shape []int) {
	for axis := len(ix) - 1; axis >= 0; axis-- {
		ix[axis]++
		if ix[axis] < shape[axis] {
			return
		}
		ix[axis] = 0
	}
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FormatShape renders a shape the way item metadata displays it, for
// example "512 × 3200". A zero-dimensional shape renders as "scalar".
func FormatShape(shape []int) string {
	if len(shape) == 0 {
		return "scalar"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, " × ")
}

// ShapeSummary renders a shape followed by a noun, for example
// "512 × 3200 elements".
func ShapeSummary(shape []int, noun string) string {
	if len(shape) == 0 {
		return "scalar"
	}
	return FormatShape(shape) + " " + noun
}
