package masked

import "math"

// Array pairs a data buffer with a mask flagging missing elements and with
// the fill value that stands in for them. The mask is either a single
// boolean covering the whole buffer or a boolean Buffer of the same shape.
// Operations keep whichever representation they receive.
//
// Data and Fill are exported for direct inspection; the mask stays behind
// accessors so its two representations cannot drift out of shape.
type Array struct {
	Data *Buffer
	Fill any

	maskAll bool
	maskBuf *Buffer
}

// New wraps data in an array with nothing masked.
func New(data *Buffer, fill any) *Array {
	return &Array{Data: data, Fill: fill}
}

// NewAllMasked wraps data in an array with every element masked.
func NewAllMasked(data *Buffer, fill any) *Array {
	return &Array{Data: data, Fill: fill, maskAll: true}
}

// NewWithMask wraps data with an explicit element-wise mask. The mask must
// be a boolean buffer with exactly the data's outer shape; anything else is
// a ConsistencyError.
func NewWithMask(data, mask *Buffer, fill any) (*Array, error) {
	if mask.Kind() != Bool {
		return nil, consistencyf("mask buffer must be boolean", Bool, mask.Kind())
	}
	if !equalInts(mask.shape, data.shape) {
		return nil, consistencyf("mask shape differs from data shape",
			FormatShape(data.shape), FormatShape(mask.shape))
	}
	return &Array{Data: data, Fill: fill, maskBuf: mask}, nil
}

// MaskedEqual builds an array whose mask flags every element equal to the
// missing sentinel. A nil sentinel, or one that cannot be compared with the
// buffer's elements, masks nothing. For structured buffers the sentinel is
// a []any with one entry per field, and an element is masked when any of
// its field values matches that field's sentinel. When no element matches,
// the mask collapses to a single false.
func MaskedEqual(data *Buffer, missing any) *Array {
	if missing == nil {
		return New(data, missing)
	}
	if data.Kind() == Structured {
		return maskedEqualStructured(data, missing)
	}

	mask := Zeros(Bool, data.shape...)
	matched := false
	switch data.Kind() {
	case Bool:
		m, ok := missing.(bool)
		if !ok {
			return New(data, missing)
		}
		for i, v := range data.bools {
			if v == m {
				mask.bools[i] = true
				matched = true
			}
		}
	default:
		m, ok := asFloat(missing)
		if !ok {
			return New(data, missing)
		}
		for i := 0; i < data.Len(); i++ {
			if data.numericAt(i) == m {
				mask.bools[i] = true
				matched = true
			}
		}
	}
	if !matched {
		return New(data, missing)
	}
	return &Array{Data: data, Fill: missing, maskBuf: mask}
}

func maskedEqualStructured(data *Buffer, missing any) *Array {
	sentinels, ok := missing.([]any)
	if !ok || len(sentinels) != len(data.fields) {
		return New(data, missing)
	}
	outer := data.Len()
	mask := Zeros(Bool, data.shape...)
	matched := false
	for fi, f := range data.fields {
		if sentinels[fi] == nil || outer == 0 {
			continue
		}
		sub := f.Data.Len() / outer
		fieldMask := MaskedEqual(f.Data, sentinels[fi])
		if fieldMask.maskBuf == nil {
			continue
		}
		for i := 0; i < outer; i++ {
			if mask.bools[i] {
				continue
			}
			for j := i * sub; j < (i+1)*sub; j++ {
				if fieldMask.maskBuf.bools[j] {
					mask.bools[i] = true
					matched = true
					break
				}
			}
		}
	}
	if !matched {
		return New(data, missing)
	}
	return &Array{Data: data, Fill: missing, maskBuf: mask}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Shape returns a copy of the data shape.
func (a *Array) Shape() []int { return a.Data.Shape() }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return a.Data.NDim() }

// Len returns the number of elements.
func (a *Array) Len() int { return a.Data.Len() }

// Kind returns the element kind of the data buffer.
func (a *Array) Kind() Kind { return a.Data.Kind() }

// At returns the raw data element at the given multi-index, whether or not
// it is masked. Combine with MaskAt to know if the value is valid.
func (a *Array) At(ix ...int) any { return a.Data.At(ix...) }

// MaskAt reports whether the element at the given multi-index is masked.
func (a *Array) MaskAt(ix ...int) bool {
	if a.maskBuf == nil {
		return a.maskAll
	}
	return a.maskBuf.At(ix...).(bool)
}

// MaskIsScalar reports whether the mask is a single boolean rather than an
// element-wise buffer.
func (a *Array) MaskIsScalar() bool { return a.maskBuf == nil }

// AnyMasked reports whether at least one element is masked.
func (a *Array) AnyMasked() bool {
	if a.maskBuf == nil {
		return a.maskAll && a.Len() > 0
	}
	for _, m := range a.maskBuf.bools {
		if m {
			return true
		}
	}
	return false
}

// MaskedCount returns the number of masked elements.
func (a *Array) MaskedCount() int {
	if a.maskBuf == nil {
		if a.maskAll {
			return a.Len()
		}
		return 0
	}
	n := 0
	for _, m := range a.maskBuf.bools {
		if m {
			n++
		}
	}
	return n
}

// MaskBuffer materializes the mask as a boolean buffer with the data's
// shape, expanding a scalar mask on the fly.
func (a *Array) MaskBuffer() *Buffer {
	if a.maskBuf != nil {
		return a.maskBuf
	}
	out := Zeros(Bool, a.Data.shape...)
	if a.maskAll {
		for i := range out.bools {
			out.bools[i] = true
		}
	}
	return out
}

// Select applies the selections to data and mask alike. A scalar mask
// passes through untouched.
func (a *Array) Select(sels ...Sel) (*Array, error) {
	data, err := a.Data.Select(sels...)
	if err != nil {
		return nil, err
	}
	out := &Array{Data: data, Fill: a.Fill, maskAll: a.maskAll}
	if a.maskBuf != nil {
		mask, err := a.maskBuf.Select(padSels(a.Data.shape, sels)...)
		if err != nil {
			return nil, err
		}
		out.maskBuf = mask
	}
	return out, nil
}

// Transpose permutes the axes of data and mask alike.
func (a *Array) Transpose(axes ...int) (*Array, error) {
	data, err := a.Data.Transpose(axes...)
	if err != nil {
		return nil, err
	}
	out := &Array{Data: data, Fill: a.Fill, maskAll: a.maskAll}
	if a.maskBuf != nil {
		mask, err := a.maskBuf.Transpose(axes...)
		if err != nil {
			return nil, err
		}
		out.maskBuf = mask
	}
	return out, nil
}

// Copy returns an array with deep copies of the data and mask buffers.
func (a *Array) Copy() *Array {
	out := &Array{Data: a.Data.Copy(), Fill: a.Fill, maskAll: a.maskAll}
	if a.maskBuf != nil {
		out.maskBuf = a.maskBuf.Copy()
	}
	return out
}

// ReplaceMasked returns an array whose masked elements hold v. The mask is
// preserved so the elements remain flagged as missing. When nothing is
// masked the receiver is returned unchanged and the data buffer is shared;
// otherwise the data is copied before writing. Structured data is returned
// untouched. Storing a non-integral v into integer data panics; use
// ReplaceMaskedWithFloat to widen first.
func (a *Array) ReplaceMasked(v any) *Array {
	if a.Data.Kind() == Structured || !a.AnyMasked() {
		return a
	}
	out := &Array{Data: a.Data.Copy(), Fill: a.Fill, maskAll: a.maskAll, maskBuf: a.maskBuf}
	out.writeMasked(v)
	return out
}

// ReplaceMaskedInPlace writes v over the masked elements of the receiver's
// own data buffer. Structured data is left untouched.
func (a *Array) ReplaceMaskedInPlace(v any) {
	if a.Data.Kind() == Structured || !a.AnyMasked() {
		return
	}
	a.writeMasked(v)
}

func (a *Array) writeMasked(v any) {
	if a.maskBuf == nil {
		for i := 0; i < a.Data.Len(); i++ {
			a.Data.setFlat(i, v)
		}
		return
	}
	for i, m := range a.maskBuf.bools {
		if m {
			a.Data.setFlat(i, v)
		}
	}
}

// ReplaceMaskedWithFloat replaces masked elements with a float value such
// as NaN. Integer data is widened to float64 first so the value fits;
// float data keeps its width. Bool and structured data cannot hold floats
// and are returned untouched.
func (a *Array) ReplaceMaskedWithFloat(v float64) *Array {
	k := a.Data.Kind()
	if !k.IsNumeric() {
		return a
	}
	src := a
	if k.IsInteger() {
		widened, err := a.Data.ToFloat64()
		if err != nil {
			return a
		}
		src = &Array{Data: widened, Fill: a.Fill, maskAll: a.maskAll, maskBuf: a.maskBuf}
	}
	return src.ReplaceMasked(v)
}

// validFloats gathers the unmasked, non-NaN elements as float64 values.
// Non-numeric data yields nothing.
func (a *Array) validFloats() []float64 {
	if !a.Data.Kind().IsNumeric() {
		return nil
	}
	if a.maskBuf == nil && a.maskAll {
		return nil
	}
	out := make([]float64, 0, a.Data.Len())
	for i := 0; i < a.Data.Len(); i++ {
		if a.maskBuf != nil && a.maskBuf.bools[i] {
			continue
		}
		v := a.Data.numericAt(i)
		if math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
