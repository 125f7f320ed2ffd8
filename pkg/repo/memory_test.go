package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Value Dispatch Tests
// ============================================================================

func TestFromValue(t *testing.T) {
	buf, err := masked.NewFloat64([]int{2}, []float64{1, 2})
	require.NoError(t, err)

	cases := []struct {
		name  string
		value any
		kind  Kind
	}{
		{"MaskedArray", masked.New(buf, nil), KindArray},
		{"RawBuffer", buf, KindArray},
		{"Mapping", map[string]any{"a": 1}, KindMapping},
		{"Sequence", []any{1, 2}, KindSequence},
		{"Scalar", 42, KindScalar},
		{"String", "hello", KindScalar},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, FromValue("v", tc.value).Kind())
		})
	}
}

// ============================================================================
// Array Item Tests
// ============================================================================

func TestArrayItem(t *testing.T) {
	t.Run("PlainArraysAreSliceableLeaves", func(t *testing.T) {
		buf, err := masked.NewInt32([]int{2, 3}, []int32{1, 2, 3, 4, 5, 6})
		require.NoError(t, err)
		it := NewArrayItem("a", masked.New(buf, int32(-9)))

		assert.True(t, it.IsSliceable())
		assert.False(t, it.HasChildren())
		assert.Equal(t, []int{2, 3}, it.Shape())
		assert.Equal(t, "int32", it.ElemType())
		assert.Equal(t, int32(-9), it.MissingValue())
	})

	t.Run("StructuredArraysExpandIntoFields", func(t *testing.T) {
		lat, err := masked.NewFloat64([]int{2}, []float64{-77.1, -77.2})
		require.NoError(t, err)
		lon, err := masked.NewFloat64([]int{2}, []float64{166.5, 166.6})
		require.NoError(t, err)
		buf, err := masked.NewStructured([]int{2}, []masked.Field{
			{Name: "lat", Data: lat},
			{Name: "lon", Data: lon},
		})
		require.NoError(t, err)

		it := NewArrayItem("pos", masked.New(buf, nil))
		assert.True(t, it.HasChildren())

		children, err := FetchChildren(it)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "lat", children[0].Name())
		assert.Equal(t, KindField, children[0].Kind())
	})
}

// ============================================================================
// Field Item Tests
// ============================================================================

func TestFieldItem(t *testing.T) {
	lat, err := masked.NewFloat64([]int{3}, []float64{-77.1, -77.2, -77.3})
	require.NoError(t, err)
	lon, err := masked.NewFloat64([]int{3}, []float64{166.5, 166.6, 166.7})
	require.NoError(t, err)
	buf, err := masked.NewStructured([]int{3}, []masked.Field{
		{Name: "lat", Data: lat},
		{Name: "lon", Data: lon},
	})
	require.NoError(t, err)

	t.Run("SlicesItsOwnColumn", func(t *testing.T) {
		it := NewFieldItem(masked.New(buf, nil), "lon")
		Open(it)
		require.NoError(t, it.LastErr())

		out, err := Slice(it, masked.Range(0, 2))
		require.NoError(t, err)
		assert.Equal(t, []int{2}, out.Shape())
		assert.Equal(t, 166.5, out.At(0))
	})

	t.Run("SelectsItsComponentOfACompositeMissingValue", func(t *testing.T) {
		arr := masked.New(buf, []any{-999.0, -888.0})
		assert.Equal(t, -999.0, NewFieldItem(arr, "lat").MissingValue())
		assert.Equal(t, -888.0, NewFieldItem(arr, "lon").MissingValue())
	})

	t.Run("PassesScalarMissingValueThrough", func(t *testing.T) {
		arr := masked.New(buf, -999.0)
		assert.Equal(t, -999.0, NewFieldItem(arr, "lat").MissingValue())
	})

	t.Run("InheritsTheOuterMask", func(t *testing.T) {
		mask, err := masked.NewBool([]int{3}, []bool{false, true, false})
		require.NoError(t, err)
		arr, err := masked.NewWithMask(buf, mask, nil)
		require.NoError(t, err)

		it := NewFieldItem(arr, "lat")
		Open(it)
		out, serr := Slice(it, masked.All())
		require.NoError(t, serr)
		assert.False(t, out.MaskAt(0))
		assert.True(t, out.MaskAt(1))
	})

	t.Run("BroadcastsTheMaskOverSubDimensions", func(t *testing.T) {
		vec, err := masked.NewFloat64([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
		require.NoError(t, err)
		sbuf, err := masked.NewStructured([]int{2}, []masked.Field{{Name: "v", Data: vec}})
		require.NoError(t, err)
		mask, err := masked.NewBool([]int{2}, []bool{true, false})
		require.NoError(t, err)
		arr, err := masked.NewWithMask(sbuf, mask, nil)
		require.NoError(t, err)

		it := NewFieldItem(arr, "v")
		Open(it)
		out, serr := Slice(it, masked.All())
		require.NoError(t, serr)
		assert.Equal(t, []int{2, 3}, out.Shape())
		assert.True(t, out.MaskAt(0, 2))
		assert.False(t, out.MaskAt(1, 0))
	})

	t.Run("MissingFieldIsACapturedOpenError", func(t *testing.T) {
		it := NewFieldItem(masked.New(buf, nil), "elevation")
		Open(it)
		assert.False(t, it.IsOpen())
		assert.ErrorContains(t, it.LastErr(), "elevation")
	})
}

// ============================================================================
// Scalar / Sequence / Mapping Tests
// ============================================================================

func TestScalarItem(t *testing.T) {
	it := NewScalarItem("count", 42)
	assert.False(t, it.IsSliceable())
	assert.False(t, it.HasChildren())
	assert.Equal(t, "int", it.ElemType())
	assert.Equal(t, 42, it.Value())
}

func TestSequenceItem(t *testing.T) {
	it := NewSequenceItem("readings", []any{1.5, "calibrated", []any{2, 3}})
	children, err := FetchChildren(it)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "elem-0", children[0].Name())
	assert.Equal(t, KindScalar, children[0].Kind())
	assert.Equal(t, KindScalar, children[1].Kind())
	assert.Equal(t, KindSequence, children[2].Kind())
}

func TestMappingItem(t *testing.T) {
	it := NewMappingItem("meta", map[string]any{
		"site":    "dome-c",
		"band":    1,
		"offsets": []any{0, 4},
	})
	children, err := FetchChildren(it)
	require.NoError(t, err)
	require.Len(t, children, 3)

	// Children come back sorted by key regardless of map iteration order.
	assert.Equal(t, "band", children[0].Name())
	assert.Equal(t, "offsets", children[1].Name())
	assert.Equal(t, "site", children[2].Name())
}
