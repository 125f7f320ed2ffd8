package repo

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// PIK1 Decoding Tests
// ============================================================================

func TestPIK1Open(t *testing.T) {
	t.Run("DecodesTracesBySize", func(t *testing.T) {
		fs := memfs.New()
		writePIK1(t, fs, "/line.pik1", 3)
		it := NewPIK1Item(fs, "line.pik1", "/line.pik1")

		Open(it)
		require.NoError(t, it.LastErr())

		arr := it.Traces()
		require.NotNil(t, arr)
		assert.Equal(t, []int{3, pik1SamplesPerTrace}, arr.Shape())
		assert.Equal(t, int32(0), arr.At(0, 0))
		assert.Equal(t, int32(20000+3199), arr.At(2, 3199))
	})

	t.Run("MountsOneArrayChild", func(t *testing.T) {
		fs := memfs.New()
		writePIK1(t, fs, "/line.pik1", 2)
		it := NewPIK1Item(fs, "line.pik1", "/line.pik1")

		children, err := FetchChildren(it)
		require.NoError(t, err)
		require.Len(t, children, 1)

		band := children[0]
		assert.Equal(t, "pik1", band.Name())
		assert.Equal(t, KindArray, band.Kind())
		assert.True(t, band.IsSliceable())
		assert.Equal(t, []int{2, pik1SamplesPerTrace}, band.Shape())
		assert.Equal(t, "int32", band.ElemType())
	})

	t.Run("TrailingPartialTraceIsDropped", func(t *testing.T) {
		fs := memfs.New()
		var buf bytes.Buffer
		for s := 0; s < pik1SamplesPerTrace+5; s++ {
			require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(s)))
		}
		require.NoError(t, util.WriteFile(fs, "/line.pik1", buf.Bytes(), 0o644))

		it := NewPIK1Item(fs, "line.pik1", "/line.pik1")
		Open(it)
		require.NoError(t, it.LastErr())
		assert.Equal(t, []int{1, pik1SamplesPerTrace}, it.Traces().Shape())
	})

	t.Run("EmptyFileIsAnOpenError", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "/line.pik1", nil, 0o644))
		it := NewPIK1Item(fs, "line.pik1", "/line.pik1")
		Open(it)
		assert.False(t, it.IsOpen())
		assert.ErrorContains(t, it.LastErr(), "empty")
	})

	t.Run("ShortFileIsAnOpenError", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "/line.pik1", make([]byte, 100), 0o644))
		it := NewPIK1Item(fs, "line.pik1", "/line.pik1")
		Open(it)
		assert.ErrorContains(t, it.LastErr(), "shorter than one trace")
	})

	t.Run("MissingFileIsAnOpenError", func(t *testing.T) {
		it := NewPIK1Item(memfs.New(), "line.pik1", "/line.pik1")
		Open(it)
		assert.False(t, it.IsOpen())
		assert.Error(t, it.LastErr())
	})

	t.Run("CloseReleasesTheDecodedTraces", func(t *testing.T) {
		fs := memfs.New()
		writePIK1(t, fs, "/line.pik1", 1)
		it := NewPIK1Item(fs, "line.pik1", "/line.pik1")
		Open(it)
		require.NotNil(t, it.Traces())
		Close(it)
		assert.Nil(t, it.Traces())
	})
}

func TestPIK1Slice(t *testing.T) {
	fs := memfs.New()
	writePIK1(t, fs, "/line.pik1", 4)
	it := NewPIK1Item(fs, "line.pik1", "/line.pik1")

	children, err := FetchChildren(it)
	require.NoError(t, err)
	require.NoError(t, it.LastErr())
	require.Len(t, children, 1)
	band := children[0]
	Open(band)

	t.Run("SelectsTraceWindows", func(t *testing.T) {
		out, err := Slice(band, masked.Range(1, 3), masked.Range(0, 2))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 2}, out.Shape())
		assert.Equal(t, int32(10000), out.At(0, 0))
		assert.Equal(t, int32(20001), out.At(1, 1))
	})

	t.Run("StridedSamplesDecimate", func(t *testing.T) {
		out, err := Slice(band, masked.Index(0), masked.RangeStep(0, 10, 5))
		require.NoError(t, err)
		assert.Equal(t, []int{2}, out.Shape())
		assert.Equal(t, int32(0), out.At(0))
		assert.Equal(t, int32(5), out.At(1))
	})
}
