package repo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func float64Array(t *testing.T, shape []int, data []float64) *masked.Array {
	t.Helper()
	buf, err := masked.NewFloat64(shape, data)
	require.NoError(t, err)
	return masked.New(buf, nil)
}

// ============================================================================
// Stacking Tests
// ============================================================================

func TestRunStack(t *testing.T) {
	t.Run("CoherentAveragesTraceWindows", func(t *testing.T) {
		in := float64Array(t, []int{4, 2}, []float64{
			1, 10,
			3, 20,
			5, 30,
			7, 40,
		})
		out, err := RunStack(StackRequest{Name: "s", Input: in, Window: 2, Mode: StackCoherent})
		require.NoError(t, err)
		require.Equal(t, []int{2, 2}, out.Shape())
		assert.Equal(t, 2.0, out.At(0, 0))
		assert.Equal(t, 15.0, out.At(0, 1))
		assert.Equal(t, 6.0, out.At(1, 0))
		assert.Equal(t, 35.0, out.At(1, 1))
		assert.False(t, out.AnyMasked())
	})

	t.Run("IncoherentAveragesPower", func(t *testing.T) {
		in := float64Array(t, []int{2, 1}, []float64{3, -4})
		out, err := RunStack(StackRequest{Name: "s", Input: in, Window: 2, Mode: StackIncoherent})
		require.NoError(t, err)
		// (9 + 16) / 2
		assert.Equal(t, 12.5, out.At(0, 0))
	})

	t.Run("TrailingPartialWindowIsKept", func(t *testing.T) {
		in := float64Array(t, []int{3, 1}, []float64{1, 2, 9})
		out, err := RunStack(StackRequest{Name: "s", Input: in, Window: 2, Mode: StackCoherent})
		require.NoError(t, err)
		require.Equal(t, []int{2, 1}, out.Shape())
		assert.Equal(t, 1.5, out.At(0, 0))
		assert.Equal(t, 9.0, out.At(1, 0))
	})

	t.Run("MaskedSamplesLeaveTheirWindowAverage", func(t *testing.T) {
		buf, err := masked.NewFloat64([]int{2, 1}, []float64{2, 100})
		require.NoError(t, err)
		mask, err := masked.NewBool([]int{2, 1}, []bool{false, true})
		require.NoError(t, err)
		in, err := masked.NewWithMask(buf, mask, nil)
		require.NoError(t, err)

		out, serr := RunStack(StackRequest{Name: "s", Input: in, Window: 2, Mode: StackCoherent})
		require.NoError(t, serr)
		assert.Equal(t, 2.0, out.At(0, 0))
		assert.False(t, out.MaskAt(0, 0))
	})

	t.Run("EmptyWindowsComeBackMaskedNaN", func(t *testing.T) {
		buf, err := masked.NewFloat64([]int{2, 1}, []float64{1, 2})
		require.NoError(t, err)
		in := masked.NewAllMasked(buf, nil)

		out, serr := RunStack(StackRequest{Name: "s", Input: in, Window: 2, Mode: StackCoherent})
		require.NoError(t, serr)
		assert.True(t, out.MaskAt(0, 0))
		assert.True(t, math.IsNaN(out.At(0, 0).(float64)))
	})

	t.Run("IntegerInputWidens", func(t *testing.T) {
		buf, err := masked.NewInt32([]int{2, 1}, []int32{1, 2})
		require.NoError(t, err)
		out, serr := RunStack(StackRequest{Name: "s", Input: masked.New(buf, nil), Window: 2, Mode: StackCoherent})
		require.NoError(t, serr)
		assert.Equal(t, masked.Float64, out.Kind())
		assert.Equal(t, 1.5, out.At(0, 0))
	})

	t.Run("ContractViolationsError", func(t *testing.T) {
		_, err := RunStack(StackRequest{Name: "s", Window: 2})
		assert.ErrorContains(t, err, "no input")

		in := float64Array(t, []int{2}, []float64{1, 2})
		_, err = RunStack(StackRequest{Name: "s", Input: in, Window: 2})
		assert.ErrorContains(t, err, "2-dimensional")

		in2 := float64Array(t, []int{2, 1}, []float64{1, 2})
		_, err = RunStack(StackRequest{Name: "s", Input: in2, Window: 0})
		assert.ErrorContains(t, err, "window")
	})
}

func TestStartStack(t *testing.T) {
	t.Run("DeliversTheResultOnTheChannel", func(t *testing.T) {
		in := float64Array(t, []int{2, 1}, []float64{1, 3})
		ch := StartStack(context.Background(), StackRequest{Name: "s", Input: in, Window: 2, Mode: StackCoherent})

		select {
		case res := <-ch:
			require.NoError(t, res.Err)
			require.NotNil(t, res.Arr)
			assert.Equal(t, 2.0, res.Arr.At(0, 0))
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not deliver")
		}
	})

	t.Run("CancelledContextDeliversTheError", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		in := float64Array(t, []int{2, 1}, []float64{1, 3})
		res := <-StartStack(ctx, StackRequest{Name: "s", Input: in, Window: 2})
		assert.ErrorIs(t, res.Err, context.Canceled)
	})
}

// ============================================================================
// Derived Item Tests
// ============================================================================

func TestDerivedItem(t *testing.T) {
	t.Run("StartsAsAnEmptyPlaceholder", func(t *testing.T) {
		it := NewDerivedItem("stacked")
		assert.Equal(t, KindDerived, it.Kind())
		assert.False(t, it.IsSliceable())
		assert.False(t, it.HasChildren())
		assert.Nil(t, it.Shape())
	})

	t.Run("SetResultMakesItSliceable", func(t *testing.T) {
		it := NewDerivedItem("stacked")
		it.SetResult(float64Array(t, []int{1, 2}, []float64{1, 2}))
		assert.True(t, it.IsSliceable())
		assert.Equal(t, []int{1, 2}, it.Shape())
		assert.Equal(t, "float64", it.ElemType())

		Open(it)
		out, err := Slice(it, masked.Index(0))
		require.NoError(t, err)
		assert.Equal(t, 2.0, out.At(1))
	})

	t.Run("FailRecordsTheError", func(t *testing.T) {
		it := NewDerivedItem("stacked")
		it.Fail(assert.AnError)
		assert.False(t, it.IsSliceable())
		assert.ErrorIs(t, it.LastErr(), assert.AnError)

		it.SetResult(float64Array(t, []int{1}, []float64{1}))
		assert.NoError(t, it.LastErr())
	})

	t.Run("WorkerResultFlowsIntoTheTree", func(t *testing.T) {
		in := float64Array(t, []int{2, 2}, []float64{1, 2, 3, 4})
		res := <-StartStack(context.Background(), StackRequest{Name: "stacked", Input: in, Window: 2, Mode: StackCoherent})
		require.NoError(t, res.Err)

		s := NewStore(nil, DefaultRegistry())
		placeholder := NewDerivedItem(res.Name)
		require.NoError(t, s.InsertChild(s.Root(), placeholder, -1))
		placeholder.SetResult(res.Arr)

		got, err := s.Slice("/stacked", "0, :")
		require.NoError(t, err)
		assert.Equal(t, 2.0, got.At(0))
		assert.Equal(t, 3.0, got.At(1))
	})
}
