package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Open / Close Tests
// ============================================================================

func TestOpenClose(t *testing.T) {
	t.Run("OpenMarksTheItemOpen", func(t *testing.T) {
		it := newStub("a", false)
		Open(it)
		assert.True(t, it.IsOpen())
		assert.NoError(t, it.LastErr())
		assert.Equal(t, 1, it.opens)
	})

	t.Run("OpenFailureIsCapturedNotPropagated", func(t *testing.T) {
		it := newStub("a", false)
		it.openErr = errors.New("no such file")
		Open(it)
		assert.False(t, it.IsOpen())
		assert.EqualError(t, it.LastErr(), "no such file")
	})

	t.Run("OpenWhileOpenClosesFirstWithoutRaising", func(t *testing.T) {
		it := newStub("a", false)
		Open(it)
		Open(it)
		assert.True(t, it.IsOpen())
		assert.NoError(t, it.LastErr())
		assert.Equal(t, 2, it.opens)
		assert.Equal(t, 1, it.closes)
	})

	t.Run("SuccessfulOpenClearsAnEarlierError", func(t *testing.T) {
		it := newStub("a", false)
		it.openErr = errors.New("transient")
		Open(it)
		require.Error(t, it.LastErr())

		it.openErr = nil
		Open(it)
		assert.True(t, it.IsOpen())
		assert.NoError(t, it.LastErr())
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		it := newStub("a", false)
		Open(it)
		Close(it)
		Close(it)
		assert.False(t, it.IsOpen())
		assert.NoError(t, it.LastErr())
		assert.Equal(t, 1, it.closes)
	})

	t.Run("CloseOnNeverOpenedItemIsANoOp", func(t *testing.T) {
		it := newStub("a", false)
		Close(it)
		assert.Equal(t, 0, it.closes)
	})

	t.Run("ReleaseFailureLeavesTheItemClosedWithError", func(t *testing.T) {
		it := newStub("a", false)
		it.closeErr = errors.New("handle stuck")
		Open(it)
		Close(it)
		assert.False(t, it.IsOpen())
		assert.EqualError(t, it.LastErr(), "handle stuck")
	})
}

func TestErrorContainment(t *testing.T) {
	parent := newStub("parent", false)
	good := newStub("good", false)
	bad := newStub("bad", false)
	bad.openErr = errors.New("corrupt")
	attach(t, parent, good)
	attach(t, parent, bad)

	Open(good)
	Open(bad)

	assert.True(t, good.IsOpen())
	assert.NoError(t, good.LastErr())
	assert.Error(t, bad.LastErr())
	assert.False(t, parent.IsOpen())
	assert.NoError(t, parent.LastErr())
}

// ============================================================================
// Fetch Tests
// ============================================================================

func TestFetchChildren(t *testing.T) {
	t.Run("ProducesDetachedChildren", func(t *testing.T) {
		it := newStub("p", true)
		it.produce = func() []Item {
			return []Item{newStub("a", false), newStub("b", false)}
		}
		children, err := FetchChildren(it)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Nil(t, children[0].Parent())
		assert.True(t, it.IsOpen())
	})

	t.Run("FlagFlipsExactlyOnceOnSuccess", func(t *testing.T) {
		it := newStub("p", true)
		_, err := FetchChildren(it)
		require.NoError(t, err)
		assert.False(t, it.CanFetchChildren())

		_, err = FetchChildren(it)
		assert.ErrorIs(t, err, ErrAlreadyFetched)
		assert.Equal(t, 1, it.fetches)
	})

	t.Run("FlagFlipsOnProductionFailureToo", func(t *testing.T) {
		it := newStub("p", true)
		it.fetchErr = errors.New("listing failed")
		children, err := FetchChildren(it)
		require.NoError(t, err)
		assert.Empty(t, children)
		assert.False(t, it.CanFetchChildren())
		assert.EqualError(t, it.LastErr(), "listing failed")
	})

	t.Run("OpenFailureShortCircuitsProduction", func(t *testing.T) {
		it := newStub("p", true)
		it.openErr = errors.New("no such file")
		children, err := FetchChildren(it)
		require.NoError(t, err)
		assert.Empty(t, children)
		assert.False(t, it.CanFetchChildren())
		assert.False(t, it.IsOpen())
		assert.Equal(t, 0, it.fetches)
	})

	t.Run("RemoveAllChildrenReArmsTheFlag", func(t *testing.T) {
		it := newStub("p", true)
		it.produce = func() []Item { return []Item{newStub("a", false)} }
		children, err := FetchChildren(it)
		require.NoError(t, err)
		for _, c := range children {
			attach(t, it, c)
		}
		require.False(t, it.CanFetchChildren())

		clearChildren(it)
		assert.True(t, it.CanFetchChildren())

		_, err = FetchChildren(it)
		require.NoError(t, err)
		assert.Equal(t, 2, it.fetches)
	})
}

// ============================================================================
// Slice Contract Tests
// ============================================================================

func TestSliceContract(t *testing.T) {
	t.Run("NonSliceableItemIsAContractError", func(t *testing.T) {
		it := newStub("plain", false)
		Open(it)
		_, err := Slice(it, masked.All())
		assert.ErrorIs(t, err, ErrNotSliceable)
	})

	t.Run("ClosedItemIsAContractError", func(t *testing.T) {
		buf, err := masked.NewInt32([]int{2}, []int32{1, 2})
		require.NoError(t, err)
		it := NewArrayItem("a", masked.New(buf, nil))
		// In-memory array items still follow the lifecycle: sliceable
		// but not yet opened.
		_, serr := Slice(it, masked.All())
		assert.ErrorIs(t, serr, ErrItemClosed)
	})

	t.Run("OpenSliceableItemSlices", func(t *testing.T) {
		buf, err := masked.NewInt32([]int{2, 2}, []int32{1, 2, 3, 4})
		require.NoError(t, err)
		it := NewArrayItem("a", masked.New(buf, nil))
		Open(it)

		out, err := Slice(it, masked.Index(1))
		require.NoError(t, err)
		assert.Equal(t, []int{2}, out.Shape())
		assert.Equal(t, int32(3), out.At(0))
	})
}
