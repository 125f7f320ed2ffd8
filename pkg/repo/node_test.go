package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// stubItem is a minimal variant with instrumented hooks, so lifecycle tests
// can observe exactly which hooks ran and inject failures.
type stubItem struct {
	node

	openErr  error
	closeErr error
	fetchErr error
	produce  func() []Item

	opens, closes, fetches int
}

func newStub(name string, fetchable bool) *stubItem {
	return &stubItem{node: newNode(name, "", fetchable)}
}

func (it *stubItem) Kind() Kind { return KindScalar }

func (it *stubItem) openResources() error {
	it.opens++
	return it.openErr
}

func (it *stubItem) closeResources() error {
	it.closes++
	return it.closeErr
}

func (it *stubItem) fetchResources() ([]Item, error) {
	it.fetches++
	if it.fetchErr != nil {
		return nil, it.fetchErr
	}
	if it.produce == nil {
		return nil, nil
	}
	return it.produce(), nil
}

func attach(t *testing.T, parent, child Item) {
	t.Helper()
	require.NoError(t, attachChild(parent, child, -1))
}

// ============================================================================
// Path Tests
// ============================================================================

func TestNodePaths(t *testing.T) {
	t.Run("DetachedPathIsJustTheName", func(t *testing.T) {
		it := newStub("survey", false)
		assert.Equal(t, "survey", it.Path())
	})

	t.Run("AttachedPathIsParentPathPlusName", func(t *testing.T) {
		root := newStub("root", false)
		mid := newStub("season", false)
		leaf := newStub("survey", false)
		attach(t, root, mid)
		attach(t, mid, leaf)

		assert.Equal(t, "root/season", mid.Path())
		assert.Equal(t, "root/season/survey", leaf.Path())
	})

	t.Run("RenameIsVisibleAcrossTheSubtree", func(t *testing.T) {
		root := newStub("root", false)
		mid := newStub("season", false)
		leaf := newStub("survey", false)
		attach(t, root, mid)
		attach(t, mid, leaf)

		require.NoError(t, mid.SetName("2019"))
		assert.Equal(t, "root/2019", mid.Path())
		assert.Equal(t, "root/2019/survey", leaf.Path())
	})

	t.Run("RenameRejectsInvalidNames", func(t *testing.T) {
		it := newStub("ok", false)
		assert.ErrorIs(t, it.SetName(""), ErrBadNodeName)
		assert.ErrorIs(t, it.SetName("a/b"), ErrBadNodeName)
		assert.Equal(t, "ok", it.Name())
	})

	t.Run("ReparentRecomputesPaths", func(t *testing.T) {
		root := newStub("root", false)
		a := newStub("a", false)
		b := newStub("b", false)
		leaf := newStub("leaf", false)
		attach(t, root, a)
		attach(t, root, b)
		attach(t, a, leaf)
		require.Equal(t, "root/a/leaf", leaf.Path())

		moved := detachChild(a, 0)
		assert.Equal(t, "leaf", moved.Path())
		attach(t, b, moved)
		assert.Equal(t, "root/b/leaf", moved.Path())
	})

	t.Run("StoreRootChildrenGetAbsolutePaths", func(t *testing.T) {
		s := NewStore(nil, DefaultRegistry())
		it := newStub("archive", false)
		require.NoError(t, attachChild(s.Root(), it, -1))
		assert.Equal(t, "/archive", it.Path())
	})
}

// ============================================================================
// Structural Mutation Tests
// ============================================================================

func TestAttachChild(t *testing.T) {
	t.Run("RejectsAlreadyAttachedChild", func(t *testing.T) {
		p1 := newStub("p1", false)
		p2 := newStub("p2", false)
		c := newStub("c", false)
		attach(t, p1, c)

		err := attachChild(p2, c, -1)
		assert.ErrorIs(t, err, ErrItemAttached)
		assert.Same(t, Item(p1), c.Parent())
	})

	t.Run("RejectsInvalidNames", func(t *testing.T) {
		p := newStub("p", false)
		assert.ErrorIs(t, attachChild(p, newStub("", false), -1), ErrBadNodeName)
		assert.ErrorIs(t, attachChild(p, newStub("a/b", false), -1), ErrBadNodeName)
		assert.Equal(t, 0, p.ChildCount())
	})

	t.Run("InsertsAtPosition", func(t *testing.T) {
		p := newStub("p", false)
		attach(t, p, newStub("a", false))
		attach(t, p, newStub("c", false))
		require.NoError(t, attachChild(p, newStub("b", false), 1))

		names := make([]string, 0, p.ChildCount())
		for _, c := range p.Children() {
			names = append(names, c.Name())
		}
		assert.Equal(t, []string{"a", "b", "c"}, names)
	})

	t.Run("OutOfRangePositionAppends", func(t *testing.T) {
		p := newStub("p", false)
		attach(t, p, newStub("a", false))
		require.NoError(t, attachChild(p, newStub("z", false), 99))
		assert.Equal(t, "z", p.ChildAt(1).Name())
	})
}

func TestClearChildren(t *testing.T) {
	t.Run("FinalizesChildrenAndReArmsFetch", func(t *testing.T) {
		p := newStub("p", true)
		c1 := newStub("c1", false)
		c2 := newStub("c2", false)
		attach(t, p, c1)
		attach(t, p, c2)
		Open(c1)
		Open(c2)
		p.canFetch = false

		clearChildren(p)
		assert.Equal(t, 0, p.ChildCount())
		assert.True(t, p.CanFetchChildren())
		assert.False(t, c1.IsOpen())
		assert.False(t, c2.IsOpen())
		assert.Equal(t, 1, c1.closes)
		assert.Nil(t, c1.Parent())
	})

	t.Run("FinalizesBottomUp", func(t *testing.T) {
		p := newStub("p", false)
		mid := newStub("mid", false)
		leaf := newStub("leaf", false)
		attach(t, p, mid)
		attach(t, mid, leaf)
		Open(mid)
		Open(leaf)

		clearChildren(p)
		assert.False(t, mid.IsOpen())
		assert.False(t, leaf.IsOpen())
		assert.Equal(t, 1, leaf.closes)
	})

	t.Run("PermanentLeafStaysUnfetchable", func(t *testing.T) {
		p := newStub("p", false)
		attach(t, p, newStub("c", false))
		clearChildren(p)
		assert.False(t, p.CanFetchChildren())
	})
}

// ============================================================================
// Lookup Tests
// ============================================================================

func TestFindByPath(t *testing.T) {
	root := newStub("root", false)
	season := newStub("season", false)
	survey := newStub("survey", false)
	attach(t, root, season)
	attach(t, season, survey)

	t.Run("ResolvesNestedSegments", func(t *testing.T) {
		it, err := FindByPath(root, "season/survey")
		require.NoError(t, err)
		assert.Same(t, Item(survey), it)
	})

	t.Run("SkipsEmptySegments", func(t *testing.T) {
		for _, p := range []string{"season//survey", "/season/survey/", "//season///survey"} {
			it, err := FindByPath(root, p)
			require.NoError(t, err, p)
			assert.Same(t, Item(survey), it)
		}
	})

	t.Run("EmptyPathResolvesToStart", func(t *testing.T) {
		it, err := FindByPath(root, "")
		require.NoError(t, err)
		assert.Same(t, Item(root), it)
	})

	t.Run("MissingSegmentIsNotFound", func(t *testing.T) {
		_, err := FindByPath(root, "season/missing")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
}

// ============================================================================
// Metadata Tests
// ============================================================================

func TestItemMetadata(t *testing.T) {
	t.Run("DimensionalityLabels", func(t *testing.T) {
		buf, err := masked.NewFloat64([]int{2, 3}, make([]float64, 6))
		require.NoError(t, err)
		arr := NewArrayItem("a", masked.New(buf, nil))
		assert.Equal(t, "2D", Dimensionality(arr))
		assert.Equal(t, 2, NDim(arr))

		scalarBuf, err := masked.NewFloat64(nil, []float64{1})
		require.NoError(t, err)
		assert.Equal(t, "scalar", Dimensionality(NewArrayItem("s", masked.New(scalarBuf, nil))))

		assert.Equal(t, "", Dimensionality(newStub("plain", false)))
	})

	t.Run("ErroredItemsDecorateAsErrored", func(t *testing.T) {
		it := newStub("bad", false)
		it.lastErr = assert.AnError
		assert.Equal(t, colorError, DecorationColor(it))

		it.lastErr = nil
		assert.Equal(t, colorMemory, DecorationColor(it))
	})
}
