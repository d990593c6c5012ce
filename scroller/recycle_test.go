package scroller_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miosa/osa-scroller/pool"
	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/window"
)

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func fixedOptions(size float64) scroller.Options {
	opts := scroller.DefaultOptions()
	opts.KeyField = ""
	opts.ItemSize = size
	return opts
}

func newFixed(t *testing.T, opts scroller.Options, viewport float64, n int) *scroller.Recycle[int] {
	t.Helper()
	r, err := scroller.NewRecycle(opts, scroller.Accessors[int]{})
	require.NoError(t, err)
	_, err = r.SetViewport(viewport)
	require.NoError(t, err)
	_, err = r.SetItems(ints(n))
	require.NoError(t, err)
	return r
}

func slotsByKey[T any](views []*pool.Slot[T, any]) map[any]int {
	out := map[any]int{}
	for _, v := range views {
		if v.Used {
			out[v.Key] = v.ID
		}
	}
	return out
}

func usedCount[T any](views []*pool.Slot[T, any]) int {
	n := 0
	for _, v := range views {
		if v.Used {
			n++
		}
	}
	return n
}

func TestNewRecycleRequiresSize(t *testing.T) {
	t.Parallel()

	opts := scroller.DefaultOptions()
	_, err := scroller.NewRecycle(opts, scroller.Accessors[int]{})
	require.ErrorIs(t, err, scroller.ErrMinItemSize)

	opts.ItemSize = 10
	opts.Direction = "diagonal"
	_, err = scroller.NewRecycle(opts, scroller.Accessors[int]{})
	require.ErrorIs(t, err, scroller.ErrDirection)
}

func TestRecycleFixedWindow(t *testing.T) {
	t.Parallel()

	r := newFixed(t, fixedOptions(50), 500, 10000)

	st := r.State()
	assert.Equal(t, 0, st.Start)
	assert.Equal(t, 14, st.End)
	assert.Equal(t, 0, st.VisibleStart)
	assert.Equal(t, 10, st.VisibleEnd)
	assert.Len(t, r.Views(), 14)

	total, ok := r.TotalSize()
	require.True(t, ok)
	assert.InDelta(t, 500000.0, total, 0)
	assert.InDelta(t, 499500.0, r.MaxScroll(), 0)
}

func TestRecycleKeepsSlotsWhileScrolling(t *testing.T) {
	t.Parallel()

	r := newFixed(t, fixedOptions(50), 500, 10000)
	before := slotsByKey(r.Views())

	p, err := r.SetScroll(100)
	require.NoError(t, err)
	assert.True(t, p.Continuous)
	assert.Equal(t, 16, p.End)

	after := slotsByKey(r.Views())
	for i := 0; i < 14; i++ {
		assert.Equal(t, before[i], after[i], "item %d changed slot", i)
	}
}

func TestRecycleSkipsSmallScrolls(t *testing.T) {
	t.Parallel()

	r := newFixed(t, fixedOptions(50), 500, 10000)

	p, err := r.SetScroll(30)
	require.NoError(t, err)
	assert.True(t, p.Skipped)
	assert.InDelta(t, 30.0, r.Scroll(), 0)

	p, err = r.ScrollBy(30)
	require.NoError(t, err)
	assert.False(t, p.Skipped)
}

func TestRecycleJumpReusesSlots(t *testing.T) {
	t.Parallel()

	r := newFixed(t, fixedOptions(50), 500, 10000)
	_, err := r.SetScroll(100)
	require.NoError(t, err)

	p, err := r.ScrollToItem(5000)
	require.NoError(t, err)
	assert.False(t, p.Continuous)
	assert.InDelta(t, 250000.0, r.Scroll(), 0)
	assert.Equal(t, 4996, p.Start)
	assert.Equal(t, 5014, p.End)

	// 16 slots existed, two more were needed.
	assert.Len(t, r.Views(), 18)
	assert.Equal(t, 18, usedCount(r.Views()))
	assert.Equal(t, 18, r.Stats()[""].Peak)
}

func TestRecycleScrollIsClamped(t *testing.T) {
	t.Parallel()

	r := newFixed(t, fixedOptions(10), 100, 50)

	_, err := r.SetScroll(-40)
	require.NoError(t, err)
	assert.Zero(t, r.Scroll())

	p, err := r.ScrollToEnd()
	require.NoError(t, err)
	assert.InDelta(t, 400.0, r.Scroll(), 0)
	assert.True(t, p.ReachedEnd)

	_, err = r.SetScroll(10000)
	require.NoError(t, err)
	assert.InDelta(t, 400.0, r.Scroll(), 0)
}

func TestRecycleDuplicateKeys(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	r, err := scroller.NewRecycle(opts, scroller.Accessors[string]{})
	require.NoError(t, err)
	_, err = r.SetViewport(100)
	require.NoError(t, err)

	_, err = r.SetItems([]string{"a", "b", "a"})
	require.ErrorIs(t, err, pool.ErrDuplicateKey)
}

func TestRecycleItemsLimit(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(1)
	opts.ItemsLimit = 10
	r, err := scroller.NewRecycle(opts, scroller.Accessors[int]{})
	require.NoError(t, err)
	_, err = r.SetViewport(100)
	require.NoError(t, err)

	_, err = r.SetItems(ints(1000))
	require.ErrorIs(t, err, window.ErrItemsLimit)
}

func TestRecyclePaddingItems(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	opts.NumItemsAbove = 2
	opts.NumItemsBelow = 2
	r := newFixed(t, opts, 100, 5)

	total, _ := r.TotalSize()
	assert.InDelta(t, 90.0, total, 0)
	require.Len(t, r.Views(), 9)

	synthetic := 0
	for _, v := range r.Views() {
		if v.Synthetic {
			synthetic++
			assert.Zero(t, v.Item)
		}
	}
	assert.Equal(t, 4, synthetic)

	for _, v := range r.Views() {
		if !v.Synthetic && v.Key == 0 {
			assert.InDelta(t, 20.0, v.Offset, 0)
			assert.Equal(t, 2, v.Index)
		}
	}
	assert.InDelta(t, 20.0, r.ItemOffset(0), 0)
}

func TestRecycleEmptyItems(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	opts.NumItemsAbove = 3
	r := newFixed(t, opts, 100, 0)

	assert.Empty(t, r.Views())
	total, ok := r.TotalSize()
	assert.True(t, ok)
	assert.Zero(t, total)
}

func TestRecycleGrid(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(50)
	opts.GridItems = 4
	opts.ItemSecondarySize = 25
	opts.Buffer = 0
	r := newFixed(t, opts, 100, 40)

	st := r.State()
	assert.Equal(t, 0, st.Start)
	assert.Equal(t, 8, st.End)

	total, _ := r.TotalSize()
	assert.InDelta(t, 500.0, total, 0)

	for _, v := range r.Views() {
		if v.Key == 5 {
			assert.InDelta(t, 50.0, v.Offset, 0)
			assert.InDelta(t, 25.0, v.SecondaryOffset, 0)
		}
	}
}

type sizedRow struct {
	ID   string
	Size float64
}

func TestRecycleVariableSizes(t *testing.T) {
	t.Parallel()

	opts := scroller.DefaultOptions()
	opts.MinItemSize = 100
	opts.Buffer = 0
	r, err := scroller.NewRecycle(opts, scroller.Accessors[sizedRow]{})
	require.NoError(t, err)
	_, err = r.SetViewport(100)
	require.NoError(t, err)

	_, err = r.SetItems([]sizedRow{{"a", 100}, {"b", 100}, {"c", 100}})
	require.NoError(t, err)
	assert.Equal(t, 1, r.State().End)

	// Half an item is below the skip threshold.
	p, err := r.SetScroll(50)
	require.NoError(t, err)
	assert.True(t, p.Skipped)

	p, err = r.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 0, p.Start)
	assert.Equal(t, 2, p.End)
	assert.Equal(t, 0, p.VisibleStart)
	assert.Equal(t, 2, p.VisibleEnd)
}

func TestRecycleCollapsedItems(t *testing.T) {
	t.Parallel()

	opts := scroller.DefaultOptions()
	opts.MinItemSize = 100
	r, err := scroller.NewRecycle(opts, scroller.Accessors[sizedRow]{})
	require.NoError(t, err)
	_, err = r.SetViewport(300)
	require.NoError(t, err)

	_, err = r.SetItems([]sizedRow{{"a", 100}, {"b", 0}, {"c", 100}})
	require.NoError(t, err)

	keys := slotsByKey(r.Views())
	assert.Len(t, keys, 2)
	assert.NotContains(t, keys, "b")
	assert.InDelta(t, 100.0, r.ItemOffset(2), 0)
}

func TestRecycleFollowsKeysOnInsert(t *testing.T) {
	t.Parallel()

	opts := scroller.DefaultOptions()
	opts.ItemSize = 10
	r, err := scroller.NewRecycle(opts, scroller.Accessors[sizedRow]{})
	require.NoError(t, err)
	_, err = r.SetViewport(100)
	require.NoError(t, err)

	_, err = r.SetItems([]sizedRow{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	before := slotsByKey(r.Views())

	_, err = r.SetItems([]sizedRow{{ID: "z"}, {ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	after := slotsByKey(r.Views())

	assert.Equal(t, before["a"], after["a"])
	assert.Equal(t, before["b"], after["b"])
	assert.Len(t, after, 3)
}

func TestRecycleTypedSlots(t *testing.T) {
	t.Parallel()

	items := []map[string]any{
		{"id": 1, "type": "header"},
		{"id": 2, "type": "row"},
		{"id": 3, "type": "row"},
	}
	opts := scroller.DefaultOptions()
	opts.ItemSize = 10
	r, err := scroller.NewRecycle(opts, scroller.Accessors[map[string]any]{})
	require.NoError(t, err)
	_, err = r.SetViewport(100)
	require.NoError(t, err)
	_, err = r.SetItems(items)
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, 1, stats["header"].Used)
	assert.Equal(t, 2, stats["row"].Used)
}

func TestRecycleOnUpdate(t *testing.T) {
	t.Parallel()

	var calls [][4]int
	opts := fixedOptions(10)
	opts.Buffer = 0
	opts.OnUpdate = func(start, end, vs, ve int) {
		calls = append(calls, [4]int{start, end, vs, ve})
	}
	r := newFixed(t, opts, 50, 100)

	_, err := r.SetScroll(100)
	require.NoError(t, err)

	require.NotEmpty(t, calls)
	assert.Equal(t, [4]int{10, 15, 10, 15}, calls[len(calls)-1])
}

func TestRecyclePrerender(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	opts.Prerender = 3
	r := newFixed(t, opts, 50, 100)

	assert.True(t, r.Prerendering())
	assert.Equal(t, 3, r.State().End)
	_, ok := r.TotalSize()
	assert.False(t, ok)

	p, err := r.EndPrerender()
	require.NoError(t, err)
	assert.False(t, r.Prerendering())
	assert.Equal(t, 25, p.End)
	total, ok := r.TotalSize()
	assert.True(t, ok)
	assert.InDelta(t, 1000.0, total, 0)
}

func TestRecycleSetActiveRestoresScroll(t *testing.T) {
	t.Parallel()

	r := newFixed(t, fixedOptions(10), 100, 1000)
	_, err := r.SetScroll(300)
	require.NoError(t, err)

	_, err = r.SetActive(false)
	require.NoError(t, err)
	assert.False(t, r.Active())

	// The host reset the position while the scroller was detached.
	p, err := r.SetScroll(0)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Start, "inactive scrollers keep their window")

	p, err = r.SetActive(true)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, r.Scroll(), 0)
	assert.Equal(t, 10, p.Start)
}

func TestRecycleBeforeContent(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	opts.Buffer = 0
	r := newFixed(t, opts, 50, 100)

	_, err := r.SetBefore(30)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, r.ItemOffset(0), 0)
	assert.InDelta(t, 1030.0, r.ContentSize(), 0)

	p, err := r.ScrollToItem(20)
	require.NoError(t, err)
	assert.InDelta(t, 230.0, r.Scroll(), 0)
	assert.Equal(t, 20, p.VisibleStart)
}

func TestRecyclePageMode(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	opts.PageMode = true
	opts.Buffer = 0
	r := newFixed(t, opts, 0, 100)

	p, err := r.SetPageBounds(window.Range{Start: 200, End: 260})
	require.NoError(t, err)
	assert.Equal(t, 20, p.Start)
	assert.Equal(t, 26, p.End)
}

func TestRecycleSortOrdersViews(t *testing.T) {
	t.Parallel()

	opts := fixedOptions(10)
	opts.Buffer = 0
	r := newFixed(t, opts, 50, 100)
	_, err := r.SetScroll(20)
	require.NoError(t, err)

	r.Sort()
	views := r.Views()
	for i := 1; i < len(views); i++ {
		assert.LessOrEqual(t, views[i-1].Index, views[i].Index)
	}
}
