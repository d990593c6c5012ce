package scroller_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miosa/osa-scroller/scroller"
)

type note struct {
	ID  string
	Rev int
}

func notes(n int) []note {
	out := make([]note, n)
	for i := range out {
		out[i] = note{ID: fmt.Sprintf("n%d", i)}
	}
	return out
}

func newDynamic(t *testing.T, minSize, viewport float64, mutate ...func(*scroller.Options)) *scroller.Dynamic[note] {
	t.Helper()
	opts := scroller.DefaultOptions()
	opts.MinItemSize = minSize
	opts.Buffer = 0
	for _, fn := range mutate {
		fn(&opts)
	}
	d, err := scroller.NewDynamic(opts, scroller.DynamicAccessors[note]{
		Version: func(n note) int { return n.Rev },
	})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	_, err = d.SetViewport(viewport)
	require.NoError(t, err)
	return d
}

// measureFrame measures every queued job whose slot still renders its item
// with height(key) and flushes.
func measureFrame(t *testing.T, d *scroller.Dynamic[note], height func(key any) float64) scroller.Pass[scroller.Sized[note]] {
	t.Helper()
	var ms []scroller.Measurement
	for _, job := range d.Jobs() {
		if _, ok := d.JobItem(job); !ok {
			continue
		}
		ms = append(ms, scroller.Measurement{Job: job, Width: 80, Height: height(job.Key)})
	}
	p, _, err := d.Commit(ms)
	require.NoError(t, err)
	return p
}

func constant(h float64) func(any) float64 {
	return func(any) float64 { return h }
}

func TestNewDynamicRequiresMinItemSize(t *testing.T) {
	t.Parallel()

	_, err := scroller.NewDynamic(scroller.DefaultOptions(), scroller.DynamicAccessors[note]{})
	require.ErrorIs(t, err, scroller.ErrMinItemSize)
}

func TestDynamicMeasuresBoundItems(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 100, 300)
	_, err := d.SetItems(notes(10))
	require.NoError(t, err)

	assert.Equal(t, 3, d.State().End)
	assert.Equal(t, 3, d.Tracker().Unmeasured())

	measureFrame(t, d, constant(100))
	assert.Zero(t, d.Tracker().Unmeasured())
	assert.InDelta(t, 100.0, d.ItemSize(note{ID: "n1"}, 1), 0)
	assert.Zero(t, d.ItemSize(note{ID: "n9"}, 9))

	total, ok := d.TotalSize()
	require.True(t, ok)
	assert.InDelta(t, 1000.0, total, 0)
}

func TestDynamicSmallItemsGrowTheWindow(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 100, 300)
	_, err := d.SetItems(notes(10))
	require.NoError(t, err)

	// Items are shorter than estimated: more of them fit.
	p := measureFrame(t, d, constant(50))
	assert.Equal(t, 5, p.End)
	assert.Equal(t, 2, d.Tracker().Unmeasured())

	p = measureFrame(t, d, constant(50))
	assert.Equal(t, 6, p.End)
}

func TestDynamicCompensatesShrinkAboveViewport(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 100, 300)
	items := notes(10)
	_, err := d.SetItems(items)
	require.NoError(t, err)
	measureFrame(t, d, constant(100))

	_, err = d.SetScroll(150)
	require.NoError(t, err)
	p := measureFrame(t, d, constant(100))
	assert.Zero(t, p.Shift)
	assert.InDelta(t, 150.0, d.Scroll(), 0)

	// The first item's content changes and it is re-measured smaller.
	items[0].Rev++
	_, err = d.SetItems(items)
	require.NoError(t, err)

	p = measureFrame(t, d, func(key any) float64 {
		if key == "n0" {
			return 50
		}
		return 100
	})
	assert.InDelta(t, -50.0, p.Shift, 0)
	assert.InDelta(t, 100.0, d.Scroll(), 0)
}

func TestDynamicIgnoresChangesBelowViewport(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 100, 300)
	items := notes(10)
	_, err := d.SetItems(items)
	require.NoError(t, err)
	measureFrame(t, d, constant(100))

	items[2].Rev++
	_, err = d.SetItems(items)
	require.NoError(t, err)
	p := measureFrame(t, d, func(key any) float64 {
		if key == "n2" {
			return 300
		}
		return 100
	})
	assert.Zero(t, p.Shift)
	assert.Zero(t, d.Scroll())
}

func TestDynamicStaleMeasurementAfterJump(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 10, 30)
	_, err := d.SetItems(notes(1000))
	require.NoError(t, err)
	jobs := d.Jobs()
	require.NotEmpty(t, jobs)

	// Jump far away before the frame is measured: every slot is rebound.
	_, err = d.ScrollToItem(500)
	require.NoError(t, err)

	for _, job := range jobs {
		assert.False(t, d.Measured(job, 80, 12))
	}
	assert.Equal(t, len(jobs), d.Tracker().Stats().Stale)
}

func TestDynamicIndexKeys(t *testing.T) {
	t.Parallel()

	opts := scroller.DefaultOptions()
	opts.KeyField = ""
	opts.MinItemSize = 10
	d, err := scroller.NewDynamic(opts, scroller.DynamicAccessors[string]{})
	require.NoError(t, err)
	defer d.Close()
	_, err = d.SetViewport(100)
	require.NoError(t, err)

	// Duplicate values are fine when items are keyed by index.
	_, err = d.SetItems([]string{"x", "x", "y"})
	require.NoError(t, err)

	for _, job := range d.Jobs() {
		d.Measured(job, 80, 20)
	}
	_, ok, err := d.Flush()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 20.0, d.ItemSize("ignored", 1), 0)

	// Any change to a simple list re-measures everything.
	_, err = d.SetItems([]string{"y", "x", "x"})
	require.NoError(t, err)
	assert.Len(t, d.Jobs(), 3)
	assert.Equal(t, 3, d.Tracker().Unmeasured())
}

func TestDynamicScrollToBottom(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 10, 50)
	_, err := d.SetItems(notes(20))
	require.NoError(t, err)

	started, err := d.ScrollToBottom()
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, d.ScrollingToBottom())

	started, err = d.ScrollToBottom()
	require.NoError(t, err)
	assert.False(t, started, "a poll is already running")

	done := false
	for i := 0; i < 10 && !done; i++ {
		measureFrame(t, d, constant(10))
		done, err = d.PollBottom()
		require.NoError(t, err)
	}
	assert.True(t, done)
	assert.False(t, d.ScrollingToBottom())
	assert.InDelta(t, 150.0, d.Scroll(), 0)
}

func TestDynamicScrollToBottomGivesUp(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 10, 50, func(o *scroller.Options) { o.MaxEndPolls = 5 })
	_, err := d.SetItems(notes(20))
	require.NoError(t, err)

	_, err = d.ScrollToBottom()
	require.NoError(t, err)

	polls := 0
	for {
		polls++
		done, err := d.PollBottom()
		require.NoError(t, err)
		if done {
			break
		}
		require.Less(t, polls, 100)
	}
	assert.Equal(t, 5, polls)
	assert.Positive(t, d.Tracker().Unmeasured())
}

func TestDynamicInactiveDefersMeasurement(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 10, 50)
	_, err := d.SetItems(notes(20))
	require.NoError(t, err)
	measureFrame(t, d, constant(10))

	_, err = d.SetActive(false)
	require.NoError(t, err)
	_, err = d.ForceUpdate(false)
	require.NoError(t, err)
	assert.Empty(t, d.Jobs())

	_, err = d.SetActive(true)
	require.NoError(t, err)
	assert.NotEmpty(t, d.Jobs())
}

func TestDynamicResizeAcrossInvalidates(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 10, 50)
	_, err := d.SetItems(notes(20))
	require.NoError(t, err)
	measureFrame(t, d, constant(10))
	require.Zero(t, d.Tracker().Unmeasured())

	_, err = d.Resize(50, true)
	require.NoError(t, err)
	assert.Positive(t, d.Tracker().Unmeasured())

	// Narrower items wrap and grow.
	measureFrame(t, d, constant(20))
	assert.Zero(t, d.Tracker().Unmeasured())
	assert.InDelta(t, 20.0, d.ItemSize(note{ID: "n0"}, 0), 0)
}

func TestDynamicVisibleRemeasuresUnmeasured(t *testing.T) {
	t.Parallel()

	d := newDynamic(t, 10, 50)
	_, err := d.SetItems(notes(20))
	require.NoError(t, err)

	// The scroller was hidden: the first frame measured nothing.
	for _, job := range d.Jobs() {
		assert.False(t, d.Measured(job, 0, 0))
	}
	require.Equal(t, 5, d.Tracker().Unmeasured())

	_, err = d.Visible()
	require.NoError(t, err)
	measureFrame(t, d, constant(10))
	assert.Zero(t, d.Tracker().Unmeasured())
}
