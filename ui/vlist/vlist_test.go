package vlist

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/miosa/osa-scroller/bridge"
)

// ---------------------------------------------------------------------------
// Test item implementation
// ---------------------------------------------------------------------------

type testItem struct {
	id      string
	content string
	detail  string
	version int
}

func (t testItem) ID() string          { return t.id }
func (t testItem) ContentVersion() int { return t.version }
func (t testItem) Render(width int, expanded bool) string {
	if expanded && t.detail != "" {
		return t.content + "\n" + t.detail
	}
	return t.content
}

func lineItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := fmt.Sprintf("item-%d", i)
		items[i] = testItem{id: id, content: id, detail: id + " detail", version: 1}
	}
	return items
}

func multiLineItems(n, lines int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := fmt.Sprintf("item-%d", i)
		parts := make([]string, lines)
		for j := range parts {
			parts[j] = fmt.Sprintf("%s-L%d", id, j)
		}
		items[i] = testItem{id: id, content: strings.Join(parts, "\n"), version: 1}
	}
	return items
}

func newList(t *testing.T, width, height int, opts ...Option) Model {
	t.Helper()
	opts = append([]Option{
		WithSize(width, height),
		WithBridgeOptions(
			bridge.WithFrameDuration(time.Millisecond),
			bridge.WithSortDelay(time.Millisecond),
		),
	}, opts...)
	m, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// settle runs cmd and every command that follows from it, feeding the
// messages back into the list. It returns the messages seen.
func settle(t *testing.T, m *Model, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 2000 {
			t.Fatal("list did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			seen = append(seen, msg)
			var next tea.Cmd
			*m, next = m.Update(msg)
			queue = append(queue, next)
		}
	}
	return seen
}

func viewLines(m Model) []string {
	return strings.Split(m.View(), "\n")
}

// ---------------------------------------------------------------------------
// New / options
// ---------------------------------------------------------------------------

func TestNew_DefaultsAreZeroSafe(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()
	if out := m.View(); out != "" {
		t.Errorf("empty list View want empty string, got %q", out)
	}
	if _, ok := m.Selected(); ok {
		t.Error("empty list has no selection")
	}
}

func TestNew_RequiresMinItemSize(t *testing.T) {
	o := DefaultOptions()
	o.MinItemSize = 0
	if _, err := New(WithScrollerOptions(o)); err == nil {
		t.Error("want error for zero min item size")
	}
}

// ---------------------------------------------------------------------------
// Windowing
// ---------------------------------------------------------------------------

func TestSetItems_RendersWindowOnly(t *testing.T) {
	m := newList(t, 40, 10)
	settle(t, &m, m.SetItems(lineItems(1000)))

	st := m.Stats()
	if st.Items != 1000 {
		t.Errorf("want 1000 items, got %d", st.Items)
	}
	if st.Rendered == 0 || st.Rendered > 30 {
		t.Errorf("want only the window rendered, got %d renders", st.Rendered)
	}
	if st.Unmeasured != 0 {
		t.Errorf("want every bound row measured, got %d unmeasured", st.Unmeasured)
	}

	lines := viewLines(m)
	if len(lines) != 10 {
		t.Fatalf("want 10 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "item-0") {
		t.Errorf("first row want item-0, got %q", lines[0])
	}
	if !strings.Contains(lines[9], "item-9") {
		t.Errorf("last row want item-9, got %q", lines[9])
	}
}

func TestMeasure_MultiLineItems(t *testing.T) {
	m := newList(t, 40, 10)
	items := multiLineItems(100, 3)
	settle(t, &m, m.SetItems(items))

	if got := m.Scroller().ItemSize(items[0], 0); got != 3 {
		t.Errorf("want measured height 3, got %v", got)
	}
	if got := m.Scroller().ItemOffset(2); got != 6 {
		t.Errorf("want item 2 at row 6, got %v", got)
	}
	lines := viewLines(m)
	if !strings.Contains(lines[3], "item-1-L0") {
		t.Errorf("row 3 want item-1-L0, got %q", lines[3])
	}
}

func TestReachedEdges(t *testing.T) {
	m := newList(t, 40, 10)
	seen := settle(t, &m, m.SetItems(lineItems(5)))

	var start, end bool
	for _, msg := range seen {
		switch msg := msg.(type) {
		case ReachedStartMsg:
			start = msg.ID == m.ID()
		case ReachedEndMsg:
			end = msg.ID == m.ID()
		}
	}
	if !start || !end {
		t.Errorf("want both edges reached, got start=%v end=%v", start, end)
	}
}

// ---------------------------------------------------------------------------
// Scrolling
// ---------------------------------------------------------------------------

func TestScrollBy_CoalescesWithinFrame(t *testing.T) {
	m := newList(t, 40, 10)
	settle(t, &m, m.SetItems(lineItems(1000)))

	cmd := m.ScrollBy(3)
	if cmd == nil {
		t.Fatal("first sample should schedule a frame")
	}
	if next := m.ScrollBy(4); next != nil {
		t.Error("second sample within a frame should coalesce")
	}
	settle(t, &m, cmd)

	if got := m.Scroll(); got != 7 {
		t.Errorf("want scroll 7, got %v", got)
	}
	if lines := viewLines(m); !strings.Contains(lines[0], "item-7") {
		t.Errorf("first row want item-7, got %q", lines[0])
	}
}

func TestScrollBy_Clamps(t *testing.T) {
	m := newList(t, 40, 10)
	settle(t, &m, m.SetItems(lineItems(20)))

	settle(t, &m, m.ScrollBy(100))
	if got := m.Scroll(); got != 10 {
		t.Errorf("want scroll clamped to 10, got %v", got)
	}
	settle(t, &m, m.ScrollBy(-100))
	if got := m.Scroll(); got != 0 {
		t.Errorf("want scroll clamped to 0, got %v", got)
	}
}

func TestPrerender_EndsWithFirstItems(t *testing.T) {
	opts := DefaultOptions()
	opts.Prerender = 3
	m := newList(t, 40, 10, WithScrollerOptions(opts))
	settle(t, &m, m.SetItems(lineItems(100)))

	if m.Scroller().Recycle().Prerendering() {
		t.Fatal("list should leave the prerender window once it has items")
	}
	settle(t, &m, m.ScrollBy(50))
	settle(t, &m, m.ScrollBy(5))

	st := m.Stats().Window
	if st.VisibleStart > 55 || st.VisibleEnd < 65 {
		t.Errorf("window should follow scroll 55, got visible %d-%d", st.VisibleStart, st.VisibleEnd)
	}
	if lines := viewLines(m); !strings.Contains(lines[0], "item-55") {
		t.Errorf("first row want item-55, got %q", lines[0])
	}
}

func TestPrerender_EndsOnFirstResize(t *testing.T) {
	opts := DefaultOptions()
	opts.Prerender = 3
	m := newList(t, 0, 0, WithScrollerOptions(opts))
	settle(t, &m, m.SetItems(lineItems(100)))
	if !m.Scroller().Recycle().Prerendering() {
		t.Fatal("list without a viewport should stay on the prerender window")
	}

	settle(t, &m, m.SetSize(40, 10))
	if m.Scroller().Recycle().Prerendering() {
		t.Fatal("first resize should end the prerender window")
	}
	if lines := viewLines(m); !strings.Contains(lines[9], "item-9") {
		t.Errorf("last row want item-9, got %q", lines[9])
	}
}

func TestPageMode_WindowFollowsScroll(t *testing.T) {
	opts := DefaultOptions()
	opts.PageMode = true
	m := newList(t, 40, 10, WithScrollerOptions(opts))
	settle(t, &m, m.SetItems(lineItems(100)))

	settle(t, &m, m.ScrollBy(50))
	if got := m.Scroll(); got != 50 {
		t.Fatalf("want scroll 50, got %v", got)
	}
	st := m.Stats().Window
	if st.VisibleStart > 50 || st.VisibleEnd < 60 {
		t.Errorf("window should cover rows 50-60, got visible %d-%d", st.VisibleStart, st.VisibleEnd)
	}
	lines := viewLines(m)
	if !strings.Contains(lines[0], "item-50") || !strings.Contains(lines[9], "item-59") {
		t.Errorf("want rows item-50 to item-59, got %q .. %q", lines[0], lines[9])
	}

	settle(t, &m, m.ScrollToBottom())
	if lines := viewLines(m); !strings.Contains(lines[9], "item-99") {
		t.Errorf("last row want item-99, got %q", lines[9])
	}
}

func TestMouseWheel(t *testing.T) {
	m := newList(t, 40, 10, WithWheelStep(2))
	settle(t, &m, m.SetItems(lineItems(100)))

	var cmd tea.Cmd
	m, cmd = m.Update(tea.MouseWheelMsg{Button: tea.MouseWheelDown})
	settle(t, &m, cmd)
	if got := m.Scroll(); got != 2 {
		t.Errorf("want scroll 2, got %v", got)
	}
}

func TestScrollToBottom(t *testing.T) {
	m := newList(t, 40, 10)
	settle(t, &m, m.SetItems(lineItems(100)))
	settle(t, &m, m.ScrollToBottom())

	if got := m.Scroll(); got != 90 {
		t.Errorf("want scroll 90, got %v", got)
	}
	if m.Cursor() != 99 {
		t.Errorf("want cursor 99, got %d", m.Cursor())
	}
	if m.Stats().Following {
		t.Error("poll should have finished")
	}
	lines := viewLines(m)
	if !strings.Contains(lines[9], "item-99") {
		t.Errorf("last row want item-99, got %q", lines[9])
	}
}

func TestScrollToItem(t *testing.T) {
	m := newList(t, 40, 10)
	settle(t, &m, m.SetItems(lineItems(1000)))
	settle(t, &m, m.ScrollToItem(500))

	if got := m.Scroll(); got != 500 {
		t.Errorf("want scroll 500, got %v", got)
	}
	if lines := viewLines(m); !strings.Contains(lines[0], "item-500") {
		t.Errorf("first row want item-500, got %q", lines[0])
	}
	if m.Cursor() != 500 {
		t.Errorf("want cursor 500, got %d", m.Cursor())
	}

	settle(t, &m, m.ScrollToTop())
	if got := m.Scroll(); got != 0 {
		t.Errorf("want scroll 0, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Cursor & row state
// ---------------------------------------------------------------------------

func TestCursorDown_KeepsSelectionVisible(t *testing.T) {
	m := newList(t, 40, 5)
	settle(t, &m, m.SetItems(lineItems(50)))

	for range 7 {
		settle(t, &m, m.CursorDown())
	}
	if m.Cursor() != 7 {
		t.Errorf("want cursor 7, got %d", m.Cursor())
	}
	if got := m.Scroll(); got != 3 {
		t.Errorf("want scroll 3, got %v", got)
	}

	for range 7 {
		settle(t, &m, m.CursorUp())
	}
	if got := m.Scroll(); got != 0 {
		t.Errorf("want scroll 0 after moving back up, got %v", got)
	}
	if cmd := m.CursorUp(); cmd != nil {
		t.Error("cursor at the top should not move")
	}
}

func TestToggleExpanded_Remeasures(t *testing.T) {
	m := newList(t, 40, 10)
	items := lineItems(50)
	settle(t, &m, m.SetItems(items))

	settle(t, &m, m.ToggleExpanded())
	if !m.RowState("item-0").Expanded {
		t.Fatal("want item-0 expanded")
	}
	if got := m.Scroller().ItemSize(items[0], 0); got != 2 {
		t.Errorf("want expanded height 2, got %v", got)
	}
	if got := m.Scroller().ItemOffset(1); got != 2 {
		t.Errorf("want item 1 pushed to row 2, got %v", got)
	}
	lines := viewLines(m)
	if !strings.Contains(lines[1], "item-0 detail") {
		t.Errorf("row 1 want the detail line, got %q", lines[1])
	}

	settle(t, &m, m.ToggleExpanded())
	if got := m.Scroller().ItemSize(items[0], 0); got != 1 {
		t.Errorf("want collapsed height 1, got %v", got)
	}
	if m.RowState("item-0").Toggles != 2 {
		t.Errorf("want 2 toggles, got %d", m.RowState("item-0").Toggles)
	}
}

func TestRowStateFollowsItem(t *testing.T) {
	m := newList(t, 40, 10)
	items := lineItems(50)
	settle(t, &m, m.SetItems(items))
	settle(t, &m, m.ToggleExpanded())

	// Scroll far enough that item-0's slot is reused, then come back.
	settle(t, &m, m.ScrollToItem(40))
	settle(t, &m, m.ScrollToTop())

	if !m.RowState("item-0").Expanded {
		t.Error("want item-0 still expanded")
	}
	if m.RowState("item-40").Expanded {
		t.Error("item-40 must not inherit item-0's state")
	}
}

// ---------------------------------------------------------------------------
// Messages & scrollbar
// ---------------------------------------------------------------------------

func TestMessagesOfOtherListsAreIgnored(t *testing.T) {
	a := newList(t, 40, 10)
	b := newList(t, 40, 10)
	settle(t, &a, a.SetItems(lineItems(100)))
	settle(t, &b, b.SetItems(lineItems(100)))

	msg := a.ScrollBy(5)()
	var cmd tea.Cmd
	b, cmd = b.Update(msg)
	if cmd != nil {
		t.Error("foreign frame should produce no command")
	}
	if got := b.Scroll(); got != 0 {
		t.Errorf("want b unscrolled, got %v", got)
	}
}

func TestSetSize_Rewindows(t *testing.T) {
	m := newList(t, 40, 5)
	settle(t, &m, m.SetItems(lineItems(100)))
	settle(t, &m, m.SetSize(40, 20))

	lines := viewLines(m)
	if len(lines) != 20 {
		t.Fatalf("want 20 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[19], "item-19") {
		t.Errorf("last row want item-19, got %q", lines[19])
	}
}

func TestScrollbar(t *testing.T) {
	if got := Scrollbar(10, 5, 0); got != "" {
		t.Errorf("content that fits wants no scrollbar, got %q", got)
	}
	bar := Scrollbar(10, 100, 0)
	if rows := strings.Count(bar, "\n") + 1; rows != 10 {
		t.Errorf("want 10 scrollbar rows, got %d", rows)
	}
	rows := strings.Split(bar, "\n")
	if !strings.Contains(rows[0], scrollThumbChar) {
		t.Error("want the thumb at the top")
	}
	if !strings.Contains(rows[9], scrollTrackChar) {
		t.Error("want the track at the bottom")
	}
}
