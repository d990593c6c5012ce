package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/miosa/osa-scroller/bridge"
	"github.com/miosa/osa-scroller/config"
	"github.com/miosa/osa-scroller/msg"
	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/vlist"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type row struct{ i int }

func (r row) ID() string          { return fmt.Sprintf("item-%d", r.i) }
func (r row) ContentVersion() int { return 1 }
func (r row) Render(width int, expanded bool) string {
	if expanded {
		return r.ID() + "\n" + r.ID() + " detail"
	}
	return r.ID()
}

func rows(n int) []vlist.Item {
	items := make([]vlist.Item, n)
	for i := range items {
		items[i] = row{i}
	}
	return items
}

func stubLoader(items []vlist.Item, err error) Loader {
	return func(context.Context, config.SourceConfig) ([]vlist.Item, error) {
		return items, err
	}
}

func newApp(t *testing.T, loader Loader) Model {
	t.Helper()
	cfg := config.Default()
	cfg.UI.PollInterval = "0s"
	m, err := New(cfg,
		WithLoader(loader),
		WithListOptions(vlist.WithBridgeOptions(
			bridge.WithFrameDuration(time.Millisecond),
			bridge.WithSortDelay(time.Millisecond),
		)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.list.Close)
	return m
}

// settle runs cmd and everything that follows from it. Commands that do not
// return quickly, such as notice timers, are dropped.
func settle(t *testing.T, m *Model, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 2000 {
			t.Fatal("app did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		out, ok := run(c)
		if !ok {
			continue
		}
		switch v := out.(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, v...)
		case tea.QuitMsg:
			seen = append(seen, v)
		default:
			seen = append(seen, v)
			next, cmd := m.Update(v)
			*m = next.(Model)
			queue = append(queue, cmd)
		}
	}
	return seen
}

func run(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case out := <-ch:
		return out, true
	case <-time.After(250 * time.Millisecond):
		return nil, false
	}
}

func press(t *testing.T, m *Model, text string) []tea.Msg {
	t.Helper()
	return pressKey(t, m, tea.KeyPressMsg{Code: []rune(text)[0], Text: text})
}

func pressKey(t *testing.T, m *Model, k tea.KeyPressMsg) []tea.Msg {
	t.Helper()
	next, cmd := m.Update(k)
	*m = next.(Model)
	return settle(t, m, cmd)
}

func ready(t *testing.T, n int) Model {
	t.Helper()
	m := newApp(t, stubLoader(rows(n), nil))
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	settle(t, &m, cmd)
	settle(t, &m, m.load())
	if m.State() != StateReady {
		t.Fatalf("state want ready, got %s", m.State())
	}
	return m
}

// ---------------------------------------------------------------------------
// State & layout
// ---------------------------------------------------------------------------

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateLoading: "loading",
		StateReady:   "ready",
		StateError:   "error",
		State(99):    "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() want %q, got %q", int(s), want, got)
		}
	}
}

func TestComputeLayout(t *testing.T) {
	l := ComputeLayout(80, 24, 2, 1)
	if l.ListHeight != 21 || l.ListWidth != 80 {
		t.Errorf("want list 80x21, got %dx%d", l.ListWidth, l.ListHeight)
	}
	tiny := ComputeLayout(10, 2, 2, 0)
	if tiny.StatusHeight != 1 {
		t.Errorf("status height want 1, got %d", tiny.StatusHeight)
	}
	if tiny.ListHeight != minListHeight {
		t.Errorf("list height want %d, got %d", minListHeight, tiny.ListHeight)
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

func TestLoad_ReportsKindAndItems(t *testing.T) {
	m := newApp(t, stubLoader(rows(5), nil))
	got, ok := m.load()().(msg.SourceLoaded)
	if !ok {
		t.Fatal("load want SourceLoaded")
	}
	if got.Kind != config.SourceSynthetic {
		t.Errorf("kind want %q, got %q", config.SourceSynthetic, got.Kind)
	}
	if len(got.Items) != 5 || got.Err != nil {
		t.Errorf("want 5 items and no error, got %d, %v", len(got.Items), got.Err)
	}
}

func TestLoaded_RendersList(t *testing.T) {
	m := ready(t, 1000)
	out := m.renderView()
	if !strings.Contains(out, "item-0") {
		t.Errorf("view should show the first item:\n%s", out)
	}
	if strings.Contains(out, "item-500") {
		t.Error("view should not render rows outside the window")
	}
	if lines := strings.Count(out, "\n") + 1; lines != 24 {
		t.Errorf("frame want 24 lines, got %d", lines)
	}
	if st := m.List().Stats(); st.Items != 1000 {
		t.Errorf("items want 1000, got %d", st.Items)
	}
}

func TestLoadError_ShowsError(t *testing.T) {
	boom := errors.New("boom")
	m := newApp(t, stubLoader(nil, boom))
	settle(t, &m, m.load())
	if m.State() != StateError {
		t.Fatalf("state want error, got %s", m.State())
	}
	if !errors.Is(m.Err(), boom) {
		t.Errorf("err want boom, got %v", m.Err())
	}
	if !strings.Contains(m.renderView(), "failed to load") {
		t.Error("view should show the load failure")
	}
}

func TestReloadError_KeepsItems(t *testing.T) {
	m := ready(t, 10)
	m.loader = stubLoader(nil, errors.New("gone"))
	settle(t, &m, m.load())
	if m.State() != StateReady {
		t.Errorf("state want ready after failed reload, got %s", m.State())
	}
	if m.List().Len() != 10 {
		t.Errorf("items want 10, got %d", m.List().Len())
	}
}

func TestReloadTick_IgnoresStale(t *testing.T) {
	m := ready(t, 10)
	next, cmd := m.Update(msg.ReloadTick{Gen: m.reloadGen + 1})
	m = next.(Model)
	if cmd != nil {
		t.Error("stale reload tick should not load")
	}
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

func TestKeys_MoveCursor(t *testing.T) {
	m := ready(t, 100)
	press(t, &m, "j")
	press(t, &m, "j")
	press(t, &m, "k")
	if got := m.List().Cursor(); got != 1 {
		t.Errorf("cursor want 1, got %d", got)
	}
}

func TestKeys_BottomAndTop(t *testing.T) {
	m := ready(t, 100)
	press(t, &m, "G")
	if got := m.List().Cursor(); got != 99 {
		t.Errorf("cursor want 99, got %d", got)
	}
	if !strings.Contains(m.renderView(), "item-99") {
		t.Error("view should show the last item")
	}
	press(t, &m, "g")
	if got := m.List().Scroll(); got != 0 {
		t.Errorf("scroll want 0, got %v", got)
	}
}

func TestKeys_ToggleExpand(t *testing.T) {
	m := ready(t, 10)
	pressKey(t, &m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if !m.List().RowState("item-0").Expanded {
		t.Error("enter should expand the selected row")
	}
	if !strings.Contains(m.renderView(), "item-0 detail") {
		t.Error("expanded row should render its detail")
	}
}

func TestKeys_IgnoredWhileLoading(t *testing.T) {
	m := newApp(t, stubLoader(rows(10), nil))
	next, cmd := m.Update(tea.KeyPressMsg{Code: 'j', Text: "j"})
	m = next.(Model)
	if cmd != nil {
		t.Error("navigation keys should be ignored while loading")
	}
}

func TestKeys_Quit(t *testing.T) {
	m := ready(t, 10)
	_, cmd := m.Update(tea.KeyPressMsg{Code: 'q', Text: "q"})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestKeys_CycleTheme(t *testing.T) {
	t.Cleanup(func() { style.SetTheme("dark") })
	m := ready(t, 10)
	before := style.CurrentThemeName
	press(t, &m, "t")
	if style.CurrentThemeName == before {
		t.Errorf("theme should change from %q", before)
	}
}

// ---------------------------------------------------------------------------
// Notices
// ---------------------------------------------------------------------------

func TestReachedEnd_NotifiesOnce(t *testing.T) {
	m := ready(t, 1000)
	end := vlist.ReachedEndMsg{ID: m.List().ID()}

	next, cmd := m.Update(end)
	m = next.(Model)
	if cmd == nil {
		t.Fatal("first end should schedule a notice")
	}
	if !strings.Contains(m.renderView(), "end of list") {
		t.Error("status should show the end notice")
	}
	next, cmd = m.Update(end)
	m = next.(Model)
	if cmd != nil {
		t.Error("repeated end should not notify again")
	}
}

func TestClearNotice_MatchesGeneration(t *testing.T) {
	m := ready(t, 10)
	next, _ := m.Update(msg.Notice{Text: "hello"})
	m = next.(Model)

	next, _ = m.Update(msg.ClearNotice{Gen: m.noticeGen - 1})
	m = next.(Model)
	if !strings.Contains(m.renderView(), "hello") {
		t.Error("stale clear should keep the notice")
	}
	next, _ = m.Update(msg.ClearNotice{Gen: m.noticeGen})
	m = next.(Model)
	if strings.Contains(m.renderView(), "hello") {
		t.Error("matching clear should drop the notice")
	}
}

func TestView_SetsTerminalModes(t *testing.T) {
	m := ready(t, 10)
	v := m.View()
	if !v.AltScreen || !v.ReportFocus || v.MouseMode != tea.MouseModeCellMotion {
		t.Error("view should enable alt screen, focus reports and cell motion")
	}
}
