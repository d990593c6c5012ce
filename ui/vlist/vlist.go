// Package vlist is a virtual-scrolling list widget. Only the items inside
// the scroller's window are rendered; their heights are measured after
// rendering and fed back, so items may be any number of lines tall.
package vlist

import (
	"log/slog"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/miosa/osa-scroller/bridge"
	"github.com/miosa/osa-scroller/idstate"
	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/window"
)

// ---------------------------------------------------------------------------
// Item
// ---------------------------------------------------------------------------

// Item is anything the list can render.
type Item interface {
	// ID returns a unique, stable identifier. It keys slots, stored sizes
	// and per-row state.
	ID() string

	// ContentVersion returns a monotonically increasing integer. When it
	// changes the item is rendered and measured again.
	ContentVersion() int

	// Render returns the item at the given width. Expanded rows may show
	// more detail.
	Render(width int, expanded bool) string
}

// Typed items get slots of their own type, so rows with a different
// layout are never recycled into each other.
type Typed interface {
	Type() string
}

// RowState is per-row UI state. It follows the item, not the slot that
// happens to render it.
type RowState struct {
	Expanded bool

	// Toggles counts expansion changes. It is part of the measured version.
	Toggles int
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// MeasureMsg asks the list to measure the rows bound in the last pass.
type MeasureMsg struct{ ID int64 }

// ReachedStartMsg is emitted when the first item enters the window.
type ReachedStartMsg struct{ ID int64 }

// ReachedEndMsg is emitted when the last item enters the window.
type ReachedEndMsg struct{ ID int64 }

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option configures a Model.
type Option func(*config)

type config struct {
	width, height int
	scrollbar     bool
	wheel         int
	opts          scroller.Options
	bridge        []bridge.Option
	log           *slog.Logger
}

// WithSize sets the initial viewport size.
func WithSize(width, height int) Option {
	return func(c *config) { c.width, c.height = width, height }
}

// WithScrollbar toggles the scrollbar column.
func WithScrollbar(on bool) Option {
	return func(c *config) { c.scrollbar = on }
}

// WithWheelStep sets the lines scrolled per mouse wheel notch.
func WithWheelStep(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.wheel = n
		}
	}
}

// WithScrollerOptions replaces the scroller options. The direction is
// always vertical.
func WithScrollerOptions(o scroller.Options) Option {
	return func(c *config) { c.opts = o }
}

// WithBridgeOptions passes options to the pass scheduler.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(c *config) { c.bridge = append(c.bridge, opts...) }
}

// WithLogger sets the logger for the list and its scroller.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// DefaultOptions returns scroller options in terminal rows.
func DefaultOptions() scroller.Options {
	o := scroller.DefaultOptions()
	o.MinItemSize = 1
	o.Buffer = 10
	o.KeyField = ""
	return o
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type pass = scroller.Pass[scroller.Sized[Item]]

type cachedRender struct {
	lines   []string
	width   int
	version int
}

// Model is a virtual-scrolling list.
type Model struct {
	sc      *scroller.Dynamic[Item]
	br      *bridge.Bridge
	states  *idstate.Store[string, RowState]
	handles map[int]*idstate.Handle[string, RowState]
	cache   map[string]cachedRender

	items     []Item
	width     int
	height    int
	cursor    int
	scrollbar bool
	wheel     int

	log *slog.Logger
	err error
}

// New returns an empty list.
func New(opts ...Option) (Model, error) {
	c := config{scrollbar: true, wheel: 3, opts: DefaultOptions()}
	for _, fn := range opts {
		fn(&c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}

	so := c.opts
	so.Direction = scroller.Vertical
	if so.Logger == nil {
		so.Logger = c.log
	}

	states := idstate.New(func(string) RowState { return RowState{} })
	sc, err := scroller.NewDynamic(so, scroller.DynamicAccessors[Item]{
		Key: func(it Item) (any, bool) {
			id := it.ID()
			return id, id != ""
		},
		Type: func(it Item) string {
			if t, ok := it.(Typed); ok {
				return t.Type()
			}
			return ""
		},
		Version: func(it Item) int { return rowVersion(states, it) },
	})
	if err != nil {
		return Model{}, err
	}

	m := Model{
		sc:        sc,
		br:        bridge.New(append([]bridge.Option{bridge.WithLogger(c.log), bridge.WithSortDelay(so.SortDelay)}, c.bridge...)...),
		states:    states,
		handles:   make(map[int]*idstate.Handle[string, RowState]),
		cache:     make(map[string]cachedRender),
		width:     c.width,
		height:    c.height,
		scrollbar: c.scrollbar,
		wheel:     c.wheel,
		log:       c.log,
	}
	if m.width > 0 && m.height > 0 {
		m.br.Resize(m.width, m.height)
		if _, err := sc.SetViewport(float64(m.height)); err != nil {
			return Model{}, err
		}
	}
	return m, nil
}

// ID returns the ID stamped on the list's messages.
func (m Model) ID() int64 { return m.br.ID() }

// Items returns the items.
func (m Model) Items() []Item { return m.items }

// Len returns the number of items.
func (m Model) Len() int { return len(m.items) }

// Cursor returns the index of the selected item.
func (m Model) Cursor() int { return m.cursor }

// Selected returns the selected item.
func (m Model) Selected() (Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil, false
	}
	return m.items[m.cursor], true
}

// Width returns the list width.
func (m Model) Width() int { return m.width }

// Height returns the list height.
func (m Model) Height() int { return m.height }

// Scroll returns the scroll offset in rows.
func (m Model) Scroll() float64 { return m.sc.Scroll() }

// Scroller returns the scroller behind the list.
func (m Model) Scroller() *scroller.Dynamic[Item] { return m.sc }

// Err returns the error of the last failed pass.
func (m Model) Err() error { return m.err }

// RowState returns the row state of the item with id.
func (m Model) RowState(id string) RowState {
	if st, ok := m.states.Peek(id); ok {
		return *st
	}
	return RowState{}
}

// Stats is a snapshot of the list's windowing state.
type Stats struct {
	Items      int
	Window     window.State
	Used       int
	Allocated  int
	Unmeasured int
	Rendered   int
	Scroll     float64
	Content    float64
	Following  bool
}

// Stats returns the current windowing state.
func (m Model) Stats() Stats {
	s := Stats{
		Items:      len(m.items),
		Window:     m.sc.State(),
		Unmeasured: m.sc.Tracker().Unmeasured(),
		Rendered:   len(m.cache),
		Scroll:     m.sc.Scroll(),
		Content:    m.sc.ContentSize(),
		Following:  m.sc.ScrollingToBottom(),
	}
	for _, ts := range m.sc.Recycle().Stats() {
		s.Used += ts.Used
		s.Allocated += ts.Allocated
	}
	return s
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// SetItems replaces the items. Rows keep their state by ID.
func (m *Model) SetItems(items []Item) tea.Cmd {
	m.items = items
	m.cursor = max(0, min(m.cursor, len(items)-1))
	live := make(map[string]struct{}, len(items))
	for _, it := range items {
		live[it.ID()] = struct{}{}
	}
	for id := range m.cache {
		if _, ok := live[id]; !ok {
			delete(m.cache, id)
		}
	}
	p, err := m.sc.SetItems(items)
	if m.height > 0 {
		p, err = m.endPrerender(p, err)
	}
	return m.after(p, err)
}

// SetSize resizes the list. The scroller re-windows when the RecomputeMsg
// arrives.
func (m *Model) SetSize(width, height int) tea.Cmd {
	if width != m.width {
		clear(m.cache)
	}
	m.width, m.height = width, height
	return m.br.Resize(width, height)
}

// SetVisible shows or hides the list. A hidden list stops measuring and
// keeps its last window.
func (m *Model) SetVisible(visible bool) tea.Cmd {
	if !visible {
		if _, err := m.sc.SetActive(false); err != nil {
			m.err = err
		}
	}
	return m.br.Visibility(visible)
}

// Poll re-windows every interval for hosts without resize notifications.
func (m *Model) Poll(interval time.Duration) tea.Cmd {
	return m.br.Poll(interval)
}

// Refresh re-measures every row. With clear set stored sizes are dropped
// first.
func (m *Model) Refresh(clear bool) tea.Cmd {
	return m.after(m.sc.ForceUpdate(clear))
}

// Restyle drops the rendered rows so the next View picks up new styles.
func (m *Model) Restyle() { clear(m.cache) }

// ScrollBy scrolls by delta rows. Samples within one frame coalesce.
func (m *Model) ScrollBy(delta int) tea.Cmd {
	m.br.StopEndPoll()
	return m.br.Scroll(m.clampScroll(m.target() + float64(delta)))
}

// PageDown scrolls one viewport down.
func (m *Model) PageDown() tea.Cmd { return m.ScrollBy(max(1, m.height-1)) }

// PageUp scrolls one viewport up.
func (m *Model) PageUp() tea.Cmd { return m.ScrollBy(-max(1, m.height-1)) }

// ScrollToTop scrolls to the first item and selects it.
func (m *Model) ScrollToTop() tea.Cmd {
	m.br.StopEndPoll()
	m.cursor = 0
	return m.after(m.sc.ScrollToPosition(0))
}

// ScrollToItem scrolls item i to the top and selects it.
func (m *Model) ScrollToItem(i int) tea.Cmd {
	if i < 0 || i >= len(m.items) {
		return nil
	}
	m.br.StopEndPoll()
	m.cursor = i
	return m.after(m.sc.ScrollToItem(i))
}

// ScrollToBottom scrolls to the last item and keeps polling until every
// row near the end has been measured.
func (m *Model) ScrollToBottom() tea.Cmd {
	if len(m.items) == 0 {
		return nil
	}
	m.cursor = len(m.items) - 1
	started, err := m.sc.ScrollToBottom()
	if err != nil {
		m.fail(err)
		return nil
	}
	cmds := []tea.Cmd{m.settled()}
	if started {
		cmds = append(cmds, m.br.StartEndPoll())
	}
	return tea.Batch(cmds...)
}

// CursorDown selects the next item.
func (m *Model) CursorDown() tea.Cmd {
	if m.cursor >= len(m.items)-1 {
		return nil
	}
	m.cursor++
	return m.ensureVisible()
}

// CursorUp selects the previous item.
func (m *Model) CursorUp() tea.Cmd {
	if m.cursor <= 0 {
		return nil
	}
	m.cursor--
	return m.ensureVisible()
}

// ToggleExpanded flips the selected row between its short and expanded
// form. The row is measured again.
func (m *Model) ToggleExpanded() tea.Cmd {
	it, ok := m.Selected()
	if !ok {
		return nil
	}
	st, err := m.states.Get(it.ID())
	if err != nil {
		m.fail(err)
		return nil
	}
	st.Expanded = !st.Expanded
	st.Toggles++
	return m.after(m.sc.SetItems(m.items))
}

// Close releases the list's subscriptions.
func (m Model) Close() { m.sc.Close() }

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// Update handles the list's own timer messages and mouse wheel input.
// Messages of other lists are ignored.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case bridge.FrameMsg:
		pos, ok := m.br.Frame(msg)
		if !ok {
			return m, nil
		}
		return m, m.after(m.sc.SetScroll(pos))

	case bridge.RefreshMsg:
		if !m.br.Refresh(msg) {
			return m, nil
		}
		return m, m.after(m.sc.Update(false))

	case bridge.SortMsg:
		if m.br.Sort(msg) {
			m.sc.Sort()
		}
		return m, nil

	case bridge.EndPollMsg:
		if !m.br.EndPoll(msg) {
			return m, nil
		}
		done, err := m.sc.PollBottom()
		if err != nil {
			m.fail(err)
			return m, nil
		}
		cmds := []tea.Cmd{m.settled()}
		if !done {
			cmds = append(cmds, m.br.NextEndPoll(msg))
		}
		return m, tea.Batch(cmds...)

	case bridge.RecomputeMsg:
		ok, next := m.br.Recompute(msg)
		if !ok {
			return m, nil
		}
		var cmd tea.Cmd
		switch msg.Reason {
		case bridge.ReasonResize:
			p, err := m.sc.Resize(float64(msg.Size.Height), msg.CrossChanged)
			if msg.Size.Height > 0 {
				p, err = m.endPrerender(p, err)
			}
			cmd = m.after(p, err)
		case bridge.ReasonVisibility:
			if msg.Visible {
				if _, err := m.sc.SetActive(true); err != nil {
					m.fail(err)
					return m, next
				}
				cmd = m.after(m.sc.Visible())
			}
		case bridge.ReasonPoll:
			cmd = m.after(m.sc.SetViewport(float64(m.height)))
		}
		return m, tea.Batch(next, cmd)

	case MeasureMsg:
		if msg.ID != m.br.ID() {
			return m, nil
		}
		return m, m.measure()

	case tea.MouseWheelMsg:
		switch msg.Button {
		case tea.MouseWheelUp:
			return m, m.ScrollBy(-m.wheel)
		case tea.MouseWheelDown:
			return m, m.ScrollBy(m.wheel)
		}
	}
	return m, nil
}

// after turns a pass into the follow-up commands it needs.
func (m *Model) after(p pass, err error) tea.Cmd {
	if m.pageMode() {
		p, err = chain(p, err, m.syncPage)
	}
	if err != nil {
		m.fail(err)
		return nil
	}
	m.err = nil

	var cmds []tea.Cmd
	if !p.Skipped {
		if !p.Continuous {
			cmds = append(cmds, m.br.ScheduleRefresh())
		}
		if p.Bound > 0 {
			cmds = append(cmds, m.br.ScheduleSort())
		}
		id := m.br.ID()
		if p.ReachedStart {
			cmds = append(cmds, func() tea.Msg { return ReachedStartMsg{ID: id} })
		}
		if p.ReachedEnd {
			cmds = append(cmds, func() tea.Msg { return ReachedEndMsg{ID: id} })
		}
	}
	cmds = append(cmds, m.measureCmd())
	return tea.Batch(cmds...)
}

// settled returns the follow-up of a scroll that ran its own pass.
func (m *Model) settled() tea.Cmd {
	if m.pageMode() {
		return m.after(m.syncPage())
	}
	return m.measureCmd()
}

// endPrerender leaves the prerender window once the list has a viewport.
func (m *Model) endPrerender(p pass, err error) (pass, error) {
	if !m.sc.Recycle().Prerendering() {
		return p, err
	}
	return chain(p, err, m.sc.EndPrerender)
}

func (m Model) pageMode() bool { return m.sc.Recycle().Options().PageMode }

// syncPage hands a page-mode scroller the visible part of the page. The list
// fills the page, so the range starts at the list's own scroll offset.
func (m *Model) syncPage() (pass, error) {
	rng := bridge.PageRange(-m.sc.Scroll(), m.sc.ContentSize(), float64(m.height))
	return m.sc.SetPageBounds(rng)
}

// chain runs next after a successful pass. Slot counts and edge flags of
// the first pass carry over into the result.
func chain(p pass, err error, next func() (pass, error)) (pass, error) {
	if err != nil {
		return p, err
	}
	q, err := next()
	if err != nil {
		return q, err
	}
	if p.Skipped {
		return q, nil
	}
	if q.Skipped {
		return p, nil
	}
	q.Bound += p.Bound
	q.Released += p.Released
	q.ReachedStart = q.ReachedStart || p.ReachedStart
	q.ReachedEnd = q.ReachedEnd || p.ReachedEnd
	return q, nil
}

func (m *Model) fail(err error) {
	m.err = err
	m.log.Error("vlist: pass failed", "err", err)
}

func (m Model) measureCmd() tea.Cmd {
	if !m.sc.HasJobs() {
		return nil
	}
	id := m.br.ID()
	return func() tea.Msg { return MeasureMsg{ID: id} }
}

// measure renders every queued row at the current width and commits the
// heights.
func (m *Model) measure() tea.Cmd {
	jobs := m.sc.Jobs()
	if len(jobs) == 0 {
		return nil
	}
	ms := make([]scroller.Measurement, 0, len(jobs))
	for _, job := range jobs {
		s, ok := m.sc.JobItem(job)
		if !ok {
			continue
		}
		content := strings.Join(m.render(s.Item, m.RowState(s.Item.ID()).Expanded), "\n")
		ms = append(ms, scroller.Measurement{
			Job:    job,
			Width:  float64(lipgloss.Width(content)),
			Height: float64(lipgloss.Height(content)),
		})
	}
	p, ok, err := m.sc.Commit(ms)
	if err != nil {
		m.fail(err)
		return nil
	}
	if !ok {
		return m.measureCmd()
	}
	return m.after(p, nil)
}

// target is the scroll position the list is heading to.
func (m Model) target() float64 {
	if pos, ok := m.br.Pending(); ok {
		return pos
	}
	return m.sc.Scroll()
}

func (m Model) clampScroll(pos float64) float64 {
	return max(0, min(pos, m.sc.MaxScroll()))
}

// ensureVisible scrolls the selected row into view.
func (m *Model) ensureVisible() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	top := m.sc.ItemOffset(m.cursor)
	size := m.sc.ItemSize(m.items[m.cursor], m.cursor)
	if size <= 0 {
		size = m.sc.Recycle().Options().MinItemSize
	}
	scroll := m.target()
	viewport := float64(m.height)
	switch {
	case top < scroll:
		return m.br.Scroll(m.clampScroll(top))
	case top+size > scroll+viewport:
		if size >= viewport {
			return m.br.Scroll(m.clampScroll(top))
		}
		return m.br.Scroll(m.clampScroll(top + size - viewport))
	}
	return nil
}

// contentWidth is the width available to item renders.
func (m Model) contentWidth() int {
	w := m.width - gutterWidth
	if m.scrollbar {
		w--
	}
	return max(1, w)
}

func (m Model) version(it Item) int { return rowVersion(m.states, it) }

// rowVersion is the measured version of a row: its content version plus
// its expansion toggles.
func rowVersion(states *idstate.Store[string, RowState], it Item) int {
	v := it.ContentVersion()
	if st, ok := states.Peek(it.ID()); ok {
		v += st.Toggles
	}
	return v
}
