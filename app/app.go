// Package app is the root Bubble Tea model of the scroller TUI. It loads an
// item source into a virtual list and routes input to it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"github.com/dustin/go-humanize"

	"github.com/miosa/osa-scroller/config"
	"github.com/miosa/osa-scroller/msg"
	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/source"
	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/header"
	"github.com/miosa/osa-scroller/ui/status"
	"github.com/miosa/osa-scroller/ui/vlist"
)

const (
	// loadTimeout bounds one source load.
	loadTimeout = 30 * time.Second

	// liveReload is the reload interval of sources whose items change over
	// time.
	liveReload = 2 * time.Second

	// noticeTTL is how long a status notice stays up.
	noticeTTL = 3 * time.Second
)

// Loader loads the items of a source.
type Loader func(ctx context.Context, cfg config.SourceConfig) ([]vlist.Item, error)

// Option configures a Model.
type Option func(*options)

type options struct {
	loader   Loader
	log      *slog.Logger
	recorder scroller.Recorder
	version  string
	list     []vlist.Option
}

// WithLoader replaces the source loader.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger sets the logger passed down to the list and scroller.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRecorder sets the recorder receiving per-pass statistics.
func WithRecorder(r scroller.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithVersion sets the version shown in the header.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithListOptions appends options of the underlying list.
func WithListOptions(opts ...vlist.Option) Option {
	return func(o *options) { o.list = append(o.list, opts...) }
}

// Model is the root Bubble Tea model.
type Model struct {
	header header.Model
	list   vlist.Model
	status status.Model

	state  State
	layout Layout
	keys   KeyMap

	cfg    *config.Config
	loader Loader
	log    *slog.Logger

	width  int
	height int

	loads     int
	reloadGen int
	noticeGen int
	atEnd     bool
	err       error
}

// New constructs the root Model from a validated config.
func New(cfg *config.Config, opts ...Option) (Model, error) {
	o := options{loader: source.Load, version: "dev"}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	if cfg.UI.Theme != "" {
		style.SetTheme(cfg.UI.Theme)
	}

	so := cfg.Options()
	so.Logger = o.log
	so.Recorder = o.recorder

	listOpts := append([]vlist.Option{
		vlist.WithScrollerOptions(so),
		vlist.WithScrollbar(cfg.UI.Scrollbar),
		vlist.WithWheelStep(cfg.UI.WheelStep),
		vlist.WithLogger(o.log),
	}, o.list...)
	list, err := vlist.New(listOpts...)
	if err != nil {
		return Model{}, fmt.Errorf("app: list: %w", err)
	}

	keys := DefaultKeyMap()
	st := status.New()
	st.SetKeys(helpLine(keys))

	hdr := header.New(o.version)
	hdr.SetSource(cfg.Source.Kind, cfg.Source.Path)

	return Model{
		header: hdr,
		list:   list,
		status: st,
		state:  StateLoading,
		keys:   keys,
		cfg:    cfg,
		loader: o.loader,
		log:    o.log,
		width:  80,
		height: 24,
	}, nil
}

// State returns the current application state.
func (m Model) State() State { return m.state }

// List returns the list model.
func (m Model) List() vlist.Model { return m.list }

// Layout returns the layout of the last window size.
func (m Model) Layout() Layout { return m.layout }

// Err returns the last load error.
func (m Model) Err() error { return m.err }

// -- Init ---------------------------------------------------------------------

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.load(),
		func() tea.Msg { return tea.RequestWindowSize() },
		m.list.Poll(m.cfg.UI.Poll()),
	)
}

// -- Update -------------------------------------------------------------------

func (m Model) Update(rawMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := rawMsg.(type) {

	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
		m.layout = ComputeLayout(v.Width, v.Height, m.header.Height(), 1)
		m.header.SetWidth(v.Width)
		m.status.SetWidth(v.Width)
		return m, m.list.SetSize(m.layout.ListWidth, m.layout.ListHeight)

	case tea.FocusMsg:
		return m, m.list.SetVisible(true)

	case tea.BlurMsg:
		return m, m.list.SetVisible(false)

	case tea.KeyPressMsg:
		return m.handleKey(v)

	// -- Sources --

	case msg.SourceLoaded:
		return m.handleLoaded(v)

	case msg.ReloadTick:
		if v.Gen != m.reloadGen {
			return m, nil
		}
		return m, m.load()

	// -- Status --

	case msg.Notice:
		return m, m.notify(v.Text, v.Warn)

	case msg.ClearNotice:
		if v.Gen == m.noticeGen {
			m.status.ClearNotice()
		}
		return m, nil

	case vlist.ReachedEndMsg:
		if v.ID != m.list.ID() || m.atEnd {
			return m, nil
		}
		m.atEnd = true
		return m, m.notify("end of list", false)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(rawMsg)
	m.trackEnd()
	return m, cmd
}

// handleLoaded swaps in freshly loaded items. Live sources schedule their
// next reload.
func (m Model) handleLoaded(r msg.SourceLoaded) (Model, tea.Cmd) {
	if r.Err != nil {
		m.err = r.Err
		m.log.Error("app: load failed", "kind", r.Kind, "err", r.Err)
		if m.loads == 0 {
			m.state = StateError
		}
		return m, m.notify("load failed: "+r.Err.Error(), true)
	}

	m.err = nil
	m.state = StateReady
	m.loads++
	m.log.Info("app: source loaded", "kind", r.Kind, "items", len(r.Items), "took", r.Took)

	cmds := []tea.Cmd{m.list.SetItems(r.Items)}
	if r.Kind == config.SourceProcesses {
		m.reloadGen++
		gen := m.reloadGen
		cmds = append(cmds, tea.Tick(liveReload, func(time.Time) tea.Msg {
			return msg.ReloadTick{Gen: gen}
		}))
	}
	if m.loads == 1 {
		text := fmt.Sprintf("loaded %s items in %s", humanize.Comma(int64(len(r.Items))), r.Took.Round(time.Millisecond))
		cmds = append(cmds, m.notify(text, false))
	}
	return m, tea.Batch(cmds...)
}

// -- View ---------------------------------------------------------------------

// View returns the tea.View for the current frame.
// AltScreen, MouseMode, and ReportFocus are set on every frame.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderView())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	v.ReportFocus = true
	return v
}

// renderView composes the full terminal frame as a string.
func (m Model) renderView() string {
	var body string
	switch m.state {
	case StateLoading:
		body = style.Faint.Render("loading " + m.cfg.Source.Kind + "…")
	case StateError:
		body = style.ErrorText.Render(fmt.Sprintf("failed to load %s: %v", m.cfg.Source.Kind, m.err))
	default:
		body = m.list.View()
	}
	body = padLines(body, m.layout.ListHeight)

	st := m.status
	st.SetStats(m.list.Stats())
	return strings.Join([]string{m.header.View(), body, st.View()}, "\n")
}

// -- Key handling -------------------------------------------------------------

func (m Model) handleKey(k tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches[tea.KeyPressMsg](k, m.keys.Quit):
		m.list.Close()
		return m, tea.Quit
	case key.Matches[tea.KeyPressMsg](k, m.keys.Reload):
		return m, m.load()
	case key.Matches[tea.KeyPressMsg](k, m.keys.Theme):
		m.cycleTheme()
		return m, m.notify("theme "+style.CurrentThemeName, false)
	}

	if m.state != StateReady {
		return m, nil
	}

	var cmd tea.Cmd
	half := max(1, m.layout.ListHeight/2)
	switch {
	case key.Matches[tea.KeyPressMsg](k, m.keys.Up):
		cmd = m.list.CursorUp()
	case key.Matches[tea.KeyPressMsg](k, m.keys.Down):
		cmd = m.list.CursorDown()
	case key.Matches[tea.KeyPressMsg](k, m.keys.PageUp):
		cmd = m.list.PageUp()
	case key.Matches[tea.KeyPressMsg](k, m.keys.PageDown):
		cmd = m.list.PageDown()
	case key.Matches[tea.KeyPressMsg](k, m.keys.HalfPageUp):
		cmd = m.list.ScrollBy(-half)
	case key.Matches[tea.KeyPressMsg](k, m.keys.HalfPageDown):
		cmd = m.list.ScrollBy(half)
	case key.Matches[tea.KeyPressMsg](k, m.keys.Top):
		cmd = m.list.ScrollToTop()
	case key.Matches[tea.KeyPressMsg](k, m.keys.Bottom):
		cmd = m.list.ScrollToBottom()
	case key.Matches[tea.KeyPressMsg](k, m.keys.ToggleExpand):
		cmd = m.list.ToggleExpanded()
	}
	m.trackEnd()
	return m, cmd
}

// cycleTheme switches to the next built-in theme.
func (m *Model) cycleTheme() {
	i := slices.Index(style.ThemeNames, style.CurrentThemeName)
	style.SetTheme(style.ThemeNames[(i+1)%len(style.ThemeNames)])
	m.list.Restyle()
}

// -- Commands -----------------------------------------------------------------

// load runs the source loader off the update loop.
func (m Model) load() tea.Cmd {
	loader, src := m.loader, m.cfg.Source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		start := time.Now()
		items, err := loader(ctx, src)
		return msg.SourceLoaded{Kind: src.Kind, Items: items, Took: time.Since(start), Err: err}
	}
}

// notify shows a notice and schedules its removal.
func (m *Model) notify(text string, warn bool) tea.Cmd {
	m.noticeGen++
	gen := m.noticeGen
	m.status.SetNotice(text, warn)
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return msg.ClearNotice{Gen: gen}
	})
}

// trackEnd re-arms the end-of-list notice once the window leaves the end.
func (m *Model) trackEnd() {
	if m.atEnd && m.list.Stats().Window.End < m.list.Len() {
		m.atEnd = false
	}
}

// -- Helpers ------------------------------------------------------------------

func helpLine(k KeyMap) string {
	var parts []string
	for _, b := range k.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// padLines pads or truncates s to exactly n lines.
func padLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
