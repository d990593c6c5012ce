// Package bridge turns raw scroll, resize and visibility input into the
// timed passes a scroller needs, as Bubble Tea commands and messages.
//
// Timers never call back into a scroller. Every scheduled message carries
// the bridge ID and a generation stamp; a message whose stamp is older than
// the bridge's current one is stale and ignored on arrival. Cancelling a
// timer is therefore just bumping its generation.
package bridge

import (
	"log/slog"
	"sync/atomic"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/miosa/osa-scroller/window"
)

// ---------------------------------------------------------------------------
// Constants & package-level state
// ---------------------------------------------------------------------------

const (
	fps = 60

	// FrameDuration is the delay between a scroll sample and its pass.
	FrameDuration = time.Second / fps

	// RefreshDelay is the delay of the follow-up pass scheduled after a
	// discontinuous scroll pass.
	RefreshDelay = 100 * time.Millisecond

	// DefaultSortDelay is the debounce applied to view sorting.
	DefaultSortDelay = 300 * time.Millisecond
)

// idCounter gives each Bridge a unique ID so timer messages don't cross-talk
// between scrollers.
var idCounter atomic.Int64

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// FrameMsg runs the pass for the scroll samples coalesced since the frame
// was scheduled.
type FrameMsg struct {
	ID  int64
	Gen uint64
}

// SortMsg asks the scroller to sort its views by index.
type SortMsg struct {
	ID  int64
	Gen uint64
}

// RefreshMsg re-runs the scroll handler after a discontinuous pass.
type RefreshMsg struct {
	ID  int64
	Gen uint64
}

// EndPollMsg is one frame of a scroll-to-end poll.
type EndPollMsg struct {
	ID      int64
	Gen     uint64
	Attempt int
}

// Reason says why a RecomputeMsg was sent.
type Reason int

const (
	ReasonResize Reason = iota
	ReasonVisibility
	ReasonPoll
)

func (r Reason) String() string {
	switch r {
	case ReasonResize:
		return "resize"
	case ReasonVisibility:
		return "visibility"
	case ReasonPoll:
		return "poll"
	default:
		return "unknown"
	}
}

// Size is the size of the scroller's viewport in cells.
type Size struct {
	Width  int
	Height int
}

// RecomputeMsg asks the scroller to re-window.
type RecomputeMsg struct {
	ID     int64
	Gen    uint64
	Reason Reason

	// Size is the current viewport size. CrossChanged is set when the
	// size changed on the axis across the scroll direction.
	Size         Size
	CrossChanged bool

	Visible bool
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option configures a Bridge.
type Option func(*Bridge)

// WithSortDelay sets the sort debounce. Zero disables sorting.
func WithSortDelay(d time.Duration) Option {
	return func(b *Bridge) { b.sortDelay = max(d, 0) }
}

// WithFrameDuration overrides the frame duration.
func WithFrameDuration(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.frame = d
		}
	}
}

// WithHorizontal makes width the primary axis.
func WithHorizontal(h bool) Option {
	return func(b *Bridge) { b.horizontal = h }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// ---------------------------------------------------------------------------
// Bridge
// ---------------------------------------------------------------------------

// Bridge schedules the passes of one scroller. It is not safe for
// concurrent use; call it from the Bubble Tea update loop only.
type Bridge struct {
	id         int64
	frame      time.Duration
	sortDelay  time.Duration
	horizontal bool
	log        *slog.Logger

	// framePending is set while a FrameMsg is in flight.
	framePending bool
	sample       float64

	frameGen   uint64
	sortGen    uint64
	refreshGen uint64
	endGen     uint64
	pollGen    uint64

	pollEvery time.Duration

	size    Size
	sized   bool
	visible bool
}

// New returns a visible bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		id:        idCounter.Add(1),
		frame:     FrameDuration,
		sortDelay: DefaultSortDelay,
		log:       slog.New(slog.DiscardHandler),
		visible:   true,
	}
	for _, fn := range opts {
		fn(b)
	}
	return b
}

// ID returns the bridge ID stamped on its messages.
func (b *Bridge) ID() int64 { return b.id }

// Visible reports the last known visibility.
func (b *Bridge) Visible() bool { return b.visible }

// Size returns the last known viewport size.
func (b *Bridge) Size() Size { return b.size }

// ---------------------------------------------------------------------------
// Scroll samples
// ---------------------------------------------------------------------------

// Scroll records a scroll sample. The first sample of a frame schedules a
// FrameMsg; later samples only replace the recorded position.
func (b *Bridge) Scroll(pos float64) tea.Cmd {
	b.sample = pos
	if b.framePending {
		return nil
	}
	b.framePending = true
	b.frameGen++
	id, gen := b.id, b.frameGen
	return tea.Tick(b.frame, func(time.Time) tea.Msg {
		return FrameMsg{ID: id, Gen: gen}
	})
}

// Frame accepts a FrameMsg and returns the latest scroll sample. ok is
// false for messages of other bridges or cancelled frames.
func (b *Bridge) Frame(msg FrameMsg) (pos float64, ok bool) {
	if msg.ID != b.id || msg.Gen != b.frameGen || !b.framePending {
		return 0, false
	}
	b.framePending = false
	return b.sample, true
}

// FramePending reports whether a frame is scheduled.
func (b *Bridge) FramePending() bool { return b.framePending }

// Pending returns the sample waiting for the scheduled frame.
func (b *Bridge) Pending() (pos float64, ok bool) {
	return b.sample, b.framePending
}

// ---------------------------------------------------------------------------
// Refresh after discontinuity
// ---------------------------------------------------------------------------

// ScheduleRefresh schedules one RefreshMsg, replacing any scheduled before.
func (b *Bridge) ScheduleRefresh() tea.Cmd {
	b.refreshGen++
	id, gen := b.id, b.refreshGen
	return tea.Tick(b.frame+RefreshDelay, func(time.Time) tea.Msg {
		return RefreshMsg{ID: id, Gen: gen}
	})
}

// Refresh reports whether msg is the latest scheduled refresh.
func (b *Bridge) Refresh(msg RefreshMsg) bool {
	return msg.ID == b.id && msg.Gen == b.refreshGen
}

// ---------------------------------------------------------------------------
// Sorting
// ---------------------------------------------------------------------------

// ScheduleSort debounces a view sort. Each call supersedes the previous
// one. It returns nil when sorting is disabled.
func (b *Bridge) ScheduleSort() tea.Cmd {
	if b.sortDelay <= 0 {
		return nil
	}
	b.sortGen++
	id, gen := b.id, b.sortGen
	return tea.Tick(b.sortDelay, func(time.Time) tea.Msg {
		return SortMsg{ID: id, Gen: gen}
	})
}

// Sort reports whether msg is the latest scheduled sort.
func (b *Bridge) Sort(msg SortMsg) bool {
	return msg.ID == b.id && msg.Gen == b.sortGen
}

// ---------------------------------------------------------------------------
// Scroll-to-end polling
// ---------------------------------------------------------------------------

// StartEndPoll starts a new scroll-to-end poll, cancelling a running one.
func (b *Bridge) StartEndPoll() tea.Cmd {
	b.endGen++
	return b.endTick(1)
}

// EndPoll reports whether msg belongs to the running poll.
func (b *Bridge) EndPoll(msg EndPollMsg) bool {
	return msg.ID == b.id && msg.Gen == b.endGen
}

// NextEndPoll schedules the frame after msg.
func (b *Bridge) NextEndPoll(msg EndPollMsg) tea.Cmd {
	if !b.EndPoll(msg) {
		return nil
	}
	return b.endTick(msg.Attempt + 1)
}

// StopEndPoll cancels the running poll.
func (b *Bridge) StopEndPoll() { b.endGen++ }

func (b *Bridge) endTick(attempt int) tea.Cmd {
	id, gen := b.id, b.endGen
	return tea.Tick(b.frame, func(time.Time) tea.Msg {
		return EndPollMsg{ID: id, Gen: gen, Attempt: attempt}
	})
}

// ---------------------------------------------------------------------------
// Resize & visibility
// ---------------------------------------------------------------------------

// Resize records a viewport size. It returns nil when the size did not
// change.
func (b *Bridge) Resize(width, height int) tea.Cmd {
	next := Size{Width: width, Height: height}
	if b.sized && next == b.size {
		return nil
	}
	cross := b.sized && b.crossOf(next) != b.crossOf(b.size)
	b.size, b.sized = next, true
	return b.recompute(RecomputeMsg{Reason: ReasonResize, Size: next, CrossChanged: cross})
}

// Visibility records whether the scroller is on screen. Becoming visible
// asks for a recompute; becoming hidden cancels pending frames.
func (b *Bridge) Visibility(visible bool) tea.Cmd {
	if visible == b.visible {
		return nil
	}
	b.visible = visible
	if !visible {
		b.frameGen++
		b.framePending = false
		b.refreshGen++
		return nil
	}
	return b.recompute(RecomputeMsg{Reason: ReasonVisibility})
}

// Poll starts emitting a RecomputeMsg every interval, for hosts that have
// no resize notifications. Calling it again replaces the running poll; a
// non-positive interval stops it.
func (b *Bridge) Poll(interval time.Duration) tea.Cmd {
	b.pollGen++
	b.pollEvery = interval
	if interval <= 0 {
		return nil
	}
	return b.pollTick()
}

// Recompute accepts a RecomputeMsg. ok is false for messages of other
// bridges or stopped polls. For polls next schedules the following tick.
func (b *Bridge) Recompute(msg RecomputeMsg) (ok bool, next tea.Cmd) {
	if msg.ID != b.id {
		return false, nil
	}
	if msg.Reason != ReasonPoll {
		return true, nil
	}
	if msg.Gen != b.pollGen || b.pollEvery <= 0 {
		return false, nil
	}
	return true, b.pollTick()
}

func (b *Bridge) pollTick() tea.Cmd {
	id, gen := b.id, b.pollGen
	size, visible := b.size, b.visible
	return tea.Tick(b.pollEvery, func(time.Time) tea.Msg {
		return RecomputeMsg{ID: id, Gen: gen, Reason: ReasonPoll, Size: size, Visible: visible}
	})
}

func (b *Bridge) recompute(msg RecomputeMsg) tea.Cmd {
	msg.ID = b.id
	msg.Visible = b.visible
	if msg.Size == (Size{}) {
		msg.Size = b.size
	}
	b.log.Debug("bridge: recompute", "reason", msg.Reason, "width", msg.Size.Width, "height", msg.Size.Height)
	return func() tea.Msg { return msg }
}

func (b *Bridge) crossOf(s Size) int {
	if b.horizontal {
		return s.Height
	}
	return s.Width
}

// ---------------------------------------------------------------------------
// Page mode
// ---------------------------------------------------------------------------

// PageRange returns the scroll range of a scroller laid out inside a larger
// scrolling page. offset is the position of the scroller's leading edge
// relative to the top of the visible page area (negative once scrolled
// past), length is the scroller's full size and viewport is the visible
// page size.
func PageRange(offset, length, viewport float64) window.Range {
	start := -offset
	size := viewport
	if start < 0 {
		size += start
		start = 0
	}
	if start+size > length {
		size = length - start
	}
	return window.Range{Start: start, End: start + size}
}
