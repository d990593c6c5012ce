package vlist

import (
	"math"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/miosa/osa-scroller/idstate"
	"github.com/miosa/osa-scroller/pool"
	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/style"
)

const (
	gutterWidth  = 1
	cursorMarker = "▌"
	paddingChar  = "·"
)

// View renders the rows inside the viewport. Rows are placed at their slot
// offsets, so a row taller than its estimate may overlap the next until it
// is measured.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	rows := make([]string, m.height)
	scroll := m.sc.Scroll()

	views := slices.Clone(m.sc.Views())
	slices.SortFunc(views, func(a, b *pool.Slot[scroller.Sized[Item], any]) int {
		return a.Index - b.Index
	})

	for _, v := range views {
		if !v.Used {
			continue
		}
		top := int(math.Round(v.Offset - scroll))
		if top >= m.height {
			continue
		}

		var lines []string
		gutter := " "
		if v.Synthetic {
			lines = m.paddingLines()
		} else {
			it := v.Item.Item
			st, _, err := m.handle(v.ID).Sync(it.ID())
			if err != nil {
				continue
			}
			lines = m.render(it, st.Expanded)
			if v.Item.Index == m.cursor {
				gutter = style.Title.Render(cursorMarker)
			}
		}

		for j, line := range lines {
			r := top + j
			if r < 0 {
				continue
			}
			if r >= m.height {
				break
			}
			rows[r] = gutter + line
		}
	}

	body := strings.Join(rows, "\n")
	if !m.scrollbar {
		return body
	}
	bar := Scrollbar(m.height, int(math.Ceil(m.sc.ContentSize())), int(math.Round(scroll)))
	if bar == "" {
		return body
	}
	body = lipgloss.NewStyle().Width(m.width - 1).MaxWidth(m.width - 1).Render(body)
	return lipgloss.JoinHorizontal(lipgloss.Top, body, bar)
}

// render returns the item's lines, re-rendering only when the width or the
// version changed.
func (m Model) render(it Item, expanded bool) []string {
	w := m.contentWidth()
	v := m.version(it)
	if c, ok := m.cache[it.ID()]; ok && c.width == w && c.version == v {
		return c.lines
	}
	out := it.Render(w, expanded)
	lines := strings.Split(out, "\n")
	if expanded {
		for i := 1; i < len(lines); i++ {
			lines[i] = style.RowExpanded.Render(lines[i])
		}
	}
	m.cache[it.ID()] = cachedRender{lines: lines, width: w, version: v}
	return lines
}

// handle returns the row state handle of a slot.
func (m Model) handle(slotID int) *idstate.Handle[string, RowState] {
	h, ok := m.handles[slotID]
	if !ok {
		h = m.states.Handle()
		m.handles[slotID] = h
	}
	return h
}

func (m Model) paddingLines() []string {
	o := m.sc.Recycle().Options()
	n := int(o.EmptyItemSize)
	if n <= 0 {
		n = int(o.MinItemSize)
	}
	lines := make([]string, max(n, 1))
	for i := range lines {
		lines[i] = style.RowPadding.Render(paddingChar)
	}
	return lines
}
