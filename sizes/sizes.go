// Package sizes maintains the cumulative offset table used by the
// windowing engine in variable-size mode.
//
// The table covers the padded sequence: optional synthetic leading items,
// the real items, optional synthetic trailing items. Entry i stores the
// item's own size and the offset at which it ends, so the start of item i
// is End(i-1) and End(-1) is always 0.
package sizes

// initialMinSize seeds the running minimum so a list with very large items
// still reports a usable threshold for scroll-skip decisions.
const initialMinSize = 10000

// Entry is one row of the table.
type Entry struct {
	Index int
	Size  float64
	End   float64

	// Synthetic entries are padding slots, not real items.
	Synthetic bool

	// Collapsed entries have a known size of exactly zero.
	Collapsed bool
}

// Padding describes synthetic items placed around the real ones.
type Padding struct {
	Above int
	Below int
	Size  float64
}

// SizeFunc reports the own size of item i. ok=false means the size is not
// known and the minimum size is used instead.
type SizeFunc func(i int) (size float64, ok bool)

// Table is an immutable snapshot of cumulative offsets.
type Table struct {
	entries []Entry
	minSize float64
	pad     Padding
	items   int
}

// Build computes the table for n items. It runs in O(n) and is meant to be
// called only when items or sizes change, never per scroll sample.
func Build(n int, size SizeFunc, minItemSize float64, pad Padding) *Table {
	if pad.Above < 0 {
		pad.Above = 0
	}
	if pad.Below < 0 {
		pad.Below = 0
	}

	t := &Table{
		entries: make([]Entry, 0, pad.Above+n+pad.Below),
		minSize: initialMinSize,
		pad:     pad,
		items:   n,
	}

	acc := 0.0
	push := func(e Entry) {
		acc += e.Size
		e.Index = len(t.entries)
		e.End = acc
		t.entries = append(t.entries, e)
	}

	for i := 0; i < pad.Above; i++ {
		push(Entry{Size: pad.Size, Synthetic: true})
	}

	for i := 0; i < n; i++ {
		s, ok := 0.0, false
		if size != nil {
			s, ok = size(i)
		}
		e := Entry{Size: s}
		switch {
		case !ok:
			e.Size = minItemSize
		case s <= 0:
			e.Size = 0
			e.Collapsed = true
		}
		if !e.Collapsed && e.Size < t.minSize {
			t.minSize = e.Size
		}
		push(e)
	}

	for i := 0; i < pad.Below; i++ {
		push(Entry{Size: pad.Size, Synthetic: true})
	}

	return t
}

// Len returns the padded entry count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Items returns the number of real (non-synthetic) items.
func (t *Table) Items() int {
	if t == nil {
		return 0
	}
	return t.items
}

// Padding returns the padding the table was built with.
func (t *Table) Padding() Padding { return t.pad }

// Entry returns entry i. Out of range indices yield the zero Entry.
func (t *Table) Entry(i int) Entry {
	if t == nil || i < 0 || i >= len(t.entries) {
		return Entry{Index: i}
	}
	return t.entries[i]
}

// End returns the cumulative offset after entry i. End(-1) is 0 and indices
// past the end report the total size.
func (t *Table) End(i int) float64 {
	if t == nil || i < 0 || len(t.entries) == 0 {
		return 0
	}
	if i >= len(t.entries) {
		return t.entries[len(t.entries)-1].End
	}
	return t.entries[i].End
}

// Start returns the offset at which entry i begins.
func (t *Table) Start(i int) float64 {
	return t.End(i - 1)
}

// Total returns the size of the whole padded sequence.
func (t *Table) Total() float64 {
	return t.End(t.Len() - 1)
}

// MinSize returns the smallest real item size seen during Build. Collapsed
// items do not count.
func (t *Table) MinSize() float64 {
	if t == nil {
		return initialMinSize
	}
	return t.minSize
}

// Search returns the greatest index whose End is strictly below pos, or -1
// when no such entry exists. Ties resolve toward the lower index.
func (t *Table) Search(pos float64) int {
	// Invariant: End(i) < pos for all i < lo, End(i) >= pos for all i >= hi.
	lo, hi := 0, t.Len()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.entries[mid].End < pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// Scan walks forward from index from and returns the first index whose End
// reaches pos, or Len() when none does.
func (t *Table) Scan(from int, pos float64) int {
	if from < 0 {
		from = 0
	}
	i := from
	for i < t.Len() && t.entries[i].End < pos {
		i++
	}
	return i
}
