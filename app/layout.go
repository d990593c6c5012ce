package app

// minListHeight keeps at least one row for the list on tiny terminals.
const minListHeight = 1

// Layout holds computed dimensions for the current frame.
type Layout struct {
	TermWidth    int
	TermHeight   int
	HeaderHeight int // header line + separator
	StatusHeight int
	ListWidth    int
	ListHeight   int
}

// ComputeLayout calculates the layout dimensions based on terminal size.
// The header and status bar have fixed heights; the remainder goes to the
// list.
func ComputeLayout(termW, termH, headerLines, statusLines int) Layout {
	l := Layout{
		TermWidth:    termW,
		TermHeight:   termH,
		HeaderHeight: headerLines,
		StatusHeight: max(statusLines, 1),
		ListWidth:    max(termW, 0),
	}
	l.ListHeight = max(termH-l.HeaderHeight-l.StatusHeight, minListHeight)
	return l
}
