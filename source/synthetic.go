package source

import (
	"fmt"
	"strings"

	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/vlist"
)

var words = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam quis
nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat`)

// Row is a generated item whose height depends on its index.
type Row struct {
	Index int
	Title string
	Body  string
}

func (r Row) ID() string          { return fmt.Sprintf("row-%d", r.Index) }
func (r Row) ContentVersion() int { return 1 }
func (r Row) Type() string        { return "row" }

// Render shows the title; expanded rows add the wrapped body.
func (r Row) Render(width int, expanded bool) string {
	head := style.RowIndex.Render(fmt.Sprintf("%6d ", r.Index)) + r.Title
	if !expanded {
		return fit(head, width)
	}
	return fit(head, width) + "\n" + wrap(r.Body, max(1, width-7))
}

// Synthetic returns n rows. Every third row has a two-line title so the
// list has items of different heights even when nothing is expanded.
func Synthetic(n int) []vlist.Item {
	items := make([]vlist.Item, max(n, 0))
	for i := range items {
		items[i] = newRow(i)
	}
	return items
}

func newRow(i int) Row {
	title := sentence(i, 4+i%5)
	if i%3 == 2 {
		title += "\n       " + sentence(i+7, 3)
	}
	return Row{Index: i, Title: title, Body: sentence(i*31, 12+i%40)}
}

func sentence(seed, n int) string {
	parts := make([]string, n)
	for j := range parts {
		parts[j] = words[(seed*7+j*13)%len(words)]
	}
	return strings.Join(parts, " ")
}

// Records returns n map items with id, size and type fields, as read by a
// field-resolving scroller.
func Records(n int, size func(i int) float64) []map[string]any {
	recs := make([]map[string]any, max(n, 0))
	for i := range recs {
		typ := "row"
		if i%10 == 0 {
			typ = "header"
		}
		recs[i] = map[string]any{
			"id":   fmt.Sprintf("rec-%d", i),
			"size": size(i),
			"type": typ,
		}
	}
	return recs
}
