package measure

// Compensate returns how far the scroll position must move so that content
// at scrollTop stays in place when item sizes change from prev to next.
//
// It walks items from the top, accumulating both size sequences until the
// previous offsets reach scrollTop. Non-positive sizes count as minSize.
func Compensate(prev, next []float64, scrollTop, minSize float64) float64 {
	var prevTop, top float64
	n := min(len(prev), len(next))
	for i := 0; i < n && prevTop < scrollTop; i++ {
		prevTop += orMin(prev[i], minSize)
		top += orMin(next[i], minSize)
	}
	return top - prevTop
}

func orMin(v, minSize float64) float64 {
	if v > 0 {
		return v
	}
	return minSize
}
