package grid

import "sort"

// ClickMode selects how a grid cell click changes the selection.
type ClickMode int

const (
	// ClickPlain replaces the selection with the clicked slot.
	ClickPlain ClickMode = iota
	// ClickAppend toggles the clicked slot's membership.
	ClickAppend
	// ClickBridge replaces the selection with the contiguous range between
	// the clicked slot and the far end of the existing selection.
	ClickBridge
)

// selection is a set of populated grid slot indices. It is advisory over
// slot positions, not entry identities, and resets whenever the visible
// window changes.
type selection map[int]struct{}

func (s selection) apply(index int, mode ClickMode) selection {
	switch mode {
	case ClickAppend:
		next := make(selection, len(s)+1)
		for i := range s {
			next[i] = struct{}{}
		}
		if _, ok := next[index]; ok {
			delete(next, index)
		} else {
			next[index] = struct{}{}
		}
		return next
	case ClickBridge:
		if len(s) == 0 {
			return selection{index: {}}
		}
		selMin, selMax := -1, -1
		for i := range s {
			if selMin < 0 || i < selMin {
				selMin = i
			}
			if i > selMax {
				selMax = i
			}
		}
		// The range runs between the clicked slot and one end of the
		// existing selection, never across both ends.
		lo, hi := index, selMax
		if index > selMax {
			lo, hi = selMin, index
		}
		next := make(selection, hi-lo+1)
		for i := lo; i <= hi; i++ {
			next[i] = struct{}{}
		}
		return next
	default:
		return selection{index: {}}
	}
}

func (s selection) indices() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s selection) contains(index int) bool {
	_, ok := s[index]
	return ok
}
