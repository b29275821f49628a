package fingerprint

import "fmt"

// Winnow selects the index of the minimum hash in every window of w
// consecutive hashes, preferring the rightmost minimum on ties. The result is
// deduplicated and ascending. A sequence shorter than w has no complete
// window and yields an empty selection.
//
// Any run of w consecutive hashes contains a selected index, so a shared
// region of t = w + k - 1 canonical bytes always contributes a selection.
func Winnow(hashes []uint64, w int) ([]int, error) {
	if w < 1 {
		return nil, fmt.Errorf("%w: window size %d must be at least 1", ErrInvalidThreshold, w)
	}
	if len(hashes) < w {
		return []int{}, nil
	}

	selected := make([]int, 0, 2*len(hashes)/(w+1)+1)

	// deque holds indices whose hashes strictly increase from front to back.
	// Popping on >= keeps only the rightmost of equal minima.
	deque := make([]int, 0, w)
	for i, h := range hashes {
		for len(deque) > 0 && hashes[deque[len(deque)-1]] >= h {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)

		start := i - w + 1
		if deque[0] < start {
			deque = deque[1:]
		}
		if start < 0 {
			continue
		}

		// The front index never moves left, so comparing with the last pick dedups.
		if pick := deque[0]; len(selected) == 0 || selected[len(selected)-1] != pick {
			selected = append(selected, pick)
		}
	}

	return selected, nil
}
