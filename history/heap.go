package history

import (
	"container/heap"

	"github.com/scomesh/puffin/frame"
)

// slowItem pairs a FrameData with its cached duration so the heap never has
// to re-derive it from meta on every comparison.
type slowItem struct {
	fd       *frame.FrameData
	duration int64
	seq      uint64 // insertion sequence, for a stable tie-break
}

func durationOf(fd *frame.FrameData) int64 {
	r := fd.Meta().Range
	if r.IsEmpty() {
		return 0
	}
	return r.Max - r.Min
}

// slowestHeap is a bounded min-heap ordered by duration ascending, so its
// root is always the current smallest of the K largest durations seen
// (§4.6 "slowest"): cheap to evict when a new, larger frame arrives.
type slowestHeap []slowItem

func (h slowestHeap) Len() int { return len(h) }
func (h slowestHeap) Less(i, j int) bool {
	if h[i].duration != h[j].duration {
		return h[i].duration < h[j].duration
	}
	return h[i].seq < h[j].seq
}
func (h slowestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *slowestHeap) Push(x any)   { *h = append(*h, x.(slowItem)) }
func (h *slowestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// min returns the current minimum duration in the heap (its root).
func (h slowestHeap) min() int64 {
	if len(h) == 0 {
		return -1
	}
	return h[0].duration
}

var _ heap.Interface = (*slowestHeap)(nil)
