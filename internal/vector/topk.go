package vector

import "container/heap"

// candidate is a scored row of the store.
type candidate struct {
	row   int
	score float64
}

// worse orders candidates by rank: lower score first, and on equal score the later row.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.row > b.row
}

// topK is a min-heap whose root is the worst candidate kept so far.
type topK []candidate

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *topK) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *topK) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// offer keeps c if the heap has room for k entries or c outranks the current worst.
func (h *topK) offer(c candidate, k int) {
	if h.Len() < k {
		heap.Push(h, c)
		return
	}
	if worse((*h)[0], c) {
		(*h)[0] = c
		heap.Fix(h, 0)
	}
}

// drain empties the heap and returns its candidates best first.
func (h *topK) drain() []candidate {
	out := make([]candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate)
	}
	return out
}
