// Package merger selects the best K scored candidates with a bounded heap.
package merger

import "container/heap"

// Candidate is a scored corpus position.
type Candidate struct {
	Index int
	Score float64
}

// TopK returns the limit highest-scoring candidates, best first. Equal
// scores keep ascending Index order, so the result matches a stable sort.
func TopK(candidates []Candidate, limit int) []Candidate {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}
	h := &candidateHeap{}
	for _, c := range candidates {
		heap.Push(h, c)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]Candidate, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Candidate)
	}
	return result
}

// candidateHeap is a min-heap on rank: the root is the worst candidate.
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Index > h[j].Index
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
