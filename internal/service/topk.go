package service

import (
	"container/heap"
	"slices"
)

type ranked[T any] struct {
	value T
	size  int64
	seq   int
}

// weaker reports whether a ranks below b: smaller, or the same size and
// offered later
func weaker[T any](a, b ranked[T]) bool {
	if a.size != b.size {
		return a.size < b.size
	}
	return a.seq > b.seq
}

// minHeap keeps the weakest retained entry at the root
type minHeap[T any] []ranked[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return weaker(h[i], h[j]) }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) { *h = append(*h, x.(ranked[T])) }

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopK selects the k largest values offered to it in O(n log k).
// Ties keep the value offered first.
type TopK[T any] struct {
	k    int
	heap minHeap[T]
	seq  int
}

// NewTopK creates a selector for the k largest values. k <= 0 selects nothing.
func NewTopK[T any](k int) *TopK[T] {
	return &TopK[T]{k: k}
}

// Offer considers v with the given size
func (t *TopK[T]) Offer(v T, size int64) {
	e := ranked[T]{value: v, size: size, seq: t.seq}
	t.seq++

	switch {
	case t.k <= 0:
	case len(t.heap) < t.k:
		heap.Push(&t.heap, e)
	case weaker(t.heap[0], e):
		t.heap[0] = e
		heap.Fix(&t.heap, 0)
	}
}

// Result returns the selected values, largest first
func (t *TopK[T]) Result() []T {
	sorted := slices.Clone(t.heap)
	slices.SortFunc(sorted, func(a, b ranked[T]) int {
		switch {
		case weaker(b, a):
			return -1
		case weaker(a, b):
			return 1
		}
		return 0
	})

	out := make([]T, len(sorted))
	for i, e := range sorted {
		out[i] = e.value
	}
	return out
}
