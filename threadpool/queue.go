package threadpool

import (
	"container/heap"
)

// Priority orders work on a PriorityPool. Higher values run first.
type Priority int8

// DefaultPriority is used by Submit and SubmitFunc.
const DefaultPriority Priority = 0

// workItem is a queued unit of work. It is never modified after it is
// pushed.
type workItem struct {
	action   func() error
	priority Priority
	seq      uint64 // submission order, breaks priority ties
}

// workQueue is the container shared by all workers of a pool. None of its
// methods are safe for concurrent use; the pool mutex guards every call.
type workQueue interface {
	push(item workItem)
	// pop panics when the queue is empty.
	pop() workItem
	empty() bool
	len() int
}

// fifoQueue hands items out in insertion order.
type fifoQueue struct {
	items []workItem
	head  int
}

func newFIFOQueue() *fifoQueue {
	return &fifoQueue{}
}

func (q *fifoQueue) push(item workItem) {
	q.items = append(q.items, item)
}

func (q *fifoQueue) pop() workItem {
	if q.empty() {
		panic("threadpool: pop on empty queue")
	}

	item := q.items[q.head]
	q.items[q.head] = workItem{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item
}

func (q *fifoQueue) empty() bool {
	return q.len() == 0
}

func (q *fifoQueue) len() int {
	return len(q.items) - q.head
}

// itemHeap implements heap.Interface. Higher priority sorts first; equal
// priorities keep submission order.
type itemHeap []workItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(workItem))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = workItem{}
	*h = old[:n-1]
	return item
}

// priorityQueue hands out the highest priority item, FIFO among equals.
type priorityQueue struct {
	h itemHeap
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

func (q *priorityQueue) push(item workItem) {
	heap.Push(&q.h, item)
}

func (q *priorityQueue) pop() workItem {
	if q.empty() {
		panic("threadpool: pop on empty queue")
	}
	return heap.Pop(&q.h).(workItem)
}

func (q *priorityQueue) empty() bool {
	return len(q.h) == 0
}

func (q *priorityQueue) len() int {
	return len(q.h)
}
