package io

import (
	"github.com/ecopia-map/octree_indexer/internal/tiler"
)

// Returns an empty queue popping work units in the given order
func NewTaskQueue(order tiler.QueueOrder) TaskQueue {
	if order == tiler.DepthFirst {
		return &lifoQueue{}
	}
	return &fifoQueue{}
}

// breadth first: sibling nodes are processed before their children
type fifoQueue struct {
	items []*WorkUnit
	head  int
}

func (q *fifoQueue) Push(work *WorkUnit) {
	q.items = append(q.items, work)
}

func (q *fifoQueue) Pop() (*WorkUnit, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	work := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// compact once the consumed prefix dominates the backing array
	if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append([]*WorkUnit(nil), q.items[q.head:]...)
		q.head = 0
	}
	return work, true
}

func (q *fifoQueue) Len() int {
	return len(q.items) - q.head
}

// depth first: a subtree is exhausted before its next sibling starts
type lifoQueue struct {
	items []*WorkUnit
}

func (q *lifoQueue) Push(work *WorkUnit) {
	q.items = append(q.items, work)
}

func (q *lifoQueue) Pop() (*WorkUnit, bool) {
	n := len(q.items)
	if n == 0 {
		return nil, false
	}
	work := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return work, true
}

func (q *lifoQueue) Len() int {
	return len(q.items)
}
