package io

// Queue of pending work units, consumed one at a time by the build driver
type TaskQueue interface {
	Push(work *WorkUnit)
	Pop() (*WorkUnit, bool)
	Len() int
}
