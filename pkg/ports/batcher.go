package ports

// Batcher groups the render callbacks of one finalize pass into a single UI update.
type Batcher interface {
	Batch(fn func())
}

// BatcherFunc adapts a function to Batcher.
type BatcherFunc func(fn func())

// Batch implements Batcher.
func (f BatcherFunc) Batch(fn func()) {
	f(fn)
}

// DirectBatcher runs the callbacks immediately.
type DirectBatcher struct{}

// Batch implements Batcher.
func (DirectBatcher) Batch(fn func()) {
	fn()
}

// Scheduler defers a continuation to the next microtask boundary.
// The engine schedules at most one finalize continuation per turn.
type Scheduler interface {
	Schedule(task func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func())

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(task func()) {
	f(task)
}
