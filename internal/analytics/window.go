package analytics

// Window is a bounded FIFO: pushing beyond capacity drops the oldest value.
type Window[T any] struct {
	capacity int
	values   []T
}

func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{
		capacity: capacity,
		values:   make([]T, 0, capacity),
	}
}

func (w *Window[T]) Push(v T) {
	w.values = append(w.values, v)
	if len(w.values) > w.capacity {
		w.values = w.values[1:]
	}
}

// Values returns the window contents oldest first. The slice is shared; do not modify it.
func (w *Window[T]) Values() []T {
	return w.values
}

func (w *Window[T]) Len() int { return len(w.values) }

func (w *Window[T]) Cap() int { return w.capacity }
