// Package history provides a fixed-capacity rolling window.
package history

// Sized is a fixed-capacity ring of the most recent values.
// Push is O(1); indexing is from the back (0 = newest).
// Not safe for concurrent use.
type Sized[T any] struct {
	data  []T
	head  int // index of the next write
	count int
}

// New creates a Sized window holding at most capacity values.
// A capacity below 1 is raised to 1.
func New[T any](capacity int) *Sized[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Sized[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (s *Sized[T]) Push(v T) {
	s.data[s.head] = v
	s.head++
	if s.head == len(s.data) {
		s.head = 0
	}
	if s.count < len(s.data) {
		s.count++
	}
}

// Len returns the number of values held.
func (s *Sized[T]) Len() int { return s.count }

// Cap returns the window capacity.
func (s *Sized[T]) Cap() int { return len(s.data) }

// Back returns the i-th most recent value (0 = newest).
// The second result is false when i is out of range.
func (s *Sized[T]) Back(i int) (T, bool) {
	p := s.BackPtr(i)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// BackPtr returns a pointer to the i-th most recent value, or nil when out
// of range. The pointer is invalidated by the next Push that wraps onto it.
func (s *Sized[T]) BackPtr(i int) *T {
	if i < 0 || i >= s.count {
		return nil
	}
	idx := s.head - 1 - i
	if idx < 0 {
		idx += len(s.data)
	}
	return &s.data[idx]
}

// Reset empties the window without releasing storage.
func (s *Sized[T]) Reset() {
	var zero T
	for i := range s.data {
		s.data[i] = zero
	}
	s.head = 0
	s.count = 0
}
