package buffer

import "fmt"

// Circular is a fixed capacity FIFO that overwrites its oldest value once full.
// It does no locking of its own, owners that share it between goroutines must guard it.
type Circular[T any] struct {
	values []T
	// head is the index of the oldest value.
	head int
	size int
}

func NewCircular[T any](capacity int) *Circular[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("buffer: capacity must be at least 1, got %d", capacity))
	}
	return &Circular[T]{values: make([]T, capacity)}
}

// Write appends v. If the buffer is full the oldest value is dropped first and evicted is true.
func (c *Circular[T]) Write(v T) (evicted bool) {
	if c.size == len(c.values) {
		c.values[c.head] = v
		c.head = (c.head + 1) % len(c.values)
		return true
	}
	c.values[(c.head+c.size)%len(c.values)] = v
	c.size++
	return false
}

// Peek returns the oldest value without removing it.
func (c *Circular[T]) Peek() (T, bool) {
	if c.size == 0 {
		var zero T
		return zero, false
	}
	return c.values[c.head], true
}

// Read removes and returns the oldest value.
func (c *Circular[T]) Read() (T, bool) {
	var zero T
	if c.size == 0 {
		return zero, false
	}
	v := c.values[c.head]
	c.values[c.head] = zero
	c.head = (c.head + 1) % len(c.values)
	c.size--
	return v, true
}

func (c *Circular[T]) Size() int {
	return c.size
}

func (c *Circular[T]) Capacity() int {
	return len(c.values)
}

// Values returns a copy of the contents, oldest first.
func (c *Circular[T]) Values() []T {
	out := make([]T, c.size)
	for i := range out {
		out[i] = c.values[(c.head+i)%len(c.values)]
	}
	return out
}

func (c *Circular[T]) Reset() {
	clear(c.values)
	c.head = 0
	c.size = 0
}
