// Package smoothing holds the fixed capacity rolling average used on both ends of the link.
package smoothing

import "sync"

// Buffer is a FIFO ring of the most recent values. The oldest value is
// evicted once capacity is exceeded. Safe for concurrent use.
type Buffer struct {
	mutex  sync.RWMutex
	values []float64
	next   int
	count  int
}

// NewBuffer returns an empty buffer holding at most capacity values.
// A capacity below one is raised to one.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{values: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when the buffer is full
func (b *Buffer) Push(v float64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.values[b.next] = v
	b.next = (b.next + 1) % len(b.values)
	if b.count < len(b.values) {
		b.count++
	}
}

// Mean returns the arithmetic mean of the current contents, 0 when empty
func (b *Buffer) Mean() float64 {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < b.count; i++ {
		sum += b.values[i]
	}
	return sum / float64(b.count)
}

// Len returns the number of values currently held
func (b *Buffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.count
}

// Cap returns the capacity fixed at construction
func (b *Buffer) Cap() int { return len(b.values) }

// Values returns the current contents, oldest first
func (b *Buffer) Values() []float64 {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	out := make([]float64, 0, b.count)
	start := 0
	if b.count == len(b.values) {
		start = b.next
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.values[(start+i)%len(b.values)])
	}
	return out
}

// Reset drops all values
func (b *Buffer) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.next = 0
	b.count = 0
}
