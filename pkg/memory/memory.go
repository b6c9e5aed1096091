package memory

import "sync"

// Memory is a bounded stream of notes. Once capacity is reached the oldest
// note is dropped for every new one.
type Memory struct {
	stream   []string
	capacity int
	mu       sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	return &Memory{
		stream:   make([]string, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of every note, oldest first
func (m *Memory) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notes := make([]string, len(m.stream))
	copy(notes, m.stream)
	return notes
}

// Recent returns up to n of the newest notes, oldest first
func (m *Memory) Recent(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.stream) {
		n = len(m.stream)
	}
	if n <= 0 {
		return []string{}
	}
	notes := make([]string, n)
	copy(notes, m.stream[len(m.stream)-n:])
	return notes
}

func (m *Memory) Store(note string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stream) == m.capacity {
		copy(m.stream, m.stream[1:])
		m.stream = m.stream[:len(m.stream)-1]
	}
	m.stream = append(m.stream, note)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.stream)
}

func (m *Memory) Capacity() int {
	return m.capacity
}
