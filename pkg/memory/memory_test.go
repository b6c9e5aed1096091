package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	t.Run("keeps the newest notes", func(t *testing.T) {
		m := NewMemory(3)
		for i := 1; i <= 5; i++ {
			m.Store(fmt.Sprintf("note %d", i))
		}
		assert.Equal(t, 3, m.Len())
		assert.Equal(t, []string{"note 3", "note 4", "note 5"}, m.All())
	})

	t.Run("recent", func(t *testing.T) {
		m := NewMemory(5)
		m.Store("a")
		m.Store("b")
		m.Store("c")
		assert.Equal(t, []string{"b", "c"}, m.Recent(2))
		assert.Equal(t, []string{"a", "b", "c"}, m.Recent(10))
		assert.Empty(t, m.Recent(0))
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		m := NewMemory(2)
		m.Store("a")
		notes := m.All()
		notes[0] = "changed"
		assert.Equal(t, []string{"a"}, m.All())
	})

	t.Run("non-positive capacity holds one note", func(t *testing.T) {
		m := NewMemory(0)
		m.Store("a")
		m.Store("b")
		assert.Equal(t, []string{"b"}, m.All())
	})
}
