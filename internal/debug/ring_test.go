package debug

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	t.Run("empty ring snapshots empty", func(t *testing.T) {
		r := NewRing(3)
		assert.Empty(t, r.Snapshot())
	})

	t.Run("keeps insertion order before wrapping", func(t *testing.T) {
		r := NewRing(3)
		r.Add([]byte("a"))
		r.Add([]byte("b"))

		snap := r.Snapshot()
		assert.Len(t, snap, 2)
		assert.Equal(t, "a", string(snap[0].Payload))
		assert.Equal(t, "b", string(snap[1].Payload))
	})

	t.Run("evicts oldest after wrapping", func(t *testing.T) {
		r := NewRing(3)
		for i := 0; i < 5; i++ {
			r.Add([]byte(fmt.Sprintf("p-%d", i)))
		}

		snap := r.Snapshot()
		assert.Len(t, snap, 3)
		assert.Equal(t, "p-2", string(snap[0].Payload))
		assert.Equal(t, "p-4", string(snap[2].Payload))
	})

	t.Run("copies the payload", func(t *testing.T) {
		r := NewRing(1)
		buf := []byte("original")
		r.Add(buf)
		buf[0] = 'X'

		assert.Equal(t, "original", string(r.Snapshot()[0].Payload))
	})
}
