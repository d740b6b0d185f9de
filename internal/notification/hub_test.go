package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RoutesDirectedEvents(t *testing.T) {
	h := NewHub()
	aliceID, alice := h.Subscribe("alice", 4)
	_, bob := h.Subscribe("bob", 4)
	_, anon := h.Subscribe("", 4)
	defer h.Unsubscribe(aliceID)

	require.NoError(t, h.Deliver(context.Background(), Event{Type: EventYourTurn, EquipmentID: "tm-1", MemberID: "bob"}))
	require.NoError(t, h.Deliver(context.Background(), Event{Type: EventAvailable, EquipmentID: "tm-1"}))

	assert.Equal(t, EventAvailable, (<-alice).Type)
	assert.Equal(t, EventYourTurn, (<-bob).Type)
	assert.Equal(t, EventAvailable, (<-bob).Type)
	assert.Equal(t, EventAvailable, (<-anon).Type)
	assert.Empty(t, alice)
	assert.Empty(t, anon)
}

func TestHub_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe("alice", 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Deliver(context.Background(), Event{Type: EventAvailable, EquipmentID: "tm-1"}))
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(2), h.Dropped())
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe("alice", 1)
	h.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Delivering after the client left is harmless.
	require.NoError(t, h.Deliver(context.Background(), Event{Type: EventAvailable}))
}
