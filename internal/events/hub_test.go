package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	h := NewHub()
	_, a := h.Subscribe(4)
	_, b := h.Subscribe(4)

	h.Publish(Event{Type: TypeOrder, Signal: "BUY", Ticket: 7})

	ea := <-a
	eb := <-b
	assert.Equal(t, uint64(7), ea.Ticket)
	assert.Equal(t, ea, eb)
	assert.False(t, ea.OccurredAt.IsZero())
}

func TestPublishDropsForSlowConsumer(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)

	h.Publish(Event{Signal: "BUY"})
	h.Publish(Event{Signal: "SELL"})

	require.Len(t, ch, 1)
	assert.Equal(t, "BUY", (<-ch).Signal)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)
	assert.Equal(t, 1, h.Subscribers())

	h.Unsubscribe(id)
	h.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	h.Publish(Event{Signal: "CLOSE"})
}
