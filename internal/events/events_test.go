package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []string
	bus.Subscribe(HoldCreated, func(e Event) error {
		var p struct {
			SessionID string `json:"session_id"`
		}
		require.NoError(t, e.Decode(&p))
		got = append(got, p.SessionID)
		return nil
	})
	bus.Subscribe(BookingConfirmed, func(Event) error {
		t.Fatal("wrong type delivered")
		return nil
	})

	ev, err := New(HoldCreated, map[string]string{"session_id": "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())

	require.NoError(t, bus.Publish(ev))
	assert.Equal(t, []string{"s1"}, got)
}

func TestEventBus_JoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	calls := 0
	bus.Subscribe(HoldReleased, func(Event) error { calls++; return boom })
	bus.Subscribe(HoldReleased, func(Event) error { calls++; return nil })

	err := bus.Publish(Event{Type: HoldReleased})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "a failing handler does not stop delivery")

	assert.NoError(t, bus.Publish(Event{Type: "unknown"}))
}
