package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversInRegistrationOrder(t *testing.T) {
	// Arrange
	d := NewDispatcher()
	var order []string

	d.Subscribe(func(Event) { order = append(order, "first") })
	d.Subscribe(func(Event) { order = append(order, "second") })
	d.Subscribe(func(Event) { order = append(order, "third") })

	// Act
	d.Publish(Event{Kind: KindCompetitionStarted, CompetitionID: 1, OccurredAt: time.Now()})

	// Assert
	require.Len(t, order, 3)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatcher_PanickingListenerDoesNotSuppressOthers(t *testing.T) {
	// Arrange
	d := NewDispatcher()
	delivered := 0

	d.Subscribe(func(Event) { delivered++ })
	d.Subscribe(func(Event) { panic("listener bug") })
	d.Subscribe(func(Event) { delivered++ })

	// Act: must not panic through Publish
	assert.NotPanics(t, func() {
		d.Publish(Event{Kind: KindLeaderboardUpdated, CompetitionID: 2})
	})

	// Assert
	assert.Equal(t, 2, delivered, "both healthy listeners must still receive the event")
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	// Arrange
	d := NewDispatcher()
	calls := 0
	sub := d.Subscribe(func(Event) { calls++ })

	// Act
	d.Publish(Event{Kind: KindParticipantJoined})
	d.Unsubscribe(sub)
	d.Publish(Event{Kind: KindParticipantJoined})

	// Assert
	assert.Equal(t, 1, calls, "no delivery after unsubscribe")
	assert.Equal(t, 0, d.Len())
}

func TestDispatcher_UnsubscribeUnknownHandleIsNoop(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(func(Event) {})

	assert.NotPanics(t, func() {
		d.Unsubscribe(Subscription{id: "missing"})
	})
	assert.Equal(t, 1, d.Len())
}
