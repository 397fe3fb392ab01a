package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    EventStatus
		to      EventStatus
		allowed bool
	}{
		{StatusReceived, StatusQueued, true},
		{StatusReceived, StatusFailed, true},
		{StatusReceived, StatusCompleted, false},
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusEscalated, true},
		{StatusProcessing, StatusReceived, false},
		{StatusCompleted, StatusQueued, false},
		{StatusFailed, StatusQueued, true},
		{StatusEscalated, StatusCompleted, true},
		{StatusEscalated, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestEventTransitionTo(t *testing.T) {
	event := &Event{
		TenantID:  "tenant-a",
		EventID:   "evt-1",
		Status:    StatusReceived,
		UpdatedAt: time.Now().Add(-time.Hour),
	}

	before := event.UpdatedAt
	require.NoError(t, event.TransitionTo(StatusQueued))
	assert.Equal(t, StatusQueued, event.Status)
	assert.True(t, event.UpdatedAt.After(before))

	err := event.TransitionTo(StatusReceived)
	require.Error(t, err)

	var transitionErr *InvalidStatusTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusQueued, transitionErr.From)
	assert.Equal(t, StatusReceived, transitionErr.To)
	assert.Equal(t, StatusQueued, event.Status, "failed transition must not change status")
}
