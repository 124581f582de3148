package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(typ EventType) ReservationEvent {
	return ReservationEvent{
		Type:             typ,
		ReservationID:    "r-1",
		StationID:        "S1",
		ConnectorID:      "C1",
		UserID:           "u-7",
		StartsAt:         "2025-06-02T10:00:00Z",
		EndsAt:           "2025-06-02T11:00:00Z",
		Amount:           21,
		RefundAmount:     21,
		ReservationState: "cancelled",
		PaymentState:     "success",
		OccurredAt:       "2025-06-02T09:00:00Z",
	}
}

func TestFormatLine(t *testing.T) {
	line := formatLine(sampleEvent(EventCancelled))
	assert.Equal(t,
		"[2025-06-02T09:00:00Z] Reservation cancelled | reservation_id=r-1 | user_id=u-7 | station_id=S1 | connector_id=C1 | window=2025-06-02T10:00:00Z..2025-06-02T11:00:00Z | amount=21.00 | state=cancelled/success | refund=21.00\n",
		line)

	booked := formatLine(sampleEvent(EventBooked))
	assert.True(t, strings.HasPrefix(booked, "[2025-06-02T09:00:00Z] Reservation booked |"))
	assert.NotContains(t, booked, "refund=")
}

func TestConsumerHandleAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := NewConsumer("amqp://unused", dir)

	for _, typ := range []EventType{EventCreated, EventBooked} {
		body, err := json.Marshal(sampleEvent(typ))
		require.NoError(t, err)
		require.NoError(t, c.handle(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, "reservation.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Reservation created")
	assert.Contains(t, lines[1], "Reservation booked")

	assert.Error(t, c.handle([]byte("{not json")))
	assert.Error(t, c.handle([]byte(`{"type":""}`)))
}
