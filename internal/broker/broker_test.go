package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishOrderPlacedKeysByOrder(t *testing.T) {
	w := &recordingWriter{}
	pub := NewEventPublisher(&Producer{writer: w})

	event := &models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   uuid.New(),
		UserID:    uuid.New(),
		Total:     decimal.RequireFromString("30.30"),
	}
	require.NoError(t, pub.PublishOrderPlaced(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-"+event.OrderID.String(), string(w.msgs[0].Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.True(t, decoded.Total.Equal(event.Total))
}

func TestPublishPropagatesWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	pub := NewEventPublisher(&Producer{writer: w})

	err := pub.PublishOrderStatusChanged(context.Background(), &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   uuid.New(),
	})
	assert.Error(t, err)
}

func TestHandleMessageRoutesByType(t *testing.T) {
	h := NewEventHandler()

	var placed *models.OrderPlacedEvent
	var changed *models.OrderStatusChangedEvent
	h.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		placed = e
		return nil
	})
	h.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error {
		changed = e
		return nil
	})

	productID := uuid.New()
	raw, err := json.Marshal(models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   uuid.New(),
		Items:     []models.OrderItemData{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	require.NotNil(t, placed)
	assert.Equal(t, productID, placed.Items[0].ProductID)
	assert.Nil(t, changed)

	raw, err = json.Marshal(models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		From:      models.OrderStatusPending,
		To:        models.OrderStatusCancelled,
	})
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	require.NotNil(t, changed)
	assert.Equal(t, models.OrderStatusCancelled, changed.To)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	h := NewEventHandler()
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}
