package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/broker"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCatalog struct {
	events []*models.OrderPlacedEvent
	err    error
}

func (r *recordingCatalog) HandleOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestCatalogWorkerRoutesOrderPlaced(t *testing.T) {
	catalog := &recordingCatalog{}
	w := NewCatalogWorker(nil, catalog)

	productID := uuid.New()
	event := models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   uuid.New(),
		Items:     []models.OrderItemData{{ProductID: productID, Quantity: 2}},
	}
	require.NoError(t, w.Handler()(context.Background(), message(t, event)))

	require.Len(t, catalog.events, 1)
	assert.Equal(t, event.OrderID, catalog.events[0].OrderID)
	assert.Equal(t, productID, catalog.events[0].Items[0].ProductID)
}

func TestCatalogWorkerSurfacesHandlerError(t *testing.T) {
	catalog := &recordingCatalog{err: errors.New("redis down")}
	w := NewCatalogWorker(nil, catalog)

	event := models.OrderPlacedEvent{BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced), OrderID: uuid.New()}
	assert.Error(t, w.Handler()(context.Background(), message(t, event)))
}

func TestCatalogWorkerAcceptsStatusChanges(t *testing.T) {
	catalog := &recordingCatalog{}
	w := NewCatalogWorker(nil, catalog)

	event := models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   uuid.New(),
		From:      models.OrderStatusPending,
		To:        models.OrderStatusProcessing,
	}
	require.NoError(t, w.Handler()(context.Background(), message(t, event)))
	assert.Empty(t, catalog.events)
}

func TestCatalogWorkerRejectsGarbage(t *testing.T) {
	w := NewCatalogWorker(nil, &recordingCatalog{})
	assert.Error(t, w.Handler()(context.Background(), kafka.Message{Value: []byte("not json")}))
}

func TestCatalogWorkerStartReturnsNilOnShutdown(t *testing.T) {
	w := NewCatalogWorker(broker.NewConsumer([]string{"localhost:9092"}, "order-events", "storefront-test"), &recordingCatalog{})
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Start(ctx))
}
