package ports

import (
	"context"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// EventPublisher delivers lifecycle events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
}

// EventDispatcher accepts events for asynchronous publishing.
type EventDispatcher interface {
	Enqueue(event domain.SessionEvent)
}
