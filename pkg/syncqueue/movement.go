// Package syncqueue is the client side of counting sync. Scans are persisted
// locally first and pushed to the server in batches; the server confirms
// each movement by its client id, so a batch can be resent safely.
package syncqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

var (
	// ErrSessionClosed means the server no longer accepts writes for the session.
	ErrSessionClosed = errors.New("syncqueue: session closed")
	// ErrRejected means the server refused the batch as invalid. Entries stay queued.
	ErrRejected = errors.New("syncqueue: batch rejected")
	// ErrReadOnly is returned once the queue has seen the session close.
	ErrReadOnly = errors.New("syncqueue: queue is read-only")
)

// StatusError is an unexpected HTTP status from the sync API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("syncqueue: server returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("syncqueue: server returned %d", e.Code)
}

// Retryable reports whether resending later can succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == 429
}

// Movement is one locally recorded scan waiting for confirmation.
type Movement struct {
	ClientID  string          `json:"client_id"`
	Barcode   string          `json:"barcode"`
	Quantity  decimal.Decimal `json:"quantity"`
	Location  string          `json:"location"`
	Timestamp time.Time       `json:"timestamp"`
}

func (m Movement) toDomain() domain.Movement {
	return domain.Movement{
		ClientID:  m.ClientID,
		Barcode:   m.Barcode,
		Quantity:  m.Quantity,
		Location:  domain.LocationTag(m.Location),
		Timestamp: m.Timestamp,
	}
}
