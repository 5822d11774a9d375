package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationTag sub-classifies a count.
type LocationTag string

const (
	LocationStore     LocationTag = "STORE"
	LocationWarehouse LocationTag = "WAREHOUSE"
)

func (l LocationTag) Valid() bool {
	return l == LocationStore || l == LocationWarehouse
}

// Movement is a signed quantity delta against a barcode. Movements are
// append-only; (SessionID, ClientID) is the idempotency key.
type Movement struct {
	ClientID      string
	SessionID     string
	ParticipantID string
	Barcode       string
	Quantity      decimal.Decimal
	Location      LocationTag
	Timestamp     time.Time
	ReceivedAt    time.Time
}

// Balance is the derived counted quantity for one barcode.
type Balance struct {
	Barcode   string          `json:"barcode"`
	Store     decimal.Decimal `json:"store"`
	Warehouse decimal.Decimal `json:"warehouse"`
	Total     decimal.Decimal `json:"total"`
}

// CatalogEntry is the session-scoped snapshot of a product and its system balance.
type CatalogEntry struct {
	SessionID     string
	ProductCode   string
	Barcode       *string
	Description   string
	SystemBalance decimal.Decimal
}
