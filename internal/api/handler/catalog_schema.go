package handler

import (
	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

type catalogEntryRequest struct {
	ProductCode   string          `json:"product_code"   validate:"required,max=64"`
	Barcode       *string         `json:"barcode"        validate:"omitempty,max=64"`
	Description   string          `json:"description"    validate:"max=200"`
	SystemBalance decimal.Decimal `json:"system_balance"`
}

type replaceCatalogRequest struct {
	Entries []catalogEntryRequest `json:"entries" validate:"dive"`
}

type catalogEntryResponse struct {
	ProductCode   string          `json:"product_code"`
	Barcode       *string         `json:"barcode,omitempty"`
	Description   string          `json:"description"`
	SystemBalance decimal.Decimal `json:"system_balance"`
}

type catalogResponse struct {
	SessionID string                 `json:"session_id"`
	Entries   []catalogEntryResponse `json:"entries"`
}

func toCatalogInputs(r replaceCatalogRequest) []ports.CatalogEntryInput {
	out := make([]ports.CatalogEntryInput, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, ports.CatalogEntryInput{
			ProductCode:   e.ProductCode,
			Barcode:       e.Barcode,
			Description:   e.Description,
			SystemBalance: e.SystemBalance,
		})
	}
	return out
}

func toCatalogResponse(sessionID string, entries []domain.CatalogEntry) catalogResponse {
	resp := catalogResponse{
		SessionID: sessionID,
		Entries:   make([]catalogEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, catalogEntryResponse{
			ProductCode:   e.ProductCode,
			Barcode:       e.Barcode,
			Description:   e.Description,
			SystemBalance: e.SystemBalance,
		})
	}
	return resp
}
