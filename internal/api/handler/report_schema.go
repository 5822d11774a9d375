package handler

import "github.com/conteo/inventory-sync/internal/core/domain"

type reportListResponse struct {
	Reports []*domain.SavedReport `json:"reports"`
}

type finalizeResponse struct {
	SessionID string              `json:"session_id"`
	Status    string              `json:"status"`
	Report    *domain.SavedReport `json:"report"`
}
