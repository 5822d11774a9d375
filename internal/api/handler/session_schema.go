package handler

import (
	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

type createSessionRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Mode string `json:"mode" validate:"omitempty,oneof=INDIVIDUAL MULTIPLAYER"`
}

type personalSessionRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=60"`
}

type joinRequest struct {
	AccessCode      string `json:"access_code"      validate:"required"`
	ParticipantName string `json:"participant_name" validate:"required,max=60"`
}

type joinResponse struct {
	Session     *domain.Session     `json:"session"`
	Participant *domain.Participant `json:"participant"`
	Rejoined    bool                `json:"rejoined"`
}

type sessionListResponse struct {
	Sessions []*domain.Session `json:"sessions"`
}

func toJoinResponse(r *ports.JoinResult) joinResponse {
	return joinResponse{
		Session:     r.Session,
		Participant: r.Participant,
		Rejoined:    r.Rejoined,
	}
}
