package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/api/validators"
	"github.com/evermark/servicedesk-backend/internal/serials"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

// SerialHistory returns the registry row and its event log, newest first.
func SerialHistory(svc serials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "serial service unavailable"))
			return
		}

		serial := strings.TrimSpace(chi.URLParam(r, "serial"))
		history, err := svc.History(r.Context(), serial)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, historyResponse{
			Registry: registryResponseFromModel(&history.Registry),
			Events:   serviceEventResponses(history.Events),
		})
	}
}

const (
	maxSummaryLen = 512
	maxNotesLen   = 4096
)

type serialEventRequest struct {
	EventType string         `json:"event_type" validate:"required"`
	Summary   string         `json:"summary" validate:"required"`
	Notes     *string        `json:"notes"`
	Metadata  *types.JSONMap `json:"metadata"`
	RmaCaseID *string        `json:"rma_case_id"`
}

func (r serialEventRequest) toInput(createdBy *string) (serials.AppendEventInput, error) {
	eventType, err := enums.ParseServiceEventType(strings.TrimSpace(r.EventType))
	if err != nil {
		return serials.AppendEventInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	input := serials.AppendEventInput{
		EventType: eventType,
		Summary:   validators.SanitizeString(r.Summary, maxSummaryLen),
		Notes:     r.Notes,
		Metadata:  r.Metadata,
		CreatedBy: createdBy,
	}
	if r.Notes != nil {
		notes := validators.SanitizeString(*r.Notes, maxNotesLen)
		input.Notes = &notes
	}
	if r.RmaCaseID != nil {
		caseID, err := uuid.Parse(strings.TrimSpace(*r.RmaCaseID))
		if err != nil {
			return serials.AppendEventInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rma_case_id")
		}
		input.RmaCaseID = &caseID
	}

	return input, nil
}

// SerialEventAppend adds one timeline entry to an existing registry.
func SerialEventAppend(svc serials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "serial service unavailable"))
			return
		}

		serial := strings.TrimSpace(chi.URLParam(r, "serial"))

		var payload serialEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(operatorEmailPtr(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.AppendEvent(r.Context(), serial, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, serviceEventResponseFromModel(created))
	}
}

type historyResponse struct {
	Registry registryResponse       `json:"registry"`
	Events   []serviceEventResponse `json:"events"`
}

type registryResponse struct {
	ID              uuid.UUID  `json:"id"`
	SerialNumber    string     `json:"serial_number"`
	Brand           *string    `json:"brand,omitempty"`
	Model           *string    `json:"model,omitempty"`
	InventoryItemID *uuid.UUID `json:"inventory_item_id,omitempty"`
	RmaCount        int        `json:"rma_count"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastRmaAt       *time.Time `json:"last_rma_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func registryResponseFromModel(m *models.SerialRegistry) registryResponse {
	return registryResponse{
		ID:              m.ID,
		SerialNumber:    m.SerialNumber,
		Brand:           m.Brand,
		Model:           m.Model,
		InventoryItemID: m.InventoryItemID,
		RmaCount:        m.RmaCount,
		FirstSeenAt:     m.FirstSeenAt,
		LastRmaAt:       m.LastRmaAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type serviceEventResponse struct {
	ID               uuid.UUID              `json:"id"`
	SerialRegistryID uuid.UUID              `json:"serial_registry_id"`
	RmaCaseID        *uuid.UUID             `json:"rma_case_id,omitempty"`
	EventType        enums.ServiceEventType `json:"event_type"`
	Summary          string                 `json:"summary"`
	Notes            *string                `json:"notes,omitempty"`
	Metadata         *types.JSONMap         `json:"metadata,omitempty"`
	CreatedBy        *string                `json:"created_by,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

func serviceEventResponseFromModel(m *models.SerialServiceEvent) serviceEventResponse {
	return serviceEventResponse{
		ID:               m.ID,
		SerialRegistryID: m.SerialRegistryID,
		RmaCaseID:        m.RmaCaseID,
		EventType:        m.EventType,
		Summary:          m.Summary,
		Notes:            m.Notes,
		Metadata:         m.Metadata,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
	}
}

func serviceEventResponses(events []models.SerialServiceEvent) []serviceEventResponse {
	out := make([]serviceEventResponse, 0, len(events))
	for i := range events {
		out = append(out, serviceEventResponseFromModel(&events[i]))
	}
	return out
}
