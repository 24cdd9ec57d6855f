package serials

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

// NormalizeSerial canonicalizes raw serial input: trim plus uppercase.
func NormalizeSerial(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// UpsertInput describes one registry touch.
type UpsertInput struct {
	SerialNumber    string
	Brand           *string
	Model           *string
	InventoryItemID *uuid.UUID
	// TouchedAt defaults to now when zero.
	TouchedAt time.Time
}

// AppendEventInput describes one timeline entry.
type AppendEventInput struct {
	RegistryID uuid.UUID
	RmaCaseID  *uuid.UUID
	EventType  enums.ServiceEventType
	Summary    string
	Notes      *string
	Metadata   *types.JSONMap
	CreatedBy  *string
}

// History is the registry row plus its event list ordered newest-first.
type History struct {
	Registry models.SerialRegistry       `json:"registry"`
	Events   []models.SerialServiceEvent `json:"events"`
}
