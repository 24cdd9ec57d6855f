package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/pkg/enums"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

// SerialServiceEvent is an immutable timeline entry attached to a serial
// registry row. RmaCaseID records provenance and is nil for events that did
// not originate from a case.
type SerialServiceEvent struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SerialRegistryID uuid.UUID              `gorm:"column:serial_registry_id;type:uuid;not null;index:idx_serial_service_events_registry"`
	RmaCaseID        *uuid.UUID             `gorm:"column:rma_case_id;type:uuid"`
	EventType        enums.ServiceEventType `gorm:"column:event_type;type:service_event_type;not null"`
	Summary          string                 `gorm:"column:summary;not null"`
	Notes            *string                `gorm:"column:notes"`
	Metadata         *types.JSONMap         `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedBy        *string                `gorm:"column:created_by"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
}
