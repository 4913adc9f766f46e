package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lot audit event types.
const (
	EventImported       = "IMPORTED"
	EventApproved       = "APPROVED"
	EventRescheduled    = "RESCHEDULED"
	EventEarlyClosed    = "EARLY_CLOSED"
	EventRenumbered     = "RENUMBERED"
	EventStatusChanged  = "STATUS_CHANGED"
	EventCarBidding     = "CAR_BIDDING"
	EventWinnerSet      = "WINNER_SET"
	EventWinnerCleared  = "WINNER_CLEARED"
	EventCascadePartial = "CASCADE_PARTIAL"
)

type LotEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	LotID     uuid.UUID      `gorm:"column:lot_id;type:uuid;not null;index" json:"lot_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (LotEvent) TableName() string {
	return "LotEvents"
}

func (le *LotEvent) BeforeCreate(tx *gorm.DB) error {
	if le.EventID == uuid.Nil {
		le.EventID = uuid.New()
	}
	return nil
}
