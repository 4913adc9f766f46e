package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lot is a batch of cars opened for bidding as a unit.
// Status is a cache of the lifecycle resolver's output, never a source of truth.
type Lot struct {
	LotID            uuid.UUID  `gorm:"column:lot_id;type:uuid;primaryKey" json:"id"`
	LotNumber        string     `gorm:"column:lot_number;not null;uniqueIndex" json:"lot_number"`
	Approved         bool       `gorm:"column:approved;not null" json:"approved"`
	EarlyClosed      bool       `gorm:"column:early_closed;not null" json:"early_closed"`
	EarlyCloseReason *string    `gorm:"column:early_close_reason" json:"early_close_reason,omitempty"`
	BiddingStartDate *time.Time `gorm:"column:bidding_start_date" json:"bidding_start_date"`
	BiddingEndDate   *time.Time `gorm:"column:bidding_end_date" json:"bidding_end_date"`
	Status           LotStatus  `gorm:"column:status;type:varchar(20);not null" json:"status"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Cars []Car `gorm:"foreignKey:LotID;references:LotID;constraint:OnDelete:CASCADE" json:"cars,omitempty"`
}

func (Lot) TableName() string {
	return "Lots"
}

// BeforeCreate sets lot_id if not already set (DBs without default uuid).
func (l *Lot) BeforeCreate(tx *gorm.DB) error {
	if l.LotID == uuid.Nil {
		l.LotID = uuid.New()
	}
	return nil
}
