package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bid is one amount offered by a bidder for a car. Several rows may exist per
// (car, bidder); only the highest is effective.
type Bid struct {
	BidID     uuid.UUID       `gorm:"column:bid_id;type:uuid;primaryKey" json:"id"`
	CarID     uuid.UUID       `gorm:"column:car_id;type:uuid;not null;index" json:"car_id"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	IsWinner  bool            `gorm:"column:is_winner;not null" json:"is_winner"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Bid) TableName() string {
	return "Bids"
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.BidID == uuid.Nil {
		b.BidID = uuid.New()
	}
	return nil
}
