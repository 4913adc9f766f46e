package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Car belongs to exactly one Lot. The bidding window mirrors the lot's for
// query convenience and may diverge when a car is re-enabled on its own.
type Car struct {
	CarID            uuid.UUID  `gorm:"column:car_id;type:uuid;primaryKey" json:"id"`
	LotID            uuid.UUID  `gorm:"column:lot_id;type:uuid;not null;index" json:"lot_id"`
	Make             string     `gorm:"column:make" json:"make"`
	Model            string     `gorm:"column:model" json:"model"`
	Year             int        `gorm:"column:year" json:"year"`
	VIN              string     `gorm:"column:vin" json:"vin"`
	BiddingStartDate *time.Time `gorm:"column:bidding_start_date" json:"bidding_start_date"`
	BiddingEndDate   *time.Time `gorm:"column:bidding_end_date" json:"bidding_end_date"`
	BiddingEnabled   bool       `gorm:"column:bidding_enabled;not null" json:"bidding_enabled"`
	Status           CarStatus  `gorm:"column:status;type:varchar(20);not null" json:"status"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Car) TableName() string {
	return "Cars"
}

func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.CarID == uuid.Nil {
		c.CarID = uuid.New()
	}
	return nil
}
