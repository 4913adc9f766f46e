package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the auction participant record. Credentials live with the external
// auth provider; only the fields the engine reads are mapped here.
type User struct {
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname  string         `gorm:"column:fullname;not null" json:"fullname"`
	Email     string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Role      string         `gorm:"column:role;not null;default:bidder" json:"role"`
	Approved  bool           `gorm:"column:approved;not null" json:"approved"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
