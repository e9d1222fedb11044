package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OTPPurpose string

const (
	OTPPurposeRegistration OTPPurpose = "REGISTRATION"
)

// OTP is a one-time email passcode. UserID is informational only: the owner
// is identified by Email, which may not belong to a user yet.
type OTP struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code    string     `gorm:"type:varchar(6);not null"`
	Email   string     `gorm:"type:varchar(255);not null;index:idx_otps_email_purpose"`
	UserID  *uuid.UUID `gorm:"type:uuid;index"`
	Purpose OTPPurpose `gorm:"type:varchar(32);not null;index:idx_otps_email_purpose"`

	ExpiresAt time.Time `gorm:"not null;index"`
	Used      bool      `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
}

func (OTP) TableName() string {
	return "otps"
}

func (o *OTP) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
