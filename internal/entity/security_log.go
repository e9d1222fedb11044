package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SecurityAction string

const (
	Registered              SecurityAction = "registered"
	RegistrationCompensated SecurityAction = "registration_compensated"
	EmailVerified           SecurityAction = "email_verified"
	OTPResent               SecurityAction = "otp_resent"
	LoginSuccess            SecurityAction = "login_success"
	LoginFailed             SecurityAction = "login_failed"
	LoginUnverified         SecurityAction = "login_unverified"
	Logout                  SecurityAction = "logout"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(32);not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

func (SecurityLog) TableName() string {
	return "security_logs"
}

func (l *SecurityLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{&User{}, &OTP{}, &Session{}, &SecurityLog{}}
}
