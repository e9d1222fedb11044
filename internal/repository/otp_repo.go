package repository

import (
	"context"
	"errors"
	"time"

	"serenity/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OTPRepository interface {
	Create(ctx context.Context, otp *entity.OTP) error
	FindValid(ctx context.Context, email string, code string, purpose entity.OTPPurpose, now time.Time) (*entity.OTP, error)
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteStale(ctx context.Context, email string, purpose entity.OTPPurpose, now time.Time) (int64, error)
	DeleteByEmail(ctx context.Context, email string, purpose entity.OTPPurpose) error
	FindCreatedAfter(ctx context.Context, email string, purpose entity.OTPPurpose, after time.Time) (*entity.OTP, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type otpRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Create(ctx context.Context, otp *entity.OTP) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

func (r *otpRepository) FindValid(
	ctx context.Context,
	email string,
	code string,
	purpose entity.OTPPurpose,
	now time.Time,
) (*entity.OTP, error) {

	var otp entity.OTP
	err := r.db.WithContext(ctx).
		Where(`
			email = ? AND
			code = ? AND
			purpose = ? AND
			used = ? AND
			expires_at > ?
		`, email, code, purpose, false, now).
		Order("created_at DESC").
		First(&otp).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

// MarkUsed flips used only while it is still false, so of two concurrent
// callers exactly one observes true.
func (r *otpRepository) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.OTP{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *otpRepository) DeleteStale(ctx context.Context, email string, purpose entity.OTPPurpose, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("email = ? AND purpose = ? AND (used = ? OR expires_at < ?)", email, purpose, true, now).
		Delete(&entity.OTP{})
	return result.RowsAffected, result.Error
}

func (r *otpRepository) DeleteByEmail(ctx context.Context, email string, purpose entity.OTPPurpose) error {
	return r.db.WithContext(ctx).
		Where("email = ? AND purpose = ?", email, purpose).
		Delete(&entity.OTP{}).
		Error
}

func (r *otpRepository) FindCreatedAfter(
	ctx context.Context,
	email string,
	purpose entity.OTPPurpose,
	after time.Time,
) (*entity.OTP, error) {

	var otp entity.OTP
	err := r.db.WithContext(ctx).
		Where("email = ? AND purpose = ? AND created_at > ?", email, purpose, after).
		Order("created_at DESC").
		First(&otp).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *otpRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.OTP{})
	return result.RowsAffected, result.Error
}
