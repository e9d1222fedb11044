package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrDuplicateEmail = errors.New("email already exists")

// isUniqueViolation recognises unique-constraint failures from both the
// postgres and sqlite drivers, translated or not.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "sqlstate 23505")
}
