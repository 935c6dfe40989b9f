package repository

import (
	"errors"
	"fmt"
	"strings"

	"shopify-order-sync/internal/apperror"

	"gorm.io/gorm"
)

// translateErr maps driver errors onto apperror codes.
func translateErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.Wrap(apperror.CodeNotFound, err, format, args...)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return apperror.Wrap(apperror.CodeDuplicate, err, format, args...)
	}
	return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", err)
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func conflict(kind, name string, version int) error {
	return apperror.New(apperror.CodeConflict, "%s %s changed since version %d", kind, name, version)
}
