package repository

import (
	"errors"
	"strings"

	"retailpos/internal/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation detects unique-constraint failures from either the
// translated gorm error or the raw postgres error code.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// sqlite reports constraint failures only in the message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps driver errors onto core error kinds.
func translate(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case IsUniqueViolation(err):
		return errors.Join(apperr.ErrDuplicateIdentifier, err)
	default:
		return apperr.Storage(op, err)
	}
}
