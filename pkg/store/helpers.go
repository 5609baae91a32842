package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Generic GORM helpers shared by the entity operation files. They are
// unexported and operate on the raw *gorm.DB so they stay decoupled
// from Store. Each handles context propagation and not-found error
// conversion in one place.

// getByField retrieves a single record of type T by matching field=value.
// It converts gorm.ErrRecordNotFound to the provided notFoundErr for
// consistent domain error mapping.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, mapNotFound(err, notFoundErr)
	}
	return &result, nil
}

// listAll retrieves all records of type T ordered by the given column.
// Returns an empty slice (not nil) on success with no records.
func listAll[T any](db *gorm.DB, ctx context.Context, orderBy string) ([]*T, error) {
	results := []*T{}
	if err := db.WithContext(ctx).Order(orderBy).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// deleteByField deletes records of type T matching field=value.
// When notFoundErr is nil the delete is idempotent; otherwise zero
// affected rows return notFoundErr.
func deleteByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) error {
	var zero T
	result := db.WithContext(ctx).Where(field+" = ?", value).Delete(&zero)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 && notFoundErr != nil {
		return notFoundErr
	}
	return nil
}

// mapNotFound maps gorm.ErrRecordNotFound onto the caller's
// domain sentinel and passes every other error through unchanged.
func mapNotFound(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// isDuplicateKey matches the duplicate-key failures the two
// backends produce. Neither driver exposes a typed error for this, so
// the check has to be textual.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{
		"UNIQUE constraint failed",            // sqlite
		"constraint failed: UNIQUE",           // sqlite, wrapped
		"duplicate key value violates unique", // postgres
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
