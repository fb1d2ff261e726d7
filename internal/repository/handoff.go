package repository

import (
	"context"
	"errors"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/model"
	"time"

	"gorm.io/gorm"
)

// ErrStaleHandoff means the conditional update matched no row: another
// request changed the record since it was read.
var ErrStaleHandoff = errors.New("handoff record changed concurrently")

// updateHandoff writes next onto the row identified by id only if its
// handoff_version still equals version. This is the compare-and-set every
// confirmation mutation goes through.
func updateHandoff(ctx context.Context, db *gorm.DB, row interface{}, id string, version int64, next handoff.State) error {
	cols := model.HandoffColumns(next)
	cols["handoff_version"] = gorm.Expr("handoff_version + 1")
	cols["updated_at"] = time.Now().UTC()

	result := db.WithContext(ctx).
		Model(row).
		Where("id = ? AND handoff_version = ?", id, version).
		Updates(cols)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleHandoff
	}
	return nil
}
