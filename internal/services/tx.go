package services

import (
	"context"

	"gorm.io/gorm"
)

// runInTx executes fn inside a database transaction. Without a handle the
// steps run directly against whatever the repos were built on.
func runInTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
