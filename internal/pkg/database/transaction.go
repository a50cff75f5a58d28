package database

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxFunc defines a transaction function
type TxFunc func(ctx context.Context, tx *gorm.DB) error

// Transaction executes a function within a database transaction
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	return db.TransactionWithOptions(ctx, &sql.TxOptions{}, fn)
}

// TransactionWithOptions executes a function within a database transaction with custom options
func (db *DB) TransactionWithOptions(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(ctx, tx); err != nil {
			db.logger.WithContext(ctx).Error("transaction failed, rolling back",
				zap.Error(err),
			)
			return err
		}
		return nil
	}, opts)
}
