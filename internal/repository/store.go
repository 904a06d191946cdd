package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store is the gorm-backed persistence layer: spot state, the vehicle
// registry, the session/payment ledger and the gate event audit trail.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

type txKey struct{}

// Transact runs fn inside one database transaction. Store methods
// called with the context fn receives join it; any error rolls the
// whole transaction back.
func (r *Store) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, if any, falling back to
// the root connection.
func (r *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
