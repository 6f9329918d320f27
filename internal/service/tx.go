package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated identity attached to every request by the JWT
// middleware. The core never authenticates — it only authorizes Rol against
// policy role sets and enforces segregation of duties on ID.
type Actor struct {
	ID  uuid.UUID
	Rol string
}

// runTx executes fn inside a GORM transaction when db is available, or calls
// fn(nil) directly when db is nil (unit test mode with in-memory repos).
// Every state transition runs through here: re-read state under lock,
// validate the transition, write the new state and any balance mutation
// together, so racing requests can never produce a lost update.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
