// Package storage defines the credential store contract shared by the
// embedded sqlite backend and the networked postgres backend. The backend is
// chosen once at startup; callers only ever see the Store interface.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no credential matches.
var ErrNotFound = errors.New("storage: credential not found")

// ErrConflict is returned when an insert or rename violates a uniqueness
// constraint on name or secret.
var ErrConflict = errors.New("storage: uniqueness conflict")

// Credential is a named TOTP secret owned by a Telegram user.
//
// Name and Secret are unique across the whole store, not per owner. The
// global name scope matches the reference behaviour this bot replaces; see
// DESIGN.md before "fixing" it.
type Credential struct {
	ID        int64     `db:"id"`
	OwnerID   int64     `db:"owner_id"`
	Name      string    `db:"name"`
	Secret    string    `db:"secret"`
	CreatedAt time.Time `db:"created_at"`
}

// Store persists credentials. Implementations map driver-specific constraint
// violations to ErrConflict and absent rows to ErrNotFound.
type Store interface {
	// FindByName looks a credential up by name across all owners.
	FindByName(ctx context.Context, name string) (*Credential, error)
	// FindByOwnerNameSecret looks up the exact (owner, name, secret) triple.
	FindByOwnerNameSecret(ctx context.Context, ownerID int64, name, secret string) (*Credential, error)
	// FindBySecret looks a credential up by secret value across all owners.
	FindBySecret(ctx context.Context, secret string) (*Credential, error)
	// ListByOwner returns the owner's credentials in insertion order.
	ListByOwner(ctx context.Context, ownerID int64) ([]Credential, error)
	// FindByOwnerName looks a credential up by owner and name.
	FindByOwnerName(ctx context.Context, ownerID int64, name string) (*Credential, error)
	// Insert persists a new credential. CreatedAt is set by the store.
	Insert(ctx context.Context, cred *Credential) error
	// UpdateName renames the owner's credential. Renaming an absent
	// credential is not an error.
	UpdateName(ctx context.Context, ownerID int64, oldName, newName string) error
	// Delete removes the owner's credential. Deleting an absent credential
	// is not an error.
	Delete(ctx context.Context, ownerID int64, name string) error
	// Close releases the underlying connections.
	Close() error
}
