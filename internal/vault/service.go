// Package vault holds the credential business rules: name and secret
// validation, lookups, renames and deletions over a storage.Store. All
// user-facing wording lives in the bot layer; this package only reports
// typed errors.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/otpbot/internal/logger"
	"github.com/m3rciful/otpbot/internal/storage"
	"github.com/m3rciful/otpbot/internal/totp"
)

var (
	// ErrEmptyName rejects blank credential names.
	ErrEmptyName = errors.New("vault: empty name")
	// ErrNameTaken means the requested name is already in use.
	ErrNameTaken = errors.New("vault: name already in use")
	// ErrSecretInUse means another credential already stores this secret.
	ErrSecretInUse = errors.New("vault: secret already in use")
	// ErrBadSecret means the stored secret cannot produce a code.
	ErrBadSecret = errors.New("vault: secret is not a valid TOTP seed")
)

// Service implements the credential operations behind the chat commands.
type Service struct {
	store storage.Store
}

func New(store storage.Store) *Service {
	return &Service{store: store}
}

// CheckName validates a proposed credential name. Names are unique across
// all owners, matching the reference data model.
func (s *Service) CheckName(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	_, err := s.store.FindByName(ctx, name)
	switch {
	case err == nil:
		return ErrNameTaken
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check name: %w", err)
	}
}

// Save persists a new credential after the uniqueness checks. A duplicate
// secret yields ErrSecretInUse so the caller can ask for a different one.
func (s *Service) Save(ctx context.Context, ownerID int64, name, secret string) error {
	// The exact row should be unreachable here given the name check at
	// the previous step; a hit means the store changed underneath us.
	if _, err := s.store.FindByOwnerNameSecret(ctx, ownerID, name, secret); err == nil {
		logger.SVCVault.Warn("duplicate credential row", "key_name", logger.Sanitize(name))
		return fmt.Errorf("save: credential already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("save: %w", err)
	}

	_, err := s.store.FindBySecret(ctx, secret)
	switch {
	case err == nil:
		return ErrSecretInUse
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("save: %w", err)
	}

	cred := &storage.Credential{OwnerID: ownerID, Name: name, Secret: secret}
	if err := s.store.Insert(ctx, cred); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Lost a race with a concurrent insert of the same secret or name.
			return ErrSecretInUse
		}
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Generate produces the current TOTP code for the owner's named credential.
// Missing credentials surface storage.ErrNotFound; undecodable secrets
// surface ErrBadSecret.
func (s *Service) Generate(ctx context.Context, ownerID int64, name string) (string, error) {
	cred, err := s.store.FindByOwnerName(ctx, ownerID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("generate: %w", err)
	}

	code, err := totp.Generate(cred.Secret)
	if err != nil {
		logger.SVCVault.Warn("secret rejected by generator",
			"key_name", logger.Sanitize(name), "err", err)
		return "", ErrBadSecret
	}
	return code, nil
}

// ListNames returns the owner's credential names in insertion order.
func (s *Service) ListNames(ctx context.Context, ownerID int64) ([]string, error) {
	creds, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	names := make([]string, 0, len(creds))
	for _, c := range creds {
		names = append(names, c.Name)
	}
	return names, nil
}

// Rename changes a credential's name. The new name must not collide with
// another credential of the same owner.
func (s *Service) Rename(ctx context.Context, ownerID int64, oldName, newName string) error {
	if newName == "" {
		return ErrEmptyName
	}
	_, err := s.store.FindByOwnerName(ctx, ownerID, newName)
	switch {
	case err == nil:
		return ErrNameTaken
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("rename: %w", err)
	}

	if err := s.store.UpdateName(ctx, ownerID, oldName, newName); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrNameTaken
		}
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Delete removes the owner's credential. Deleting an absent name is not an
// error, matching the reference behavior.
func (s *Service) Delete(ctx context.Context, ownerID int64, name string) error {
	if err := s.store.Delete(ctx, ownerID, name); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
