package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/otpbot/internal/storage"
)

// setupTestStore creates a named shared in-memory database so every
// connection in the pool sees the same data. The name is derived from
// t.Name() to isolate parallel tests.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	safeName := url.PathEscape(t.Name())
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		safeName,
	)

	db, err := sqlx.Connect("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	store, err := OpenDB(db)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInsertAndLookups(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cred := &storage.Credential{OwnerID: 7, Name: "work", Secret: "JBSWY3DPEHPK3PXP"}
	require.NoError(t, store.Insert(ctx, cred))
	assert.NotZero(t, cred.ID)
	assert.False(t, cred.CreatedAt.IsZero())

	byName, err := store.FindByName(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, int64(7), byName.OwnerID)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", byName.Secret)

	bySecret, err := store.FindBySecret(ctx, "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Equal(t, "work", bySecret.Name)

	byOwnerName, err := store.FindByOwnerName(ctx, 7, "work")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, byOwnerName.ID)

	triple, err := store.FindByOwnerNameSecret(ctx, 7, "work", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, triple.ID)
}

func TestLookupsMissing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.FindByName(ctx, "nosuch")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.FindBySecret(ctx, "nosuch")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.FindByOwnerName(ctx, 1, "nosuch")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.FindByOwnerNameSecret(ctx, 1, "nosuch", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNameUniqueAcrossOwners(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 1, Name: "work", Secret: "AAA111"}))

	err := store.Insert(ctx, &storage.Credential{OwnerID: 2, Name: "work", Secret: "BBB222"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestSecretUniqueAcrossOwners(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 1, Name: "a", Secret: "SAME"}))

	err := store.Insert(ctx, &storage.Credential{OwnerID: 2, Name: "b", Secret: "SAME"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestListByOwnerInsertionOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 5, Name: "zeta", Secret: "S1"}))
	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 5, Name: "alpha", Secret: "S2"}))
	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 6, Name: "other", Secret: "S3"}))

	creds, err := store.ListByOwner(ctx, 5)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "zeta", creds[0].Name)
	assert.Equal(t, "alpha", creds[1].Name)
}

func TestUpdateName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 3, Name: "old", Secret: "SEC"}))
	require.NoError(t, store.UpdateName(ctx, 3, "old", "new"))

	_, err := store.FindByOwnerName(ctx, 3, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.FindByOwnerName(ctx, 3, "new")
	require.NoError(t, err)
	assert.Equal(t, "SEC", got.Secret)

	// renaming an absent credential is not an error
	assert.NoError(t, store.UpdateName(ctx, 3, "ghost", "phantom"))
}

func TestUpdateNameConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 3, Name: "one", Secret: "S1"}))
	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 3, Name: "two", Secret: "S2"}))

	err := store.UpdateName(ctx, 3, "one", "two")
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 4, Name: "gone", Secret: "SEC"}))
	require.NoError(t, store.Delete(ctx, 4, "gone"))

	_, err := store.FindByOwnerName(ctx, 4, "gone")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// deleting an absent credential is not an error
	assert.NoError(t, store.Delete(ctx, 4, "gone"))
}

func TestDeleteScopedToOwner(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 1, Name: "mine", Secret: "SEC"}))
	require.NoError(t, store.Delete(ctx, 2, "mine"))

	_, err := store.FindByOwnerName(ctx, 1, "mine")
	assert.NoError(t, err)
}

func TestConflictIsNotNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Credential{OwnerID: 1, Name: "n", Secret: "S"}))
	err := store.Insert(ctx, &storage.Credential{OwnerID: 1, Name: "n", Secret: "S2"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
}
