// Package sqlite implements the credential store on an embedded file-based
// database. A single writer connection with WAL mode avoids "database is
// locked" errors under concurrent chats.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"log/slog"
	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/m3rciful/otpbot/internal/logger"
	"github.com/m3rciful/otpbot/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	// modernc's driver is unknown to sqlx; teach it the bindvar style.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds embedded store settings.
type Config struct {
	Path string
}

// Store is the sqlite-backed storage.Store implementation.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database file, applies pragmas and migrations,
// and returns a ready store.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("backend", "sqlite"),
			slog.String("path", cfg.Path),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("sqlite connect: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("backend", "sqlite"),
		slog.String("path", cfg.Path),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return &Store{db: db}, nil
}

// OpenDB wraps an existing connection and applies migrations. Used by tests
// with in-memory databases.
func OpenDB(db *sqlx.DB) (*Store, error) {
	if err := runMigrations(db.DB); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("backend", "sqlite"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.String("backend", "sqlite"),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	return nil
}

// FindByName looks a credential up by name across all owners.
func (s *Store) FindByName(ctx context.Context, name string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials WHERE name = ?`, name)
	return wrapGet(&cred, err)
}

// FindByOwnerNameSecret looks up the exact (owner, name, secret) triple.
func (s *Store) FindByOwnerNameSecret(ctx context.Context, ownerID int64, name, secret string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials
		 WHERE owner_id = ? AND name = ? AND secret = ?`, ownerID, name, secret)
	return wrapGet(&cred, err)
}

// FindBySecret looks a credential up by secret value across all owners.
func (s *Store) FindBySecret(ctx context.Context, secret string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials WHERE secret = ?`, secret)
	return wrapGet(&cred, err)
}

// ListByOwner returns the owner's credentials in insertion order.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]storage.Credential, error) {
	var creds []storage.Credential
	err := s.db.SelectContext(ctx, &creds,
		`SELECT id, owner_id, name, secret, created_at FROM credentials
		 WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

// FindByOwnerName looks a credential up by owner and name.
func (s *Store) FindByOwnerName(ctx context.Context, ownerID int64, name string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials
		 WHERE owner_id = ? AND name = ?`, ownerID, name)
	return wrapGet(&cred, err)
}

// Insert persists a new credential, setting CreatedAt.
func (s *Store) Insert(ctx context.Context, cred *storage.Credential) error {
	cred.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (owner_id, name, secret, created_at) VALUES (?, ?, ?, ?)`,
		cred.OwnerID, cred.Name, cred.Secret, cred.CreatedAt)
	if err != nil {
		return wrapExec("insert credential", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		cred.ID = id
	}
	return nil
}

// UpdateName renames the owner's credential.
func (s *Store) UpdateName(ctx context.Context, ownerID int64, oldName, newName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET name = ? WHERE owner_id = ? AND name = ?`,
		newName, ownerID, oldName)
	if err != nil {
		return wrapExec("rename credential", err)
	}
	return nil
}

// Delete removes the owner's credential.
func (s *Store) Delete(ctx context.Context, ownerID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE owner_id = ? AND name = ?`, ownerID, name)
	if err != nil {
		return wrapExec("delete credential", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func wrapGet(cred *storage.Credential, err error) (*storage.Credential, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query credential: %w", err)
	}
	return cred, nil
}

func wrapExec(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT,
		sqlite3lib.SQLITE_CONSTRAINT_UNIQUE,
		sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
