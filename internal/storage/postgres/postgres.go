// Package postgres implements the credential store on a networked relational
// database, mirroring the sqlite backend behind the same contract.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"log/slog"

	"github.com/m3rciful/otpbot/internal/logger"
	"github.com/m3rciful/otpbot/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// Config holds networked store connection settings.
type Config struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
}

// Store is the postgres-backed storage.Store implementation.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database, configures the pool, verifies connectivity,
// and applies migrations.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("backend", "postgres"),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", cfg.Name),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("backend", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("backend", "postgres"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.String("backend", "postgres"),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	return nil
}

// FindByName looks a credential up by name across all owners.
func (s *Store) FindByName(ctx context.Context, name string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials WHERE name = $1`, name)
	return wrapGet(&cred, err)
}

// FindByOwnerNameSecret looks up the exact (owner, name, secret) triple.
func (s *Store) FindByOwnerNameSecret(ctx context.Context, ownerID int64, name, secret string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials
		 WHERE owner_id = $1 AND name = $2 AND secret = $3`, ownerID, name, secret)
	return wrapGet(&cred, err)
}

// FindBySecret looks a credential up by secret value across all owners.
func (s *Store) FindBySecret(ctx context.Context, secret string) (*storage.Credential, error) {
	var cred storage.Credential
	err := s.db.GetContext(ctx, &cred,
		`SELECT id, owner_id, name, secret, created_at FROM credentials WHERE secret = $1`, secret)
	return wrapGet(&cred, err)
}

// ListByOwner returns the owner's credentials in insertion order.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]storage.Credential, error) {
	var creds []storage.Credential
	err := s.db.SelectContext(ctx, &creds,
		`SELECT id, owner_id, name, secret, created_at FROM credentials
		 WHERE owner_id = $1 ORDER BY id`, ownerID)
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
		 WHERE owner_id = $1 AND name = $2`, ownerID, name)
	return wrapGet(&cred, err)
}

// Insert persists a new credential, setting CreatedAt.
func (s *Store) Insert(ctx context.Context, cred *storage.Credential) error {
	cred.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO credentials (owner_id, name, secret, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		cred.OwnerID, cred.Name, cred.Secret, cred.CreatedAt).Scan(&cred.ID)
	if err != nil {
		return wrapExec("insert credential", err)
	}
	return nil
}

// UpdateName renames the owner's credential.
func (s *Store) UpdateName(ctx context.Context, ownerID int64, oldName, newName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET name = $1 WHERE owner_id = $2 AND name = $3`,
		newName, ownerID, oldName)
	if err != nil {
		return wrapExec("rename credential", err)
	}
	return nil
}

// Delete removes the owner's credential.
func (s *Store) Delete(ctx context.Context, ownerID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE owner_id = $1 AND name = $2`, ownerID, name)
	if err != nil {
		return wrapExec("delete credential", err)
	}
	return nil
}

// Close releases the underlying connections.
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
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
