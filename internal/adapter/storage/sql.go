package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.SessionStorage = (*SQLStorage)(nil)

type sqldb interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

// OpenSQLDB opens a pgx backed [sql.DB] and pings it.
func OpenSQLDB(ctx context.Context, dsn string) (*sql.DB, error) {
	const op = "storage.OpenSQLDB"
	log := slog.With("op", op)

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	connStr := stdlib.RegisterConnConfig(connConfig)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: database is unavailable: %w", op, err)
	}
	log.Info("database is available")
	return db, nil
}

type SQLStorage struct {
	sqldb sqldb
	ttl   time.Duration
	now   func() time.Time
}

func NewSQLStorage(db sqldb, ttl time.Duration) SQLStorage {
	return SQLStorage{sqldb: db, ttl: ttlOrDefault(ttl), now: time.Now}
}

func (s SQLStorage) LoadSession(
	ctx context.Context, id string,
) (*domain.Session, error) {
	const op = "SQLStorage.LoadSession"

	query := `
		SELECT data FROM storefront_sessions
		WHERE id = $1 AND expires_at > $2;`

	var data []byte
	err := s.sqldb.QueryRowContext(ctx, query, id, s.now().UTC()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess, err := unmarshalSession(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

func (s SQLStorage) SaveSession(
	ctx context.Context, sess *domain.Session,
) error {
	const op = "SQLStorage.SaveSession"

	data, err := marshalSession(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO storefront_sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at;`

	expiresAt := s.now().UTC().Add(s.ttl)
	if _, err := s.sqldb.ExecContext(ctx, query, sess.ID, data, expiresAt); err != nil {
		return fmt.Errorf("%s: failed to exec: %w", op, err)
	}
	return nil
}

// PurgeExpired deletes expired sessions and reports how many were removed.
func (s SQLStorage) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "SQLStorage.PurgeExpired"

	query := `DELETE FROM storefront_sessions WHERE expires_at <= $1;`

	res, err := s.sqldb.ExecContext(ctx, query, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: failed to exec: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// RunPurger calls [SQLStorage.PurgeExpired] every interval until ctx is
// done.
func (s SQLStorage) RunPurger(ctx context.Context, interval time.Duration) {
	const op = "SQLStorage.RunPurger"
	log := slog.With("op", op)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				log.Error("failed to purge expired sessions", "err", err)
				continue
			}
			log.Debug("expired sessions purged", "n", n)
		}
	}
}

func (s SQLStorage) Close() {
	const op = "SQLStorage.Close"
	log := slog.With("op", op)

	log.Info("closing sql database...")

	if err := s.sqldb.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("sql database is closed")
}
