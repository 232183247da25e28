package kv

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/pkg/errors"
	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the durable key-value persistence backing the cache and the
// sync queue. Single-key writes are atomic upserts; there are no
// multi-key transactions, which both services are designed around.
type Store struct {
	log     zerolog.Logger
	handler *sql.DB
	builder sq.StatementBuilderType

	Driver string
	DSN    string
}

func NewStore(cfg *domain.Config, log logger.Logger) (*Store, error) {
	s := &Store{
		log:     log.With().Str("module", "kv").Logger(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	switch cfg.Database.Type {
	case "sqlite":
		s.Driver = "sqlite"
		s.DSN = dataSourceName(cfg.ConfigPath, "agrisync.db")
	case "postgres", "postgresql":
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Port == 0 || cfg.Database.Postgres.Database == "" {
			return nil, errors.New("postgres configuration is incomplete")
		}
		s.DSN = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Postgres.Host, cfg.Database.Postgres.Port, cfg.Database.Postgres.User,
			cfg.Database.Postgres.Pass, cfg.Database.Postgres.Database, cfg.Database.Postgres.SslMode)
		s.Driver = "postgres"
		s.builder = s.builder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, errors.New("unsupported database type: %v", cfg.Database.Type)
	}

	return s, nil
}

func (s *Store) Open() error {
	if s.DSN == "" {
		return errors.New("database DSN is required but not configured")
	}

	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return errors.Wrap(err, "could not open %s database", s.Driver)
	}
	s.handler = db

	schema := sqliteSchema
	if s.Driver == "postgres" {
		schema = postgresSchema
	} else {
		// serialize writers; the services already funnel writes through
		// their own mutexes but sqlite needs this for mixed readers
		s.handler.SetMaxOpenConns(1)
		if _, err := s.handler.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			s.log.Warn().Err(err).Msg("could not enable WAL mode")
		}
	}

	if _, err := s.handler.Exec(schema); err != nil {
		return errors.Wrap(err, "could not create kv_entries table")
	}

	s.log.Info().Str("driver", s.Driver).Msg("key-value store opened")
	return nil
}

func (s *Store) Close() error {
	if s.handler == nil {
		return nil
	}
	return s.handler.Close()
}

func (s *Store) Ping() error {
	if s.handler == nil {
		return errors.New("kv store is not open")
	}
	return s.handler.Ping()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := s.builder.
		Select("value").
		From("kv_entries").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "could not build get query")
	}

	var value []byte
	err = s.handler.QueryRowContext(ctx, query, args...).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not get key %q", key)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := s.builder.
		Insert("kv_entries").
		Columns("key", "value", "updated_at").
		Values(key, value, sq.Expr("CURRENT_TIMESTAMP")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "could not build set query")
	}

	if _, err := s.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "could not set key %q", key)
	}

	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	query, args, err := s.builder.
		Delete("kv_entries").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "could not build remove query")
	}

	if _, err := s.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "could not remove key %q", key)
	}

	return nil
}

func (s *Store) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := s.builder.
		Delete("kv_entries").
		Where(sq.Eq{"key": keys}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "could not build remove query")
	}

	if _, err := s.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "could not remove %d keys", len(keys))
	}

	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	builder := s.builder.
		Select("key").
		From("kv_entries").
		OrderBy("key ASC")
	if prefix != "" {
		builder = builder.Where(sq.Like{"key": prefix + "%"})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "could not build keys query")
	}

	rows, err := s.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not list keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "could not scan key")
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

var _ domain.KVStore = (*Store)(nil)
