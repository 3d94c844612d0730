package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"posledger/backend/internal/store"
)

//go:embed schema.sql
var schema string

var tracer = otel.Tracer("posledger/backend/internal/store/postgres")

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New opens a connection pool and verifies the database is reachable.
func New(ctx context.Context, databaseURL string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 30
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.isolation", "read_committed")))
	defer span.End()

	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = pgTx.Rollback(context.Background())
			panic(p)
		}
		if err != nil {
			if rbErr := pgTx.Rollback(context.Background()); rbErr != nil {
				s.log.Warn("rollback failed", zap.Error(rbErr))
			}
			span.RecordError(err)
		}
	}()

	if err = fn(&tx{tx: pgTx, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}); err != nil {
		return err
	}
	if err = pgTx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

type tx struct {
	tx pgx.Tx
	sb squirrel.StatementBuilderType
}

func (t *tx) get(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, t.tx, dst, query, args...)
}

func (t *tx) selectRows(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, t.tx, dst, query, args...)
}

func (t *tx) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

// update runs q and reports ErrNotFound when it touched no row.
func (t *tx) update(ctx context.Context, q squirrel.Sqlizer, kind string, id string) error {
	n, err := t.exec(ctx, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", store.ErrNotFound, kind, id)
}

// missing converts a no-rows scan error into ErrNotFound for the named row.
func missing(err error, kind string, id string) error {
	if pgxscan.NotFound(err) {
		return notFound(kind, id)
	}
	return err
}

// translate maps constraint violations onto input errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: duplicate value violates %s", store.ErrInvalidInput, pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("%w: referenced row does not exist (%s)", store.ErrInvalidInput, pgErr.ConstraintName)
	case "23514":
		return fmt.Errorf("%w: check %s failed", store.ErrInvalidInput, pgErr.ConstraintName)
	}
	return err
}

// nullable stores empty references as NULL so foreign keys stay optional.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// optional selects a nullable reference column as an empty string.
func optional(column string) string {
	return fmt.Sprintf("COALESCE(%s, '') AS %s", column, column)
}
