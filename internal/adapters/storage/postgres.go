package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/athebyme/listing-publisher/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage реализация Port для PostgreSQL
type Storage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage создает пул соединений и проверяет доступность базы
func NewPostgresStorage(ctx context.Context, connectionString string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresStorageWithPool(ctx, pool)
}

func NewPostgresStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*Storage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Storage{pool: pool}, nil
}

var (
	_ Port                   = (*Storage)(nil)
	_ interfaces.StoragePort = (*Storage)(nil)
)

// Pool пул соединений для менеджера транзакций
func (r *Storage) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Storage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (r *Storage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// getExecutor возвращает транзакцию из контекста или пул
func (r *Storage) getExecutor(ctx context.Context) executor {
	if txFromCtx, ok := ctx.Value(tx.GetKey()).(pgx.Tx); ok {
		return txFromCtx
	}
	return r.pool
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
