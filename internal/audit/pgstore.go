package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS tm1monitor_audit (
	id          BIGSERIAL PRIMARY KEY,
	action      TEXT        NOT NULL,
	target      TEXT        NOT NULL,
	actor       TEXT        NOT NULL,
	instance    TEXT        NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

// PgStore 把审计事件写入PostgreSQL
type PgStore struct {
	pool *pgxpool.Pool
}

// Connect 创建连接池并测试连接
func Connect(ctx context.Context, dsn string) (*PgStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// CLI进程生命周期短，连接池保持很小
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Audit store connected")
	return &PgStore{pool: pool}, nil
}

// EnsureSchema 创建审计表
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

// Record 实现Recorder
func (s *PgStore) Record(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tm1monitor_audit (action, target, actor, instance, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		event.Action, event.Target, event.Actor, event.Instance, event.At.UTC())
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近的事件，instance为空时返回所有实例
func (s *PgStore) Recent(ctx context.Context, instance string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT action, target, actor, instance, occurred_at FROM tm1monitor_audit
		 WHERE $1 = '' OR instance = $1
		 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		instance, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		err := row.Scan(&e.Action, &e.Target, &e.Actor, &e.Instance, &e.At)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	return events, nil
}

// Close 关闭连接池
func (s *PgStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
