package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies the server answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	slog.Info("connected to postgres")
	return pool, nil
}

// EnsureSchema creates the tables and indexes the store needs. Every
// statement is idempotent so it runs on each boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, step := range schema {
		if _, err := pool.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("ensure %s: %w", step.name, err)
		}
	}
	slog.Info("database schema ensured", "steps", len(schema))
	return nil
}

var schema = []struct {
	name string
	sql  string
}{
	{"users", `
        CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            surname TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('WORKER','CUSTOMER','ADMIN')),
            balance BIGINT NOT NULL DEFAULT 0,
            rating DOUBLE PRECISION NOT NULL DEFAULT 0,
            rating_count INTEGER NOT NULL DEFAULT 0,
            skills TEXT[] NOT NULL DEFAULT '{}',
            hourly_rate BIGINT NOT NULL DEFAULT 0,
            completed_jobs INTEGER NOT NULL DEFAULT 0,
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            lat DOUBLE PRECISION NULL,
            lng DOUBLE PRECISION NULL,
            avatar_url TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            is_banned BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);`},
	{"orders", `
        CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL REFERENCES users(id),
            worker_id TEXT NULL REFERENCES users(id),
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            price BIGINT NOT NULL CHECK (price > 0),
            location TEXT NOT NULL DEFAULT '',
            lat DOUBLE PRECISION NULL,
            lng DOUBLE PRECISION NULL,
            status TEXT NOT NULL CHECK (status IN ('PENDING','ACCEPTED','IN_PROGRESS','COMPLETED','CANCELLED')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            accepted_at TIMESTAMPTZ NULL,
            started_at TIMESTAMPTZ NULL,
            completed_at TIMESTAMPTZ NULL,
            cancelled_at TIMESTAMPTZ NULL,
            review_rating INTEGER NULL CHECK (review_rating BETWEEN 1 AND 5),
            review_comment TEXT NULL,
            review_created_at TIMESTAMPTZ NULL
        );
        CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
        CREATE INDEX IF NOT EXISTS idx_orders_worker ON orders(worker_id);
        CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`},
	{"chats", `
        CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            user_a TEXT NOT NULL REFERENCES users(id),
            user_b TEXT NOT NULL REFERENCES users(id),
            pair_key TEXT NOT NULL UNIQUE,
            last_message JSONB NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_chats_user_a ON chats(user_a);
        CREATE INDEX IF NOT EXISTS idx_chats_user_b ON chats(user_b);`},
	{"messages", `
        CREATE TABLE IF NOT EXISTS messages (
            seq BIGSERIAL,
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL REFERENCES users(id),
            content JSONB NOT NULL,
            attachments JSONB NOT NULL DEFAULT '[]',
            status TEXT NOT NULL DEFAULT 'SENT' CHECK (status IN ('SENT','DELIVERED','READ')),
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at, seq);`},
	{"notifications", `
        CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL CHECK (type IN ('ORDER','PAYMENT','MESSAGE','SYSTEM')),
            title TEXT NOT NULL,
            message TEXT NOT NULL DEFAULT '',
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            related_id TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE is_read = FALSE;`},
	{"ledger", `
        CREATE TABLE IF NOT EXISTS ledger (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            order_id TEXT NOT NULL REFERENCES orders(id),
            kind TEXT NOT NULL CHECK (kind IN ('SETTLEMENT_CREDIT','COMMISSION')),
            amount BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger(user_id, created_at);
        CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_order_kind ON ledger(order_id, kind);`},
}
