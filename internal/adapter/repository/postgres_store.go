package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"farmlink/internal/domain/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	farmer_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price NUMERIC(14,2) NOT NULL CHECK (price > 0),
	quantity INT NOT NULL CHECK (quantity >= 0),
	unit TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	buyer_id TEXT NOT NULL,
	product_id TEXT NOT NULL REFERENCES products(id),
	farmer_id TEXT NOT NULL,
	quantity INT NOT NULL CHECK (quantity > 0),
	unit_price NUMERIC(14,2) NOT NULL,
	total_price NUMERIC(14,2) NOT NULL,
	delivery_address TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	payment_reference TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders (buyer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_farmer_idx ON orders (farmer_id, created_at DESC);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	media_url TEXT NOT NULL DEFAULT '',
	product_id TEXT NOT NULL DEFAULT '',
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_receiver_idx ON messages (receiver_id, read);
CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_id, created_at DESC);
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	data JSONB NOT NULL,
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS payment_attempts (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	buyer_id TEXT NOT NULL,
	amount NUMERIC(14,2) NOT NULL,
	currency TEXT NOT NULL,
	payment_method_token TEXT NOT NULL,
	status TEXT NOT NULL,
	retries INT NOT NULL DEFAULT 0,
	reference TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS outbox (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	recipients TEXT[] NOT NULL,
	payload JSONB NOT NULL,
	status TEXT NOT NULL,
	attempts INT NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	sent_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (status, created_at);
`

// OpenPostgres connects and creates the schema if it does not exist yet.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewPostgresRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Products:        NewPostgresProductRepository(db),
		Orders:          NewPostgresOrderRepository(db),
		Messages:        NewPostgresMessageRepository(db),
		Notifications:   NewPostgresNotificationRepository(db),
		Profiles:        NewPostgresProfileRepository(db),
		PaymentAttempts: NewPostgresPaymentAttemptRepository(db),
		Outbox:          NewPostgresOutboxRepository(db),
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// withTx commits when fn returns nil and rolls back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func insertOutbox(ctx context.Context, ex execer, event *entity.OutboxEvent) error {
	if event == nil {
		return nil
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO outbox (id,type,aggregate_id,recipients,payload,status,attempts,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7)`,
		event.ID, string(event.Type), event.AggregateID, pq.Array(event.Recipients), string(event.Payload),
		string(entity.OutboxPending), event.CreatedAt)
	return err
}
