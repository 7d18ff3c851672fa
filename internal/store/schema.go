package store

import (
	"context"
	"fmt"
)

// schema bootstraps a fresh database. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    onyen           TEXT PRIMARY KEY,
    role            TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user', 'volunteer', 'disabled')),
    pid             TEXT,
    email           TEXT,
    first_item_date TIMESTAMPTZ,
    items_received  INTEGER NOT NULL DEFAULT 0,
    system          BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS items (
    id       UUID PRIMARY KEY,
    name     TEXT NOT NULL,
    category TEXT NOT NULL CHECK (category IN ('shirt', 'pant', 'shoe', 'suit')),
    gender   TEXT NOT NULL,
    image    TEXT,
    brand    TEXT,
    color    TEXT NOT NULL,
    count    INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
    UNIQUE (id, category)
);

CREATE TABLE IF NOT EXISTS item_sizes (
    item_id  UUID PRIMARY KEY,
    category TEXT NOT NULL,
    size     TEXT,
    waist    INTEGER,
    length   INTEGER,
    chest    INTEGER,
    sleeve   INTEGER,
    FOREIGN KEY (item_id, category) REFERENCES items (id, category) ON DELETE CASCADE,
    CHECK (
        (category IN ('shirt', 'shoe') AND size IS NOT NULL) OR
        (category = 'pant' AND waist IS NOT NULL AND length IS NOT NULL) OR
        (category = 'suit' AND chest IS NOT NULL AND sleeve IS NOT NULL)
    )
);

CREATE TABLE IF NOT EXISTS orders (
    id         UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
    id          BIGSERIAL PRIMARY KEY,
    order_id    UUID NOT NULL REFERENCES orders (id),
    item_id     UUID NOT NULL REFERENCES items (id),
    item_name   TEXT NOT NULL,
    count       INTEGER NOT NULL,
    onyen       TEXT NOT NULL,
    actor       TEXT NOT NULL CHECK (actor IN ('staff', 'order')),
    staff_onyen TEXT,
    status      TEXT NOT NULL CHECK (status IN ('complete', 'pending', 'inUse', 'late', 'cancelled')),
    return_date TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transactions_actor_status ON transactions (actor, status);
CREATE INDEX IF NOT EXISTS idx_transactions_onyen ON transactions (onyen);

CREATE TABLE IF NOT EXISTS processed_events (
    event_id     TEXT PRIMARY KEY,
    event_type   TEXT NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_audit (
    event_id    TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    order_id    TEXT NOT NULL,
    onyen       TEXT NOT NULL,
    staff_onyen TEXT,
    units       INTEGER NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL
);

INSERT INTO users (onyen, role, system) VALUES ('ORDER', 'admin', TRUE)
    ON CONFLICT (onyen) DO NOTHING;
`

// Migrate creates the schema and seeds the system user.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
