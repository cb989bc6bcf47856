package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: users and pools must be created before the tables that
// reference them.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    stripe_customer_id TEXT NOT NULL DEFAULT '',
    stripe_account_id TEXT NOT NULL DEFAULT '',
    payouts_enabled INTEGER NOT NULL DEFAULT 0,
    details_submitted INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pools (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    contribution_amount INTEGER NOT NULL,
    current_round INTEGER NOT NULL,
    total_amount INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_members (
    pool_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    position INTEGER NOT NULL,
    status TEXT NOT NULL,
    payout_received INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (pool_id, user_id),
    UNIQUE (pool_id, position),
    FOREIGN KEY (pool_id) REFERENCES pools(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pool_transactions (
    id TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    member_name TEXT NOT NULL,
    type TEXT NOT NULL,
    amount INTEGER NOT NULL,
    round INTEGER NOT NULL,
    status TEXT NOT NULL,
    payment_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (pool_id) REFERENCES pools(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payments (
    payment_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    pool_id TEXT NOT NULL DEFAULT '',
    amount INTEGER NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    stripe_payment_intent_id TEXT NOT NULL DEFAULT '',
    stripe_transfer_id TEXT NOT NULL DEFAULT '',
    round INTEGER NOT NULL DEFAULT 0,
    release_date INTEGER NOT NULL DEFAULT 0,
    released_by TEXT NOT NULL DEFAULT '',
    released_at INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    pool_id TEXT NOT NULL DEFAULT '',
    payment_id TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    success INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    key_id TEXT PRIMARY KEY,
    response_status INTEGER NOT NULL,
    response_body BLOB NOT NULL,
    created_at INTEGER NOT NULL
);

-- At most one live payout reservation per pool round. Failed (compensated)
-- payouts drop out of the index so the round can be retried; pending and
-- completed ones block any second reservation.
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_payout_per_round
    ON payments(pool_id, round) WHERE type = 'payout' AND status != 'failed';

CREATE INDEX IF NOT EXISTS idx_pool_members_pool_id ON pool_members(pool_id);
CREATE INDEX IF NOT EXISTS idx_pool_transactions_pool_id ON pool_transactions(pool_id);
CREATE INDEX IF NOT EXISTS idx_pool_transactions_payment_id ON pool_transactions(payment_id);
CREATE INDEX IF NOT EXISTS idx_payments_intent ON payments(stripe_payment_intent_id);
CREATE INDEX IF NOT EXISTS idx_payments_pool ON payments(pool_id);
CREATE INDEX IF NOT EXISTS idx_users_stripe_account ON users(stripe_account_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_actor ON audit_log(actor_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
