package store

const schema = `
CREATE TABLE IF NOT EXISTS operators (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    display_name  TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS pending_orders (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    local_ref    TEXT NOT NULL UNIQUE,
    payload      BLOB NOT NULL,
    synced       INTEGER NOT NULL DEFAULT 0,
    sync_failed  INTEGER NOT NULL DEFAULT 0,
    retry_count  INTEGER NOT NULL DEFAULT 0,
    order_number TEXT,
    claimed_at   TEXT,
    created_at   TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    synced_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_pending_orders_unsynced ON pending_orders(synced) WHERE synced = 0;
`

func (db *DB) migrate() error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Graceful migrations for existing DBs
	db.Exec("ALTER TABLE operators ADD COLUMN display_name TEXT NOT NULL DEFAULT ''")
	db.Exec("ALTER TABLE pending_orders ADD COLUMN order_number TEXT")
	return nil
}
