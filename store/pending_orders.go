package store

import (
	"database/sql"
	"fmt"
	"time"
)

// PendingOrder is an order submission captured locally while the API
// was unreachable. The payload is the exact request body as composed
// at submission time; it is replayed byte for byte during sync.
type PendingOrder struct {
	ID          int64      `json:"id"`
	LocalRef    string     `json:"local_ref"`
	Payload     []byte     `json:"-"`
	Synced      bool       `json:"synced"`
	SyncFailed  bool       `json:"sync_failed"`
	RetryCount  int        `json:"retry_count"`
	OrderNumber string     `json:"order_number,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

func (db *DB) InsertPendingOrder(localRef string, payload []byte) (int64, error) {
	res, err := db.Exec(`INSERT INTO pending_orders (local_ref, payload) VALUES (?, ?)`, localRef, payload)
	if err != nil {
		return 0, fmt.Errorf("insert pending order: %w", err)
	}
	return res.LastInsertId()
}

const pendingOrderCols = `id, local_ref, payload, synced, sync_failed, retry_count, COALESCE(order_number, ''), claimed_at, created_at, synced_at`

func scanPendingOrder(row interface{ Scan(...any) error }) (*PendingOrder, error) {
	p := &PendingOrder{}
	var synced, failed int
	var claimedAt, syncedAt sql.NullString
	var createdAt string
	err := row.Scan(&p.ID, &p.LocalRef, &p.Payload, &synced, &failed, &p.RetryCount, &p.OrderNumber, &claimedAt, &createdAt, &syncedAt)
	if err != nil {
		return nil, err
	}
	p.Synced = synced != 0
	p.SyncFailed = failed != 0
	p.CreatedAt = scanTime(createdAt)
	p.SyncedAt = scanTimePtr(syncedAt)
	return p, nil
}

func (db *DB) GetPendingOrder(id int64) (*PendingOrder, error) {
	row := db.QueryRow(`SELECT `+pendingOrderCols+` FROM pending_orders WHERE id = ?`, id)
	return scanPendingOrder(row)
}

func (db *DB) GetPendingOrderByRef(localRef string) (*PendingOrder, error) {
	row := db.QueryRow(`SELECT `+pendingOrderCols+` FROM pending_orders WHERE local_ref = ?`, localRef)
	return scanPendingOrder(row)
}

// ListUnsynced returns submissions still awaiting sync, oldest first.
func (db *DB) ListUnsynced() ([]*PendingOrder, error) {
	return db.listPendingWhere(`synced = 0 AND sync_failed = 0`)
}

// ListSyncFailed returns submissions that exhausted their retries and
// need operator attention.
func (db *DB) ListSyncFailed() ([]*PendingOrder, error) {
	return db.listPendingWhere(`sync_failed = 1`)
}

func (db *DB) listPendingWhere(where string) ([]*PendingOrder, error) {
	rows, err := db.Query(`SELECT ` + pendingOrderCols + ` FROM pending_orders WHERE ` + where + ` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PendingOrder
	for rows.Next() {
		p, err := scanPendingOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClaimPendingOrder marks a record as in-flight for one sync worker.
// The claim is lost-update safe: only one caller wins the conditional
// UPDATE, and a stale claim older than ttl can be taken over.
func (db *DB) ClaimPendingOrder(id int64, ttl time.Duration) (bool, error) {
	cutoff := fmt.Sprintf("-%d seconds", int(ttl.Seconds()))
	res, err := db.Exec(`UPDATE pending_orders
		SET claimed_at = datetime('now','localtime')
		WHERE id = ? AND synced = 0 AND sync_failed = 0
		  AND (claimed_at IS NULL OR claimed_at < datetime('now','localtime', ?))`, id, cutoff)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReleasePendingOrder clears a claim so another sync pass can retry
// sooner than the claim TTL.
func (db *DB) ReleasePendingOrder(id int64) error {
	_, err := db.Exec(`UPDATE pending_orders SET claimed_at = NULL WHERE id = ?`, id)
	return err
}

// MarkSynced records the server-assigned order number and retires the
// submission from the sync queue.
func (db *DB) MarkSynced(id int64, orderNumber string) error {
	_, err := db.Exec(`UPDATE pending_orders
		SET synced = 1, order_number = ?, synced_at = datetime('now','localtime'), claimed_at = NULL
		WHERE id = ?`, orderNumber, id)
	return err
}

// IncrementSyncRetry bumps the retry counter and returns the new count.
func (db *DB) IncrementSyncRetry(id int64) (int, error) {
	_, err := db.Exec(`UPDATE pending_orders SET retry_count = retry_count + 1, claimed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRow(`SELECT retry_count FROM pending_orders WHERE id = ?`, id).Scan(&count)
	return count, err
}

func (db *DB) MarkSyncFailed(id int64) error {
	_, err := db.Exec(`UPDATE pending_orders SET sync_failed = 1, claimed_at = NULL WHERE id = ?`, id)
	return err
}

func (db *DB) CountUnsynced() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pending_orders WHERE synced = 0 AND sync_failed = 0`).Scan(&count)
	return count, err
}

// DeletePendingOrder removes a record entirely. Used by the operator
// console to discard a failed submission after review.
func (db *DB) DeletePendingOrder(id int64) error {
	_, err := db.Exec(`DELETE FROM pending_orders WHERE id = ?`, id)
	return err
}
