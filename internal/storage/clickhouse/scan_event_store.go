package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"deposit-reconciler/internal/storage"
)

// ScanEventStore implements storage.ScanEventStore using ClickHouse. The
// table is append-only; re-scans insert fresh rows under a new run id.
type ScanEventStore struct {
	conn *Conn
}

// NewScanEventStore creates a new ScanEventStore.
func NewScanEventStore(conn *Conn) *ScanEventStore {
	return &ScanEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScanEventStore = (*ScanEventStore)(nil)

// Insert appends a scan event.
func (s *ScanEventStore) Insert(ctx context.Context, e *storage.ScanEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	// Amounts exceed 64 bits, so they travel as decimal strings.
	amount := ""
	if e.Amount != nil {
		amount = e.Amount.String()
	}

	query := `
		INSERT INTO scan_events (run_id, order_id, tx_hash, outcome, reason, page, amount, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		e.RunID,
		e.OrderID,
		e.TxHash,
		e.Outcome,
		e.Reason,
		uint32(e.Page),
		amount,
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

// GetByOrderID retrieves all events recorded for an order, oldest first.
func (s *ScanEventStore) GetByOrderID(ctx context.Context, orderID string) ([]*storage.ScanEvent, error) {
	query := `
		SELECT run_id, order_id, tx_hash, outcome, reason, page, amount, ts
		FROM scan_events
		WHERE order_id = ?
		ORDER BY ts ASC, tx_hash ASC
	`

	rows, err := s.conn.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query scan events by order id: %w", err)
	}
	defer rows.Close()

	var events []*storage.ScanEvent
	for rows.Next() {
		var e storage.ScanEvent
		var page uint32
		var amountStr string

		err := rows.Scan(&e.RunID, &e.OrderID, &e.TxHash, &e.Outcome, &e.Reason, &page, &amountStr, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.Page = int(page)
		if amountStr != "" {
			amount, ok := new(big.Int).SetString(amountStr, 10)
			if !ok {
				return nil, fmt.Errorf("parse event amount %q", amountStr)
			}
			e.Amount = amount
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan event rows: %w", err)
	}

	return events, nil
}
