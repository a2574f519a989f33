package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/storage"
)

// ExecutionEventStore implements storage.ExecutionEventStore using ClickHouse.
type ExecutionEventStore struct {
	conn *Conn
}

// NewExecutionEventStore creates a new ExecutionEventStore.
func NewExecutionEventStore(conn *Conn) *ExecutionEventStore {
	return &ExecutionEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ExecutionEventStore = (*ExecutionEventStore)(nil)

const executionEventColumns = `
	event_id, attempt_id, session_id, stage, outcome, error_kind,
	source, strategy, wallet_kind, input_mint, output_mint,
	input_amount_raw, output_amount_raw, signature, latency_ms, timestamp_ms
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *ExecutionEventStore) Insert(ctx context.Context, e *domain.ExecutionEvent) (err error) {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) {
		observability.RecordDBQuery("clickhouse", "insert_execution_event", time.Since(start).Seconds(), err)
	}(time.Now())

	// MergeTree does not enforce uniqueness, so check explicitly.
	exists, err := s.exists(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO execution_events (` + executionEventColumns + `) VALUES (
		?, ?, ?, ?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?, ?, ?, ?
	)`

	err = s.conn.Exec(ctx, query,
		e.EventID, e.AttemptID, e.SessionID, string(e.Stage), e.Outcome, e.ErrorKind,
		e.Source, e.Strategy, e.WalletKind, e.InputMint, e.OutputMint,
		e.InputAmountRaw, e.OutputAmountRaw, e.Signature, e.LatencyMs, e.TimestampMs,
	)
	if err != nil {
		return fmt.Errorf("insert execution event: %w", err)
	}
	return nil
}

// GetByAttemptID retrieves all events of an attempt, ordered by timestamp ASC.
func (s *ExecutionEventStore) GetByAttemptID(ctx context.Context, attemptID string) ([]*domain.ExecutionEvent, error) {
	query := `SELECT ` + executionEventColumns + `
		FROM execution_events
		WHERE attempt_id = ?
		ORDER BY timestamp_ms ASC, event_id ASC`

	rows, err := s.conn.Query(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query execution events: %w", err)
	}
	return scanExecutionEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by timestamp ASC.
func (s *ExecutionEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExecutionEvent, error) {
	query := `SELECT ` + executionEventColumns + `
		FROM execution_events
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, event_id ASC`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query execution events: %w", err)
	}
	return scanExecutionEvents(rows)
}

func (s *ExecutionEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM execution_events WHERE event_id = ?`, eventID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanExecutionEvents(rows driver.Rows) ([]*domain.ExecutionEvent, error) {
	defer rows.Close()

	var result []*domain.ExecutionEvent
	for rows.Next() {
		var e domain.ExecutionEvent
		var stage string
		if err := rows.Scan(
			&e.EventID, &e.AttemptID, &e.SessionID, &stage, &e.Outcome, &e.ErrorKind,
			&e.Source, &e.Strategy, &e.WalletKind, &e.InputMint, &e.OutputMint,
			&e.InputAmountRaw, &e.OutputAmountRaw, &e.Signature, &e.LatencyMs, &e.TimestampMs,
		); err != nil {
			return nil, fmt.Errorf("scan execution event: %w", err)
		}
		e.Stage = domain.ExecutionStage(stage)
		result = append(result, &e)
	}
	return result, rows.Err()
}
