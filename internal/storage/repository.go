package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"price-action-bets/internal/betting"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSettlementSQL = `INSERT INTO settlements (
        bet_id,
        account,
        asset,
        direction,
        amount,
        start_price,
        end_price,
        duration_seconds,
        start_time,
        end_time,
        status
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (bet_id) DO NOTHING;`

	listRecentSettlementsSQL = `SELECT
        bet_id,
        account,
        asset,
        direction,
        amount,
        start_price,
        end_price,
        duration_seconds,
        start_time,
        end_time,
        status,
        created_at
    FROM settlements
    ORDER BY end_time DESC
    LIMIT $1;`

	listSettlementsForAccountSQL = `SELECT
        bet_id,
        account,
        asset,
        direction,
        amount,
        start_price,
        end_price,
        duration_seconds,
        start_time,
        end_time,
        status,
        created_at
    FROM settlements
    WHERE account = $1
    ORDER BY end_time DESC
    LIMIT $2;`

	countSettlementsSQL = `SELECT COUNT(*) FROM settlements;`
)

// SettlementStore defines operations for settlement persistence.
type SettlementStore interface {
	RecordSettlement(ctx context.Context, bet betting.Bet) error
	ListRecentSettlements(ctx context.Context, limit int) ([]Settlement, error)
	ListSettlementsForAccount(ctx context.Context, account string, limit int) ([]Settlement, error)
	CountSettlements(ctx context.Context) (int64, error)
}

// Store aggregates access to the settlement history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// RecordSettlement persists a settled bet. Re-recording the same bet id is a
// no-op, which keeps the settlement path idempotent end to end.
func (s *Store) RecordSettlement(ctx context.Context, bet betting.Bet) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertSettlementSQL,
		bet.ID,
		bet.Account,
		string(bet.Asset),
		string(bet.Direction),
		bet.Amount.String(),
		bet.StartPrice.String(),
		bet.EndPrice.String(),
		int64(bet.Duration/time.Second),
		bet.StartTime,
		bet.EndTime,
		string(bet.Status),
	)
	if execErr != nil {
		return fmt.Errorf("insert settlement: %w", execErr)
	}
	return nil
}

// ListRecentSettlements lists the most recent settlements, newest first.
func (s *Store) ListRecentSettlements(ctx context.Context, limit int) ([]Settlement, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSettlementsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent settlements: %w", queryErr)
	}
	defer rows.Close()

	return collectSettlements(rows, limit)
}

// ListSettlementsForAccount lists an account's settlements, newest first.
func (s *Store) ListSettlementsForAccount(ctx context.Context, account string, limit int) ([]Settlement, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSettlementsForAccountSQL, account, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list settlements for account: %w", queryErr)
	}
	defer rows.Close()

	return collectSettlements(rows, limit)
}

// CountSettlements returns the total number of persisted settlements.
func (s *Store) CountSettlements(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := pool.QueryRow(ctx, countSettlementsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count settlements: %w", err)
	}
	return count, nil
}

func collectSettlements(rows pgx.Rows, limit int) ([]Settlement, error) {
	settlements := make([]Settlement, 0, limit)
	for rows.Next() {
		settlement, scanErr := scanSettlement(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		settlements = append(settlements, settlement)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return settlements, nil
}

func scanSettlement(row pgx.Row) (Settlement, error) {
	var (
		settlement      Settlement
		amount          string
		startPrice      string
		endPrice        string
		durationSeconds int64
	)

	if err := row.Scan(
		&settlement.BetID,
		&settlement.Account,
		&settlement.Asset,
		&settlement.Direction,
		&amount,
		&startPrice,
		&endPrice,
		&durationSeconds,
		&settlement.StartTime,
		&settlement.EndTime,
		&settlement.Status,
		&settlement.CreatedAt,
	); err != nil {
		return Settlement{}, fmt.Errorf("scan settlement: %w", err)
	}

	var err error
	if settlement.Amount, err = decimal.NewFromString(amount); err != nil {
		return Settlement{}, fmt.Errorf("parse amount: %w", err)
	}
	if settlement.StartPrice, err = decimal.NewFromString(startPrice); err != nil {
		return Settlement{}, fmt.Errorf("parse start price: %w", err)
	}
	if settlement.EndPrice, err = decimal.NewFromString(endPrice); err != nil {
		return Settlement{}, fmt.Errorf("parse end price: %w", err)
	}
	settlement.Duration = time.Duration(durationSeconds) * time.Second

	return settlement, nil
}

var _ SettlementStore = (*Store)(nil)
var _ betting.SettlementRecorder = (*Store)(nil)
