package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"escrowScope/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store provides Postgres persistence for the materialized escrow view.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and applies pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}

	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetDeal loads a deal by its contract-assigned identifier.
func (s *Store) GetDeal(ctx context.Context, id string) (model.Deal, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, buyer, seller, amount, timeout_in_seconds, created_at_ts,
		       is_completed, is_disputed, is_refunded,
		       deposit_tx, release_tx, refund_tx
		FROM deals WHERE id = $1
	`, id)

	var deal model.Deal
	err := row.Scan(
		&deal.ID,
		&deal.Buyer,
		&deal.Seller,
		&deal.Amount,
		&deal.TimeoutInSeconds,
		&deal.CreatedAt,
		&deal.IsCompleted,
		&deal.IsDisputed,
		&deal.IsRefunded,
		&deal.DepositTx,
		&deal.ReleaseTx,
		&deal.RefundTx,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Deal{}, false, nil
		}
		return model.Deal{}, false, err
	}
	return deal, true, nil
}

// PutDeal inserts or fully overwrites a deal row.
func (s *Store) PutDeal(ctx context.Context, deal model.Deal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deals (
			id, buyer, seller, amount, timeout_in_seconds, created_at_ts,
			is_completed, is_disputed, is_refunded,
			deposit_tx, release_tx, refund_tx, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())
		ON CONFLICT (id) DO UPDATE SET
			buyer = EXCLUDED.buyer,
			seller = EXCLUDED.seller,
			amount = EXCLUDED.amount,
			timeout_in_seconds = EXCLUDED.timeout_in_seconds,
			created_at_ts = EXCLUDED.created_at_ts,
			is_completed = EXCLUDED.is_completed,
			is_disputed = EXCLUDED.is_disputed,
			is_refunded = EXCLUDED.is_refunded,
			deposit_tx = EXCLUDED.deposit_tx,
			release_tx = EXCLUDED.release_tx,
			refund_tx = EXCLUDED.refund_tx,
			updated_at = now()
	`,
		deal.ID,
		deal.Buyer,
		deal.Seller,
		deal.Amount,
		deal.TimeoutInSeconds,
		int64(deal.CreatedAt),
		deal.IsCompleted,
		deal.IsDisputed,
		deal.IsRefunded,
		deal.DepositTx,
		deal.ReleaseTx,
		deal.RefundTx,
	)
	return err
}

// EnsureUser creates the user row if it does not exist. Existing rows are
// never touched.
func (s *Store) EnsureUser(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (address) VALUES ($1)
		ON CONFLICT (address) DO NOTHING
	`, address)
	return err
}

// PutEvent writes a raw event record. The deterministic id makes duplicate
// delivery an overwrite with identical values.
func (s *Store) PutEvent(ctx context.Context, record model.EventRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO escrow_events (
			id, event_name, params, block_number, block_timestamp,
			tx_hash, log_index, ingested_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		ON CONFLICT (id) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			params = EXCLUDED.params,
			block_number = EXCLUDED.block_number,
			block_timestamp = EXCLUDED.block_timestamp,
			tx_hash = EXCLUDED.tx_hash,
			log_index = EXCLUDED.log_index
	`,
		record.ID,
		record.EventName,
		record.Params,
		int64(record.BlockNumber),
		int64(record.BlockTimestamp),
		record.TxHash,
		int64(record.LogIndex),
	)
	return err
}

// ListDealsByParticipant returns deals where the address is buyer or
// seller, newest first.
func (s *Store) ListDealsByParticipant(ctx context.Context, address string, limit int) ([]model.Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, buyer, seller, amount, timeout_in_seconds, created_at_ts,
		       is_completed, is_disputed, is_refunded,
		       deposit_tx, release_tx, refund_tx
		FROM deals
		WHERE buyer = $1 OR seller = $1
		ORDER BY created_at_ts DESC
		LIMIT $2
	`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := make([]model.Deal, 0, limit)
	for rows.Next() {
		var deal model.Deal
		if err := rows.Scan(
			&deal.ID,
			&deal.Buyer,
			&deal.Seller,
			&deal.Amount,
			&deal.TimeoutInSeconds,
			&deal.CreatedAt,
			&deal.IsCompleted,
			&deal.IsDisputed,
			&deal.IsRefunded,
			&deal.DepositTx,
			&deal.ReleaseTx,
			&deal.RefundTx,
		); err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
