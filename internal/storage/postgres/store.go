package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammpool/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address    TEXT PRIMARY KEY,
	token0          TEXT NOT NULL,
	token1          TEXT NOT NULL,
	reserve0        NUMERIC(78, 0) NOT NULL,
	reserve1        NUMERIC(78, 0) NOT NULL,
	total_shares    NUMERIC(78, 0) NOT NULL,
	k               NUMERIC NOT NULL,
	fee_numerator   BIGINT NOT NULL,
	fee_denominator BIGINT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS pool_events (
	run_id       TEXT NOT NULL,
	seq          BIGINT NOT NULL,
	pool_address TEXT NOT NULL,
	event_name   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Store provides Postgres persistence for pool events and snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutSnapshots inserts or updates pool state.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token0, token1, reserve0, reserve1, total_shares, k,
				fee_numerator, fee_denominator, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				total_shares = EXCLUDED.total_shares,
				k = EXCLUDED.k,
				fee_numerator = EXCLUDED.fee_numerator,
				fee_denominator = EXCLUDED.fee_denominator,
				updated_at = now()
		`,
			snap.Address,
			snap.Token0,
			snap.Token1,
			snap.Reserve0,
			snap.Reserve1,
			snap.TotalShares,
			snap.K,
			int64(snap.FeeNumerator),
			int64(snap.FeeDenominator),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertEvents stores a batch of events under runID. Replayed sequence
// numbers are ignored.
func (s *Store) InsertEvents(ctx context.Context, runID string, events []model.PoolEvent) error {
	if runID == "" {
		return fmt.Errorf("run id required")
	}
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		payload, err := json.Marshal(event.Decoded)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_events (run_id, seq, pool_address, event_name, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (run_id, seq) DO NOTHING
		`,
			runID,
			int64(event.Seq),
			event.Pool,
			event.EventName,
			string(payload),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RunEvents binds the store to one run so it can serve as an event sink.
func (s *Store) RunEvents(runID string) *RunEvents {
	return &RunEvents{store: s, runID: runID}
}

// RunEvents writes event batches for a single run.
type RunEvents struct {
	store *Store
	runID string
}

func (r *RunEvents) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	return r.store.InsertEvents(ctx, r.runID, events)
}
