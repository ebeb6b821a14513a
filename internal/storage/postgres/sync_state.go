package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"podcaster/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, subreddit string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, subreddit, last_synced_at, total_synced
		FROM sync_state
		WHERE subreddit = $1`

	err := s.db.GetContext(ctx, &state, query, subreddit)
	if err == sql.ErrNoRows {
		// Empty state for a subreddit never synced before
		return &domain.SyncState{
			Subreddit:    subreddit,
			LastSyncedAt: time.Time{},
			TotalSynced:  0,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (subreddit, last_synced_at, total_synced)
		VALUES ($1, $2, $3)
		ON CONFLICT (subreddit) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			total_synced = EXCLUDED.total_synced`

	_, err := s.db.ExecContext(ctx, query,
		state.Subreddit,
		state.LastSyncedAt,
		state.TotalSynced,
	)
	return err
}
