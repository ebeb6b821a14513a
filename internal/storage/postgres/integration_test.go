//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"podcaster/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_posts.up.sql"),
			filepath.Join(migrationsPath, "002_create_sync_state.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM posts")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) post(sub, externalID, title string, score int) domain.Post {
	return domain.Post{
		Subreddit:   sub,
		ExternalID:  externalID,
		Title:       title,
		Author:      "tester",
		URL:         "https://example.com/" + externalID,
		Permalink:   "/r/" + sub + "/" + externalID,
		SelfText:    "body",
		Score:       score,
		NumComments: 3,
		PostedAt:    time.Now().Truncate(time.Microsecond),
	}
}

func (s *PostgresIntegrationSuite) TestPostStore_UpsertBatch_Insert() {
	store := NewPostStore(s.db)

	posts := []domain.Post{
		s.post("MachineLearning", "t3_abc", "First", 10),
		s.post("MachineLearning", "t3_def", "Second", 20),
	}
	s.NoError(store.UpsertBatch(s.ctx, posts))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM posts WHERE subreddit = $1", "MachineLearning"))
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestPostStore_UpsertBatch_RefreshesScores() {
	store := NewPostStore(s.db)

	s.NoError(store.UpsertBatch(s.ctx, []domain.Post{s.post("LocalLLaMA", "t3_abc", "Title", 10)}))

	updated := s.post("LocalLLaMA", "t3_abc", "Title (edited)", 99)
	s.NoError(store.UpsertBatch(s.ctx, []domain.Post{updated}))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM posts"))
	s.Equal(1, count)

	var score int
	s.NoError(s.db.GetContext(s.ctx, &score, "SELECT score FROM posts WHERE external_id = $1", "t3_abc"))
	s.Equal(99, score)
}

func (s *PostgresIntegrationSuite) TestPostStore_GetExistingExternalIDs() {
	store := NewPostStore(s.db)

	s.NoError(store.UpsertBatch(s.ctx, []domain.Post{
		s.post("artificial", "t3_one", "One", 1),
		s.post("artificial", "t3_two", "Two", 2),
	}))

	existing, err := store.GetExistingExternalIDs(s.ctx, "artificial", []string{"t3_one", "t3_two", "t3_missing"})
	s.NoError(err)
	s.Len(existing, 2)
	s.Contains(existing, "t3_one")
	s.Contains(existing, "t3_two")
	s.NotContains(existing, "t3_missing")

	// Same ids in another subreddit are not counted
	existing, err = store.GetExistingExternalIDs(s.ctx, "MachineLearning", []string{"t3_one"})
	s.NoError(err)
	s.Len(existing, 0)
}

func (s *PostgresIntegrationSuite) TestPostStore_UpsertBatch_InTransaction() {
	store := NewPostStore(s.db)
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		return store.UpsertBatch(txCtx, []domain.Post{s.post("MachineLearning", "t3_tx", "In tx", 5)})
	})
	s.NoError(err)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM posts WHERE external_id = $1", "t3_tx"))
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_GetMissingReturnsEmptyState() {
	store := NewSyncStateStore(s.db)

	state, err := store.Get(s.ctx, "LocalLLaMA")
	s.NoError(err)
	s.Equal("LocalLLaMA", state.Subreddit)
	s.True(state.LastSyncedAt.IsZero())
	s.Zero(state.TotalSynced)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_UpdateThenGet() {
	store := NewSyncStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	s.NoError(store.Update(s.ctx, &domain.SyncState{
		Subreddit:    "artificial",
		LastSyncedAt: now,
		TotalSynced:  7,
	}))

	state, err := store.Get(s.ctx, "artificial")
	s.NoError(err)
	s.Equal(int64(7), state.TotalSynced)
	s.WithinDuration(now, state.LastSyncedAt, time.Second)

	s.NoError(store.Update(s.ctx, &domain.SyncState{
		Subreddit:    "artificial",
		LastSyncedAt: now.Add(time.Hour),
		TotalSynced:  11,
	}))

	state, err = store.Get(s.ctx, "artificial")
	s.NoError(err)
	s.Equal(int64(11), state.TotalSynced)
}
