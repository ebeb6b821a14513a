package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"podcaster/internal/config"
	"podcaster/internal/domain"
	"podcaster/internal/service/mocks"
)

type CorpusSyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockCorpusSource
	posts     *mocks.MockPostStore
	syncState *mocks.MockSyncStateStore
	txManager *mocks.MockTransactionManager
	blobs     *mocks.MockBlobStore
	kb        *mocks.MockKnowledgeBase

	service *CorpusSyncService
	cfg     config.CorpusConfig
	logger  *slog.Logger

	clock time.Time
}

func (s *CorpusSyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockCorpusSource(s.ctrl)
	s.posts = mocks.NewMockPostStore(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.blobs = mocks.NewMockBlobStore(s.ctrl)
	s.kb = mocks.NewMockKnowledgeBase(s.ctrl)

	s.cfg = config.CorpusConfig{
		Subreddits:   []string{"MachineLearning"},
		PostLimit:    25,
		TimeFilter:   "day",
		RequestDelay: time.Millisecond,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().Name().Return("reddit").AnyTimes()

	s.service = NewCorpusSyncService(
		s.source,
		s.posts,
		s.syncState,
		s.txManager,
		s.blobs,
		s.kb,
		"reddit-sync",
		s.logger,
		s.cfg,
	)

	s.clock = time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	s.service.now = func() time.Time { return s.clock }
}

func (s *CorpusSyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCorpusSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CorpusSyncServiceTestSuite))
}

func (s *CorpusSyncServiceTestSuite) TestSync_NewPosts() {
	ctx := context.Background()

	posts := []domain.Post{
		{Subreddit: "MachineLearning", ExternalID: "t3_one", Title: "First"},
		{Subreddit: "MachineLearning", ExternalID: "t3_two", Title: "Second"},
	}

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(posts, nil)

	s.posts.EXPECT().GetExistingExternalIDs(ctx, "MachineLearning", []string{"t3_one", "t3_two"}).
		Return(map[string]struct{}{}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.posts.EXPECT().UpsertBatch(ctx, posts).Return(nil)

	s.source.EXPECT().FormatDigest("MachineLearning", posts, "2025-03-14").Return("# digest")
	s.blobs.EXPECT().Put(ctx, "reddit-sync/reddit-MachineLearning-2025-03-14.md", []byte("# digest"), "text/markdown").
		Return("https://cdn/reddit-sync/reddit-MachineLearning-2025-03-14.md", nil)
	s.kb.EXPECT().UploadDocument(ctx, "reddit-MachineLearning-2025-03-14.md", "# digest").Return("doc-1", nil)

	s.syncState.EXPECT().Get(ctx, "MachineLearning").Return(&domain.SyncState{}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal("MachineLearning", state.Subreddit)
			s.Equal(int64(2), state.TotalSynced)
			s.Equal(s.clock, state.LastSyncedAt)
			return nil
		},
	)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(2, stats.Fetched)
	s.Equal(2, stats.New)
	s.Equal(0, stats.Skipped)
	s.Equal(0, stats.Errors)
	s.Equal([]string{"MachineLearning"}, stats.Subreddits)
	s.Len(stats.Documents, 1)
}

func (s *CorpusSyncServiceTestSuite) TestSync_SkipsExistingPosts() {
	ctx := context.Background()

	posts := []domain.Post{
		{Subreddit: "MachineLearning", ExternalID: "t3_old", Title: "Seen"},
		{Subreddit: "MachineLearning", ExternalID: "t3_new", Title: "Fresh"},
	}

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(posts, nil)

	s.posts.EXPECT().GetExistingExternalIDs(ctx, "MachineLearning", []string{"t3_old", "t3_new"}).
		Return(map[string]struct{}{"t3_old": {}}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.posts.EXPECT().UpsertBatch(ctx, posts[1:]).Return(nil)

	// The digest still covers the whole fetched window.
	s.source.EXPECT().FormatDigest("MachineLearning", posts, "2025-03-14").Return("# digest")
	s.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), "text/markdown").Return("url", nil)
	s.kb.EXPECT().UploadDocument(ctx, gomock.Any(), gomock.Any()).Return("doc-1", nil)

	s.syncState.EXPECT().Get(ctx, "MachineLearning").Return(&domain.SyncState{TotalSynced: 10}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal(int64(11), state.TotalSynced)
			return nil
		},
	)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(2, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(1, stats.Skipped)
}

func (s *CorpusSyncServiceTestSuite) TestSync_AllPostsExisting() {
	ctx := context.Background()

	posts := []domain.Post{
		{Subreddit: "MachineLearning", ExternalID: "t3_old", Title: "Seen"},
	}

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(posts, nil)
	s.posts.EXPECT().GetExistingExternalIDs(ctx, "MachineLearning", []string{"t3_old"}).
		Return(map[string]struct{}{"t3_old": {}}, nil)

	// Nothing new to save, so no transaction; the digest is still
	// refreshed for the day.
	s.source.EXPECT().FormatDigest("MachineLearning", posts, "2025-03-14").Return("# digest")
	s.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), "text/markdown").Return("url", nil)
	s.kb.EXPECT().UploadDocument(ctx, gomock.Any(), gomock.Any()).Return("doc-1", nil)

	s.syncState.EXPECT().Get(ctx, "MachineLearning").Return(&domain.SyncState{TotalSynced: 3}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal(int64(3), state.TotalSynced)
			return nil
		},
	)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.New)
	s.Equal(1, stats.Skipped)
}

func (s *CorpusSyncServiceTestSuite) TestSync_EmptyWindow() {
	ctx := context.Background()

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(nil, nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.Fetched)
	s.Equal([]string{"MachineLearning"}, stats.Subreddits)
	s.Empty(stats.Documents)
}

func (s *CorpusSyncServiceTestSuite) TestSync_SubredditErrorsIsolated() {
	ctx := context.Background()

	s.cfg.Subreddits = []string{"MachineLearning", "LocalLLaMA"}
	s.service = NewCorpusSyncService(
		s.source, s.posts, s.syncState, s.txManager, s.blobs, s.kb,
		"reddit-sync", s.logger, s.cfg,
	)
	s.service.now = func() time.Time { return s.clock }

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(nil, errors.New("rate limited"))

	posts := []domain.Post{{Subreddit: "LocalLLaMA", ExternalID: "t3_a", Title: "A"}}
	s.source.EXPECT().FetchPosts(ctx, "LocalLLaMA").Return(posts, nil)
	s.posts.EXPECT().GetExistingExternalIDs(ctx, "LocalLLaMA", []string{"t3_a"}).
		Return(map[string]struct{}{}, nil)
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.posts.EXPECT().UpsertBatch(ctx, posts).Return(nil)
	s.source.EXPECT().FormatDigest("LocalLLaMA", posts, "2025-03-14").Return("# digest")
	s.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), "text/markdown").Return("url", nil)
	s.kb.EXPECT().UploadDocument(ctx, gomock.Any(), gomock.Any()).Return("doc-1", nil)
	s.syncState.EXPECT().Get(ctx, "LocalLLaMA").Return(&domain.SyncState{}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal([]string{"LocalLLaMA"}, stats.Subreddits)
}

func (s *CorpusSyncServiceTestSuite) TestSync_DigestUploadError() {
	ctx := context.Background()

	posts := []domain.Post{{Subreddit: "MachineLearning", ExternalID: "t3_a", Title: "A"}}

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(posts, nil)
	s.posts.EXPECT().GetExistingExternalIDs(ctx, "MachineLearning", []string{"t3_a"}).
		Return(map[string]struct{}{}, nil)
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.posts.EXPECT().UpsertBatch(ctx, posts).Return(nil)
	s.source.EXPECT().FormatDigest("MachineLearning", posts, "2025-03-14").Return("# digest")
	s.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), "text/markdown").Return("", errors.New("bucket gone"))

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Empty(stats.Subreddits)
}

func (s *CorpusSyncServiceTestSuite) TestSync_NoKnowledgeBase() {
	ctx := context.Background()

	s.service = NewCorpusSyncService(
		s.source, s.posts, s.syncState, s.txManager, s.blobs, nil,
		"reddit-sync", s.logger, s.cfg,
	)
	s.service.now = func() time.Time { return s.clock }

	posts := []domain.Post{{Subreddit: "MachineLearning", ExternalID: "t3_a", Title: "A"}}

	s.source.EXPECT().FetchPosts(ctx, "MachineLearning").Return(posts, nil)
	s.posts.EXPECT().GetExistingExternalIDs(ctx, "MachineLearning", []string{"t3_a"}).
		Return(map[string]struct{}{}, nil)
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.posts.EXPECT().UpsertBatch(ctx, posts).Return(nil)
	s.source.EXPECT().FormatDigest("MachineLearning", posts, "2025-03-14").Return("# digest")
	s.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), "text/markdown").Return("url", nil)
	s.syncState.EXPECT().Get(ctx, "MachineLearning").Return(&domain.SyncState{}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.Errors)
}
