package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podcaster/internal/config"
	"podcaster/internal/domain"
)

// CorpusSyncService ingests raw community posts into the knowledge
// corpus the script backend draws from: fetch, dedup against the post
// store, persist, then publish a per-subreddit markdown digest to the
// blob store and the knowledge base.
type CorpusSyncService struct {
	source       CorpusSource
	posts        PostStore
	syncState    SyncStateStore
	txManager    TransactionManager
	blobs        BlobStore
	kb           KnowledgeBase // nil disables knowledge-base upload
	corpusPrefix string
	logger       *slog.Logger
	config       config.CorpusConfig
	now          func() time.Time
}

func NewCorpusSyncService(
	source CorpusSource,
	posts PostStore,
	syncState SyncStateStore,
	txManager TransactionManager,
	blobs BlobStore,
	kb KnowledgeBase,
	corpusPrefix string,
	logger *slog.Logger,
	cfg config.CorpusConfig,
) *CorpusSyncService {
	return &CorpusSyncService{
		source:       source,
		posts:        posts,
		syncState:    syncState,
		txManager:    txManager,
		blobs:        blobs,
		kb:           kb,
		corpusPrefix: corpusPrefix,
		logger:       logger.With("source", source.Name()),
		config:       cfg,
		now:          time.Now,
	}
}

func (s *CorpusSyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := s.now()
	date := startTime.UTC().Format("2006-01-02")

	s.logger.Info("starting corpus sync",
		"subreddits", s.config.Subreddits,
		"post_limit", s.config.PostLimit,
	)

	stats := &domain.SyncStats{}

	for i, subreddit := range s.config.Subreddits {
		if i > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(s.config.RequestDelay):
			}
		}

		if err := s.syncSubreddit(ctx, subreddit, date, stats); err != nil {
			s.logger.Error("subreddit sync failed", "subreddit", subreddit, "error", err)
			stats.Errors++
			continue
		}
		stats.Subreddits = append(stats.Subreddits, subreddit)
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("corpus sync completed",
		"synced", len(stats.Subreddits),
		"fetched", stats.Fetched,
		"new", stats.New,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"documents", len(stats.Documents),
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *CorpusSyncService) syncSubreddit(ctx context.Context, subreddit, date string, stats *domain.SyncStats) error {
	posts, err := s.source.FetchPosts(ctx, subreddit)
	if err != nil {
		return fmt.Errorf("fetch posts: %w", err)
	}
	stats.Fetched += len(posts)

	if len(posts) == 0 {
		s.logger.Warn("no posts in time window", "subreddit", subreddit)
		return nil
	}

	toSave, err := s.filterNew(ctx, subreddit, posts)
	if err != nil {
		return fmt.Errorf("filter posts: %w", err)
	}
	stats.Skipped += len(posts) - len(toSave)

	if len(toSave) > 0 {
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.posts.UpsertBatch(txCtx, toSave)
		})
		if err != nil {
			return fmt.Errorf("save posts: %w", err)
		}
		stats.New += len(toSave)
	}

	// The digest always covers the whole fetched window, including
	// posts seen before, so a day's document is self-contained.
	digest := s.source.FormatDigest(subreddit, posts, date)
	name := fmt.Sprintf("reddit-%s-%s.md", subreddit, date)
	key := fmt.Sprintf("%s/%s", s.corpusPrefix, name)

	url, err := s.blobs.Put(ctx, key, []byte(digest), "text/markdown")
	if err != nil {
		return fmt.Errorf("upload digest: %w", err)
	}
	stats.Documents = append(stats.Documents, url)

	if s.kb != nil {
		if _, err := s.kb.UploadDocument(ctx, name, digest); err != nil {
			return fmt.Errorf("upload to knowledge base: %w", err)
		}
	}

	if err := s.updateSyncState(ctx, subreddit, len(toSave)); err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}

	s.logger.Info("subreddit synced",
		"subreddit", subreddit,
		"fetched", len(posts),
		"new", len(toSave),
		"digest_url", url,
	)

	return nil
}

func (s *CorpusSyncService) filterNew(ctx context.Context, subreddit string, posts []domain.Post) ([]domain.Post, error) {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ExternalID
	}

	existing, err := s.posts.GetExistingExternalIDs(ctx, subreddit, ids)
	if err != nil {
		return nil, err
	}

	var toSave []domain.Post
	for _, p := range posts {
		if _, ok := existing[p.ExternalID]; !ok {
			toSave = append(toSave, p)
		}
	}

	return toSave, nil
}

func (s *CorpusSyncService) updateSyncState(ctx context.Context, subreddit string, synced int) error {
	state, err := s.syncState.Get(ctx, subreddit)
	if err != nil {
		return err
	}

	state.Subreddit = subreddit
	state.LastSyncedAt = s.now()
	state.TotalSynced += int64(synced)

	return s.syncState.Update(ctx, state)
}
