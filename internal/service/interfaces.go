package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"podcaster/internal/domain"
)

// ScriptProvider returns a normalized narration script for a calendar
// date (YYYY-MM-DD) and generation mode.
type ScriptProvider interface {
	Generate(ctx context.Context, date string, mode domain.Mode) (*domain.ScriptPayload, error)
}

// Synthesizer converts narration text into a downloadable audio
// resource and fetches the finished bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// BlobStore is key/value object storage with public URLs.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// CatalogRepository owns the shared catalog document.
type CatalogRepository interface {
	Load(ctx context.Context) (*domain.Catalog, error)
	UpsertEpisode(ctx context.Context, episode *domain.Episode) error
	UpsertTeaser(ctx context.Context, teaser *domain.Teaser) error
	Remove(ctx context.Context, id string, kind domain.ArtifactKind) error
	Clean(ctx context.Context) (*domain.CleanStats, error)
}

// Publisher announces finished artifacts to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, result *domain.GenerationResult) error
	Close() error
}

// CorpusSource fetches raw community posts and renders them as a
// corpus digest.
type CorpusSource interface {
	Name() string
	FetchPosts(ctx context.Context, subreddit string) ([]domain.Post, error)
	FormatDigest(subreddit string, posts []domain.Post, date string) string
}

// PostStore persists fetched corpus posts.
type PostStore interface {
	UpsertBatch(ctx context.Context, posts []domain.Post) error
	GetExistingExternalIDs(ctx context.Context, subreddit string, ids []string) (map[string]struct{}, error)
}

// SyncStateStore tracks per-subreddit ingestion progress.
type SyncStateStore interface {
	Get(ctx context.Context, subreddit string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

// KnowledgeBase stores corpus documents for the script backend.
type KnowledgeBase interface {
	UploadDocument(ctx context.Context, name, content string) (string, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
