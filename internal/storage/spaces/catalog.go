package spaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"podcaster/internal/domain"
)

// ObjectStore is the blob-store surface the repository needs. *Store
// satisfies it; tests substitute an in-memory fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// CatalogRepository owns the single catalog document. Every mutation
// is a read-modify-write of the whole document: the catalog stays in
// the low thousands of entries and the access pattern is "list
// everything, append one" a few times a day. Concurrent writers are
// last-writer-wins; see the repository tests for the pinned behavior.
type CatalogRepository struct {
	store  ObjectStore
	key    string
	logger *slog.Logger
}

func NewCatalogRepository(store ObjectStore, key string, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{
		store:  store,
		key:    key,
		logger: logger.With("component", "catalog"),
	}
}

// Load reads the catalog document. A missing key is first-run, not an
// error: it yields an empty catalog.
func (r *CatalogRepository) Load(ctx context.Context) (*domain.Catalog, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &domain.Catalog{Episodes: []domain.Episode{}, Teasers: []domain.Teaser{}}, nil
		}
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if catalog.Episodes == nil {
		catalog.Episodes = []domain.Episode{}
	}
	if catalog.Teasers == nil {
		catalog.Teasers = []domain.Teaser{}
	}

	return &catalog, nil
}

// UpsertEpisode replaces the episode with the same id, or appends it,
// then re-sorts newest first and writes the document back.
func (r *CatalogRepository) UpsertEpisode(ctx context.Context, episode *domain.Episode) error {
	catalog, err := r.Load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range catalog.Episodes {
		if catalog.Episodes[i].ID == episode.ID {
			catalog.Episodes[i] = *episode
			replaced = true
			break
		}
	}
	if !replaced {
		catalog.Episodes = append(catalog.Episodes, *episode)
	}
	domain.SortEpisodes(catalog.Episodes)

	if err := r.write(ctx, catalog); err != nil {
		return err
	}

	r.logger.Info("episode upserted", "id", episode.ID, "replaced", replaced)
	return nil
}

// UpsertTeaser is UpsertEpisode for the teaser sequence.
func (r *CatalogRepository) UpsertTeaser(ctx context.Context, teaser *domain.Teaser) error {
	catalog, err := r.Load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range catalog.Teasers {
		if catalog.Teasers[i].ID == teaser.ID {
			catalog.Teasers[i] = *teaser
			replaced = true
			break
		}
	}
	if !replaced {
		catalog.Teasers = append(catalog.Teasers, *teaser)
	}
	domain.SortTeasers(catalog.Teasers)

	if err := r.write(ctx, catalog); err != nil {
		return err
	}

	r.logger.Info("teaser upserted", "id", teaser.ID, "replaced", replaced)
	return nil
}

// Remove filters out the entry with the given id from the matching
// sequence. An absent id is a no-op, not an error.
func (r *CatalogRepository) Remove(ctx context.Context, id string, kind domain.ArtifactKind) error {
	catalog, err := r.Load(ctx)
	if err != nil {
		return err
	}

	switch kind {
	case domain.ArtifactEpisode:
		kept := catalog.Episodes[:0]
		for _, e := range catalog.Episodes {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		catalog.Episodes = kept
	case domain.ArtifactTeaser:
		kept := catalog.Teasers[:0]
		for _, t := range catalog.Teasers {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		catalog.Teasers = kept
	default:
		return fmt.Errorf("unknown artifact kind %q", kind)
	}

	if err := r.write(ctx, catalog); err != nil {
		return err
	}

	r.logger.Info("artifact removed", "id", id, "kind", kind)
	return nil
}

// Clean drops episodes whose title is empty or the placeholder
// default and teasers whose title is empty, then writes the result
// back.
func (r *CatalogRepository) Clean(ctx context.Context) (*domain.CleanStats, error) {
	catalog, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.CleanStats{}

	episodes := catalog.Episodes[:0]
	for _, e := range catalog.Episodes {
		if e.Title == "" || e.Title == domain.PlaceholderEpisodeTitle {
			r.logger.Debug("removing episode", "id", e.ID, "title", e.Title)
			stats.RemovedEpisodes++
			continue
		}
		episodes = append(episodes, e)
	}
	catalog.Episodes = episodes

	teasers := catalog.Teasers[:0]
	for _, t := range catalog.Teasers {
		if t.Title == "" {
			r.logger.Debug("removing teaser", "id", t.ID)
			stats.RemovedTeasers++
			continue
		}
		teasers = append(teasers, t)
	}
	catalog.Teasers = teasers

	stats.RemainingEpisodes = len(catalog.Episodes)
	stats.RemainingTeasers = len(catalog.Teasers)

	if err := r.write(ctx, catalog); err != nil {
		return nil, err
	}

	r.logger.Info("catalog cleaned",
		"removed_episodes", stats.RemovedEpisodes,
		"removed_teasers", stats.RemovedTeasers,
		"remaining_episodes", stats.RemainingEpisodes,
		"remaining_teasers", stats.RemainingTeasers,
	)

	return stats, nil
}

func (r *CatalogRepository) write(ctx context.Context, catalog *domain.Catalog) error {
	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	if _, err := r.store.Put(ctx, r.key, data, "application/json"); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	return nil
}
