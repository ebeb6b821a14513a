package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"podcaster/internal/domain"
)

const (
	// wordsPerMinute is the speaking-rate estimate used to derive an
	// episode duration from its script.
	wordsPerMinute = 150

	// teaserDuration is the fixed length estimate for teasers, in
	// seconds.
	teaserDuration = 5
)

// GenerationService runs the end-to-end pipeline: script acquisition,
// speech synthesis, artifact upload, catalog update. Steps are
// strictly sequential; the catalog is only touched once the audio
// upload succeeded.
type GenerationService struct {
	scripts     ScriptProvider
	synthesizer Synthesizer
	blobs       BlobStore
	catalog     CatalogRepository
	publisher   Publisher // nil disables artifact events
	audioPrefix string
	logger      *slog.Logger
	now         func() time.Time
}

func NewGenerationService(
	scripts ScriptProvider,
	synthesizer Synthesizer,
	blobs BlobStore,
	catalog CatalogRepository,
	publisher Publisher,
	audioPrefix string,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		scripts:     scripts,
		synthesizer: synthesizer,
		blobs:       blobs,
		catalog:     catalog,
		publisher:   publisher,
		audioPrefix: audioPrefix,
		logger:      logger.With("component", "generation"),
		now:         time.Now,
	}
}

// Generate produces one artifact for the given mode. Runs are not
// serialized against each other; two runs finishing around the same
// time race on the shared catalog document (last writer wins).
func (s *GenerationService) Generate(ctx context.Context, mode domain.Mode) (*domain.GenerationResult, error) {
	startTime := s.now()
	date := startTime.UTC().Format("2006-01-02")
	timestamp := startTime.UnixMilli()
	id := fmt.Sprintf("%s-%d", date, timestamp)

	s.logger.Info("starting generation", "mode", mode, "id", id)

	payload, err := s.scripts.Generate(ctx, date, mode)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	locator, err := s.synthesizer.Synthesize(ctx, payload.Script)
	if err != nil {
		return nil, fmt.Errorf("synthesize audio: %w", err)
	}

	audio, err := s.synthesizer.Download(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s-%d.mp3", s.audioPrefix, date, mode, timestamp)
	audioURL, err := s.blobs.Put(ctx, key, audio, "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}

	s.logger.Info("audio uploaded", "key", key, "size", len(audio))

	createdAt := s.now().UTC()
	result := &domain.GenerationResult{Script: payload.Script}

	switch mode {
	case domain.ModeFull:
		title := payload.Title
		if title == "" {
			title = domain.PlaceholderEpisodeTitle
		}
		episode := &domain.Episode{
			ID:        id,
			Title:     title,
			AudioURL:  audioURL,
			Duration:  estimateDuration(payload.Script),
			Topics:    payload.Topics,
			Sources:   payload.Sources,
			CreatedAt: createdAt,
		}
		if err := s.catalog.UpsertEpisode(ctx, episode); err != nil {
			return nil, fmt.Errorf("record episode: %w", err)
		}
		result.Episode = episode
	case domain.ModeTeaser:
		teaser := &domain.Teaser{
			ID:        id,
			Title:     payload.Title,
			AudioURL:  audioURL,
			Duration:  teaserDuration,
			CreatedAt: createdAt,
		}
		if err := s.catalog.UpsertTeaser(ctx, teaser); err != nil {
			return nil, fmt.Errorf("record teaser: %w", err)
		}
		result.Teaser = teaser
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, result); err != nil {
			// The artifact is already recorded; a lost event is not
			// worth failing the run over.
			s.logger.Error("publish artifact event failed", "id", id, "error", err)
		}
	}

	s.logger.Info("generation completed",
		"mode", mode,
		"id", id,
		"audio_url", audioURL,
		"duration", time.Since(startTime),
	)

	return result, nil
}

// estimateDuration converts script length to seconds at the assumed
// speaking rate, rounded up.
func estimateDuration(script string) int {
	words := len(strings.Fields(script))
	return int(math.Ceil(float64(words) / wordsPerMinute * 60))
}
