package domain

import (
	"fmt"
	"sort"
	"time"
)

// Mode selects the kind of artifact a generation run produces.
type Mode string

const (
	ModeFull   Mode = "full"
	ModeTeaser Mode = "teaser"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeTeaser:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ArtifactKind names which catalog sequence an artifact belongs to.
type ArtifactKind string

const (
	ArtifactEpisode ArtifactKind = "episode"
	ArtifactTeaser  ArtifactKind = "teaser"
)

// PlaceholderEpisodeTitle is the fallback title applied when the
// script backend returned usable metadata but no title. Catalog
// cleanup treats it the same as an empty title.
const PlaceholderEpisodeTitle = "AI News Update"

// CitationKind identifies where a cited item came from.
type CitationKind string

const (
	KindHackerNews  CitationKind = "hackernews"
	KindReddit      CitationKind = "reddit"
	KindArxiv       CitationKind = "arxiv"
	KindHuggingFace CitationKind = "huggingface"
	KindNews        CitationKind = "news"
)

// Citation is one source reference attached to an episode.
// The wire name of Kind is "type" for compatibility with the
// published catalog document.
type Citation struct {
	Kind  CitationKind `json:"type"`
	Title string       `json:"title"`
	URL   string       `json:"url"`
}

// Episode is a full daily episode with topic and source metadata.
type Episode struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	AudioURL  string     `json:"audioUrl"`
	Duration  int        `json:"duration"` // seconds
	Topics    []string   `json:"topics"`
	Sources   []Citation `json:"sources"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Teaser is a short-form artifact without topics or sources.
type Teaser struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	AudioURL  string    `json:"audioUrl"`
	Duration  int       `json:"duration"` // seconds
	CreatedAt time.Time `json:"createdAt"`
}

// Catalog is the single persisted document holding every known artifact.
type Catalog struct {
	Episodes []Episode `json:"episodes"`
	Teasers  []Teaser  `json:"teasers"`
}

// SortEpisodes orders newest first, falling back to ID so that
// equal timestamps still order deterministically.
func SortEpisodes(episodes []Episode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].CreatedAt.Equal(episodes[j].CreatedAt) {
			return episodes[i].ID > episodes[j].ID
		}
		return episodes[i].CreatedAt.After(episodes[j].CreatedAt)
	})
}

// SortTeasers orders newest first, same tiebreak as SortEpisodes.
func SortTeasers(teasers []Teaser) {
	sort.SliceStable(teasers, func(i, j int) bool {
		if teasers[i].CreatedAt.Equal(teasers[j].CreatedAt) {
			return teasers[i].ID > teasers[j].ID
		}
		return teasers[i].CreatedAt.After(teasers[j].CreatedAt)
	})
}

// CleanStats reports what a catalog cleanup removed and kept.
type CleanStats struct {
	RemovedEpisodes   int `json:"removed_episodes"`
	RemovedTeasers    int `json:"removed_teasers"`
	RemainingEpisodes int `json:"remaining_episodes"`
	RemainingTeasers  int `json:"remaining_teasers"`
}

// GenerationResult is what one pipeline run produced. Exactly one of
// Episode or Teaser is set depending on the mode. Script carries the
// raw narration text for teaser runs; it is not persisted separately.
type GenerationResult struct {
	Episode *Episode
	Teaser  *Teaser
	Script  string
}
