package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"podcaster/internal/domain"
)

const (
	SourceName       = "reddit"
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "Podcaster/1.0"
)

// Config holds reddit listing settings.
type Config struct {
	BaseURL        string // defaults to the public reddit API
	PostLimit      int
	TimeFilter     string // "day" or "week"
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches top posts from subreddits for the knowledge corpus.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	postLimit      int
	timeFilter     string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        baseURL,
		postLimit:      cfg.PostLimit,
		timeFilter:     cfg.TimeFilter,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceName),
	}
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return SourceName
}

// FetchPosts fetches the subreddit's top posts for the configured
// time window.
func (s *Source) FetchPosts(ctx context.Context, subreddit string) ([]domain.Post, error) {
	url := fmt.Sprintf("%s/r/%s/top.json?t=%s&limit=%d",
		s.baseURL, subreddit, s.timeFilter, s.postLimit)

	var resp *listingResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx, url)
		if err == nil {
			return s.transform(subreddit, resp), nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"subreddit", subreddit,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("fetch r/%s after %d attempts: %w", subreddit, s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, url string) (*listingResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &listing, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(subreddit string, listing *listingResponse) []domain.Post {
	posts := make([]domain.Post, 0, len(listing.Data.Children))

	for _, child := range listing.Data.Children {
		p := child.Data
		posts = append(posts, domain.Post{
			Subreddit:   subreddit,
			ExternalID:  p.Name,
			Title:       p.Title,
			Author:      p.Author,
			URL:         p.URL,
			Permalink:   p.Permalink,
			SelfText:    p.SelfText,
			Score:       p.Score,
			NumComments: p.NumComments,
			PostedAt:    time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}

	return posts
}
