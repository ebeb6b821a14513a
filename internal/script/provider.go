package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"podcaster/internal/domain"
)

// ErrInvalidResponse means the backend produced no usable content for
// a full episode: no title, no topics and no sources after
// normalization. Plain prose alone is recoverable for teasers but not
// for full episodes.
var ErrInvalidResponse = errors.New("script backend returned no usable content")

// Config holds script backend settings.
type Config struct {
	Endpoint  string
	AccessKey string
	MaxTokens int
	Timeout   time.Duration
}

// Provider asks the agent backend for a narration script built from
// the knowledge corpus.
type Provider struct {
	httpClient *http.Client
	endpoint   string
	accessKey  string
	maxTokens  int
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Provider {
	return &Provider{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		accessKey: cfg.AccessKey,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With("component", "script"),
	}
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate builds the mode-specific prompt for the given date, sends
// it to the backend and normalizes whatever comes back.
func (p *Provider) Generate(ctx context.Context, date string, mode domain.Mode) (*domain.ScriptPayload, error) {
	content, err := p.query(ctx, buildPrompt(date, mode))
	if err != nil {
		return nil, err
	}

	payload := normalize(content)

	if mode == domain.ModeFull && !payload.HasMetadata() {
		return nil, fmt.Errorf("%w: plain text only", ErrInvalidResponse)
	}
	if payload.Script == "" {
		return nil, fmt.Errorf("%w: empty script", ErrInvalidResponse)
	}

	p.logger.Debug("script generated",
		"mode", mode,
		"title", payload.Title,
		"topics", len(payload.Topics),
		"sources", len(payload.Sources),
		"script_len", len(payload.Script),
	)

	return payload, nil
}

func (p *Provider) query(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := p.endpoint + "/api/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query script backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("script backend status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	return chatResp.Choices[0].Message.Content, nil
}

var (
	fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*\\n?(.*?)\\n?```")
	leadFenceRe   = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailFenceRe  = regexp.MustCompile("\\s*```\\s*$")
)

// normalize handles the three realistic backend response shapes: a
// JSON object inside a fenced code block, raw JSON, and plain prose.
// Prose falls back to narration-only rather than failing; the backend
// is best-effort and a formatting slip is not a fatal error.
func normalize(content string) *domain.ScriptPayload {
	candidate := content
	if m := fencedBlockRe.FindStringSubmatch(content); m != nil {
		candidate = strings.TrimSpace(m[1])
	} else {
		candidate = trailFenceRe.ReplaceAllString(leadFenceRe.ReplaceAllString(candidate, ""), "")
		candidate = strings.TrimSpace(candidate)
	}

	var parsed struct {
		Title    string            `json:"title"`
		Script   string            `json:"script"`
		Response string            `json:"response"`
		Topics   []string          `json:"topics"`
		Sources  []domain.Citation `json:"sources"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return &domain.ScriptPayload{Script: strings.TrimSpace(content)}
	}

	script := parsed.Script
	if script == "" {
		script = parsed.Response
	}
	if script == "" {
		script = candidate
	}

	return &domain.ScriptPayload{
		Title:   parsed.Title,
		Script:  script,
		Topics:  parsed.Topics,
		Sources: parsed.Sources,
	}
}
