package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// jobState is the tagged status of an asynchronous synthesis job as
// reported by one poll.
type jobState int

const (
	stateQueued jobState = iota
	stateInProgress
	stateCompleted
	stateFailed
)

func parseJobState(s string) (jobState, bool) {
	switch strings.ToUpper(s) {
	case "QUEUED":
		return stateQueued, true
	case "IN_PROGRESS":
		return stateInProgress, true
	case "COMPLETED":
		return stateCompleted, true
	case "FAILED":
		return stateFailed, true
	}
	return stateQueued, false
}

// terminal reports whether no further polling can change the outcome.
func (s jobState) terminal() bool {
	return s == stateCompleted || s == stateFailed
}

// Config holds synthesis backend settings.
type Config struct {
	Endpoint        string
	AccessKey       string
	Model           string
	Voice           string
	PollInterval    time.Duration
	MaxPollAttempts int
	Timeout         time.Duration
}

// Client converts narration text into a downloadable audio resource
// through the backend's submit/poll/retrieve job protocol.
type Client struct {
	httpClient      *http.Client
	endpoint        string
	accessKey       string
	model           string
	voice           string
	pollInterval    time.Duration
	maxPollAttempts int
	logger          *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint:        strings.TrimRight(cfg.Endpoint, "/"),
		accessKey:       cfg.AccessKey,
		model:           cfg.Model,
		voice:           cfg.Voice,
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		logger:          logger.With("component", "synthesis"),
	}
}

type submitRequest struct {
	ModelID string      `json:"model_id"`
	Input   submitInput `json:"input"`
}

type submitInput struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	RequestID string        `json:"request_id"`
	Status    string        `json:"status"`
	Error     *string       `json:"error"`
	Output    *statusOutput `json:"output"`
}

type statusOutput struct {
	Audio *audioOutput `json:"audio"`
}

type audioOutput struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	URL         string `json:"url"`
}

// Synthesize submits one job for the given narration and waits for it
// to finish, returning the locator of the completed audio file.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	requestID, err := c.submit(ctx, text)
	if err != nil {
		return "", err
	}

	c.logger.Info("synthesis job submitted", "request_id", requestID)

	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		status, err := c.checkStatus(ctx, requestID)
		if err != nil {
			return "", err
		}

		state, known := parseJobState(status.Status)
		if !known {
			c.logger.Warn("unknown job status, still polling",
				"request_id", requestID,
				"status", status.Status,
			)
		}

		c.logger.Debug("polled synthesis job",
			"request_id", requestID,
			"attempt", attempt,
			"max_attempts", c.maxPollAttempts,
			"status", status.Status,
		)

		switch state {
		case stateCompleted:
			if status.Output == nil || status.Output.Audio == nil || status.Output.Audio.URL == "" {
				return "", fmt.Errorf("%w: request %s", ErrMissingOutput, requestID)
			}
			return status.Output.Audio.URL, nil
		case stateFailed:
			reason := "unknown reason"
			if status.Error != nil && *status.Error != "" {
				reason = *status.Error
			}
			return "", fmt.Errorf("%w: %s", ErrSynthesis, reason)
		}

		if attempt == c.maxPollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return "", fmt.Errorf("%w: no terminal status after %d attempts", ErrTimeout, c.maxPollAttempts)
}

func (c *Client) submit(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(submitRequest{
		ModelID: c.model,
		Input: submitInput{
			Text:  text,
			Voice: c.voice,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	url := c.endpoint + "/async-invoke"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmission, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var submitResp submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSubmission, err)
	}

	if submitResp.RequestID == "" {
		return "", fmt.Errorf("%w: no request id returned", ErrSubmission)
	}

	return submitResp.RequestID, nil
}

func (c *Client) checkStatus(ctx context.Context, requestID string) (*statusResponse, error) {
	url := fmt.Sprintf("%s/async-invoke/%s/status", c.endpoint, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("check status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("check status: unexpected status %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &status, nil
}

// Download fetches the finished audio bytes. It is a plain fetch, not
// part of the job protocol; the locator is already public.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrDownload, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrDownload, err)
	}

	return data, nil
}
