package knowledge

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

// Config holds managed knowledge-base API settings.
type Config struct {
	BaseURL     string
	WorkspaceID string
	KBID        string
	APIKey      string
	Timeout     time.Duration
}

// Client uploads corpus documents into the knowledge base the script
// backend draws from.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	workspaceID string
	kbID        string
	apiKey      string
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		workspaceID: cfg.WorkspaceID,
		kbID:        cfg.KBID,
		apiKey:      cfg.APIKey,
		logger:      logger.With("component", "knowledge"),
	}
}

type uploadRequest struct {
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Metadata uploadMetadata `json:"metadata"`
}

type uploadMetadata struct {
	Source     string `json:"source"`
	UploadedAt string `json:"uploadedAt"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

func (c *Client) documentsURL() string {
	return fmt.Sprintf("%s/api/workspaces/%s/knowledge-bases/%s/documents",
		c.baseURL, c.workspaceID, c.kbID)
}

// UploadDocument stores a named document and returns its id.
func (c *Client) UploadDocument(ctx context.Context, name, content string) (string, error) {
	body, err := json.Marshal(uploadRequest{
		Name:    name,
		Content: content,
		Metadata: uploadMetadata{
			Source:     "reddit-daily-sync",
			UploadedAt: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.documentsURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload document %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload document %s: status %d: %s",
			name, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var uploadResp uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	c.logger.Debug("document uploaded", "name", name, "id", uploadResp.ID)

	return uploadResp.ID, nil
}

// DeleteDocument removes a document previously uploaded, used to
// expire stale corpus days.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	url := c.documentsURL() + "/" + documentID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delete document %s: status %d: %s",
			documentID, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}
