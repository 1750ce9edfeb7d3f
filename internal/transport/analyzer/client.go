// Package analyzer calls the document layout analysis service.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/layout"
)

// Config holds the analyzer connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client is a REST client for the layout analysis service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// New creates an analyzer client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Analyze submits document bytes for layout analysis.
func (c *Client) Analyze(ctx context.Context, fileName string, content []byte) (layout.Result, error) {
	u := fmt.Sprintf("%s/analyze?file=%s", c.baseURL, url.QueryEscape(fileName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(content))
	if err != nil {
		return layout.Result{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return layout.Result{}, fmt.Errorf("analyze %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return layout.Result{}, fmt.Errorf("analyze %s: status %d: %s",
			fileName, resp.StatusCode, readSnippet(resp.Body))
	}

	var dto analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return layout.Result{}, fmt.Errorf("analyze %s: decode: %w", fileName, err)
	}

	c.logger.Debug("document analyzed",
		zap.String("file", fileName),
		zap.Int("paragraphs", len(dto.Paragraphs)),
		zap.Int("figures", len(dto.Figures)),
		zap.Duration("took", time.Since(start)),
	)
	return dto.toDomain(), nil
}

// FigureCrop fetches the rendered crop of one detected figure.
func (c *Client) FigureCrop(ctx context.Context, resultID, figureID string) ([]byte, error) {
	u := fmt.Sprintf("%s/results/%s/figures/%s",
		c.baseURL, url.PathEscape(resultID), url.PathEscape(figureID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("figure %s/%s: %w", resultID, figureID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrFigureNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("figure %s/%s: status %d: %s",
			resultID, figureID, resp.StatusCode, readSnippet(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("figure %s/%s: read: %w", resultID, figureID, err)
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// readSnippet returns up to 256 bytes of the response body for error context.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
