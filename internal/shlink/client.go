// Package shlink shortens links through a Shlink instance.
package shlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"authentik-admin/internal/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type shortURLRequest struct {
	LongURL string   `json:"longUrl"`
	Tags    []string `json:"tags,omitempty"`
	Title   string   `json:"title,omitempty"`
}

type shortURLResponse struct {
	ShortURL string `json:"shortUrl"`
}

// Shorten creates a short URL tagged with kind.
func (c *Client) Shorten(ctx context.Context, longURL, kind, title string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: shortener is not configured", domain.ErrShortenFailed)
	}

	body := shortURLRequest{LongURL: longURL, Title: title}
	if kind != "" {
		body.Tags = []string{kind}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v3/short-urls", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrShortenFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: %s: %s", domain.ErrShortenFailed, resp.Status, strings.TrimSpace(string(msg)))
	}

	var out shortURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", domain.ErrShortenFailed, err)
	}
	if out.ShortURL == "" {
		return "", fmt.Errorf("%w: empty short url", domain.ErrShortenFailed)
	}
	return out.ShortURL, nil
}
