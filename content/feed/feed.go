// Package feed pulls recent posts from the venue's social group wall.
// Posts are external items with a stable numeric id; downstream caching
// treats them as immutable once observed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Post is one wall post in plain-text form.
type Post struct {
	ID   int64
	Text string
	URL  string
	Date time.Time
}

// Source fetches the current set of recent posts. A failure applies to the
// whole fetch; there is no per-post error granularity.
type Source interface {
	FetchPosts(ctx context.Context) ([]Post, error)
}

// Config configures the wall API client.
type Config struct {
	BaseURL     string // default https://api.vk.com
	AccessToken string
	OwnerID     int64 // group ids are negative
	Count       int    // posts per request, default 20
	Version     string // API version, default 5.131
}

const (
	defaultBaseURL = "https://api.vk.com"
	defaultCount   = 20
	defaultVersion = "5.131"
)

// WallClient is the HTTP implementation of Source against a VK-style
// wall.get endpoint.
type WallClient struct {
	cfg    Config
	client *http.Client
}

// NewWallClient creates a wall API client. A nil httpClient gets a default
// with a 30s timeout.
func NewWallClient(cfg Config, httpClient *http.Client) *WallClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Count <= 0 {
		cfg.Count = defaultCount
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &WallClient{cfg: cfg, client: httpClient}
}

type wallResponse struct {
	Response *struct {
		Items []struct {
			ID   int64  `json:"id"`
			Date int64  `json:"date"`
			Text string `json:"text"`
		} `json:"items"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_msg"`
	} `json:"error"`
}

// FetchPosts returns the wall posts published since the first day of the
// current month, newest first as delivered by the API.
func (c *WallClient) FetchPosts(ctx context.Context) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/method/wall.get", c.cfg.BaseURL)

	params := url.Values{}
	params.Set("access_token", c.cfg.AccessToken)
	params.Set("owner_id", strconv.FormatInt(c.cfg.OwnerID, 10))
	params.Set("count", strconv.Itoa(c.cfg.Count))
	params.Set("v", c.cfg.Version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build wall request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch wall posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch wall posts: unexpected status %d", resp.StatusCode)
	}

	var payload wallResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode wall response: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("wall api error %d: %s", payload.Error.Code, payload.Error.Message)
	}
	if payload.Response == nil {
		return nil, fmt.Errorf("wall response missing items")
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var posts []Post
	for _, item := range payload.Response.Items {
		published := time.Unix(item.Date, 0)
		if published.Before(monthStart) {
			continue
		}
		posts = append(posts, Post{
			ID:   item.ID,
			Text: item.Text,
			URL:  fmt.Sprintf("https://vk.com/wall%d_%d", c.cfg.OwnerID, item.ID),
			Date: published,
		})
	}
	return posts, nil
}
