// Package oembed provides a client for the YouTube oEmbed endpoint.
package oembed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultEndpoint is the public YouTube oEmbed endpoint.
const DefaultEndpoint = "https://www.youtube.com/oembed"

// ErrNoTitle is returned when the endpoint answers without a title.
var ErrNoTitle = errors.New("oembed response has no title")

// Config represents oEmbed client configuration.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Response is the subset of an oEmbed document the player uses.
type Response struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Client looks up video titles. Successful lookups are cached by URL.
type Client struct {
	endpoint   string
	httpClient *http.Client

	cache   map[string]string
	cacheMu sync.RWMutex
}

// New creates a new oEmbed client.
func New(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		cache:      make(map[string]string),
	}
}

// Title returns the display title of the video at videoURL.
func (c *Client) Title(ctx context.Context, videoURL string) (string, error) {
	c.cacheMu.RLock()
	title, ok := c.cache[videoURL]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("oembed: cache hit: url=%s", videoURL)
		return title, nil
	}

	resp, err := c.Lookup(ctx, videoURL)
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(resp.Title)
	if title == "" {
		return "", ErrNoTitle
	}

	c.cacheMu.Lock()
	c.cache[videoURL] = title
	c.cacheMu.Unlock()
	return title, nil
}

// Lookup fetches the oEmbed document for videoURL.
func (c *Client) Lookup(ctx context.Context, videoURL string) (*Response, error) {
	params := url.Values{}
	params.Set("url", videoURL)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("oembed endpoint returned %d", resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	return &out, nil
}
