package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by GetPost when the id has not been assigned yet.
var ErrNotFound = errors.New("post not found")

// Post is a ledger record as returned by the API.
type Post struct {
	ID         uint64 `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	ContentRef string `json:"content_ref" yaml:"content_ref"`
	Author     string `json:"author" yaml:"author"`
	CreatedAt  int64  `json:"created_at" yaml:"created_at"`
	PrevHash   string `json:"prev_hash" yaml:"prev_hash"`
	Hash       string `json:"hash" yaml:"hash"`
}

// PostCreated is a notification received from Watch.
type PostCreated struct {
	ID         uint64 `json:"id"`
	Title      string `json:"title"`
	ContentRef string `json:"content_ref"`
	Author     string `json:"author"`
	CreatedAt  int64  `json:"created_at"`
}

// Overview summarises the ledger.
type Overview struct {
	Posts uint64 `json:"posts"`
	Root  string `json:"root"`
}

// Client is the postledger SDK entry point.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
	cache       *postCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a caller token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithPostCache memoises GetPost results.
func WithPostCache() Option {
	return func(c *Client) error {
		c.cache = &postCache{posts: make(map[uint64]*Post)}
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed ledgerd.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 10 * time.Second,
		}
		return nil
	}
}

// New creates a Client for the ledgerd at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("base URL must not be empty")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// CreatePost appends a post authored by the token's caller and returns its id.
func (c *Client) CreatePost(ctx context.Context, title, contentRef string) (uint64, error) {
	payload, err := json.Marshal(map[string]string{"title": title, "content_ref": contentRef})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/posts", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		ID uint64 `json:"id"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetPost fetches a single post. It returns ErrNotFound for an unassigned id.
func (c *Client) GetPost(ctx context.Context, id uint64) (*Post, error) {
	if c.cache != nil {
		if p, ok := c.cache.get(id); ok {
			return p, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/posts/"+strconv.FormatUint(id, 10), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var p Post
	if err := c.doJSON(req, &p); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.set(&p)
	}
	return &p, nil
}

// ListPosts returns every post in id order.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/posts", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var wrapper struct {
		Posts []Post `json:"posts"`
	}
	if err := c.doJSON(req, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Posts == nil {
		wrapper.Posts = []Post{}
	}
	return wrapper.Posts, nil
}

// Count returns the number of posts.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/posts/count", nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	var resp struct {
		Count uint64 `json:"count"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Overview returns the post count and the current chain root.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/ledger", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var o Overview
	if err := c.doJSON(req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Verify asks the server to check the hash chain. reason is set when the
// chain is invalid.
func (c *Client) Verify(ctx context.Context) (ok bool, reason string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/ledger/verify", nil)
	if err != nil {
		return false, "", fmt.Errorf("build request: %w", err)
	}
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return false, "", err
	}
	return resp.Valid, resp.Error, nil
}

// doJSON executes req and decodes a successful response into out.
func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// the full list can be large
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", req.URL.Path, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %s", apiError(body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, apiError(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError extracts the "error" field of a JSON error body.
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// --- immutable post cache ---

type postCache struct {
	mu    sync.RWMutex
	posts map[uint64]*Post
}

func (pc *postCache) get(id uint64) (*Post, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	p, ok := pc.posts[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (pc *postCache) set(p *Post) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	cp := *p
	pc.posts[p.ID] = &cp
}
