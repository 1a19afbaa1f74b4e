// Package remote is the HTTP client for the maelstrom API. It serves as the
// note writer and identity source of the capture pipeline.
package remote

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

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/capture"
	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/models"
)

var (
	_ capture.NoteWriter = (*Client)(nil)
	_ capture.Identity   = (*Client)(nil)
)

// Client talks to a maelstrom server.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL. token may be empty when the
// server runs with auth disabled.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends a request and decodes a 2xx JSON response into out when non-nil.
// It returns the status code so callers can tell 200 from 201.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("remote: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api"+path, body)
	if err != nil {
		return 0, fmt.Errorf("remote: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("remote: decode %s: %w", path, err)
		}
		return resp.StatusCode, nil
	}

	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
	msg := eb.Error
	if msg == "" {
		msg = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return resp.StatusCode, apperr.ErrUnauthenticated
	case http.StatusNotFound:
		return resp.StatusCode, fmt.Errorf("%w: %s", apperr.ErrNotFound, msg)
	case http.StatusBadRequest:
		return resp.StatusCode, fmt.Errorf("%w: %s", apperr.ErrInvalidNote, msg)
	default:
		return resp.StatusCode, fmt.Errorf("remote: %s %s: %s", method, path, msg)
	}
}

// CurrentUser returns the id the server resolves the client's credentials to.
// Rejected credentials yield apperr.ErrUnauthenticated.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var me struct {
		UserID string `json:"user_id"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/me", nil, &me); err != nil {
		return "", err
	}
	if me.UserID == "" {
		return "", apperr.ErrUnauthenticated
	}
	return me.UserID, nil
}

// CreateNote stores content and returns the stored note.
func (c *Client) CreateNote(ctx context.Context, content string) (*models.Note, error) {
	var n models.Note
	if _, err := c.do(ctx, http.MethodPost, "/notes", map[string]string{"content": content}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// InsertNote implements capture.NoteWriter. The server attributes the note to
// the authenticated user, so userID only guards against writing anonymously.
func (c *Client) InsertNote(ctx context.Context, userID, content string) error {
	if userID == "" {
		return apperr.ErrUnauthenticated
	}
	_, err := c.CreateNote(ctx, content)
	return err
}

// Notes lists the newest notes.
func (c *Client) Notes(ctx context.Context, limit int) ([]models.Note, error) {
	var out struct {
		Notes []models.Note `json:"notes"`
	}
	path := "/notes"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// NotesByIDs fetches notes in the order of ids.
func (c *Client) NotesByIDs(ctx context.Context, ids []string) ([]models.Note, error) {
	var out struct {
		Notes []models.Note `json:"notes"`
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	if _, err := c.do(ctx, http.MethodGet, "/notes?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// Generate asks the server for a new undercurrent. Too few notes yields an
// error wrapping apperr.ErrInsufficientData with the server's message.
func (c *Client) Generate(ctx context.Context, tf insight.Timeframe) (*models.Undercurrent, error) {
	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodPost, "/undercurrents/generate", map[string]string{"timeframe": string(tf)}, &raw)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		var eb errorBody
		if err := json.Unmarshal(raw, &eb); err != nil {
			return nil, fmt.Errorf("remote: decode generate: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", apperr.ErrInsufficientData, eb.Message)
	}
	var u models.Undercurrent
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("remote: decode generate: %w", err)
	}
	return &u, nil
}

// Undercurrents lists undercurrents, newest first.
func (c *Client) Undercurrents(ctx context.Context) ([]models.Undercurrent, error) {
	var out struct {
		Undercurrents []models.Undercurrent `json:"undercurrents"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/undercurrents", nil, &out); err != nil {
		return nil, err
	}
	return out.Undercurrents, nil
}

// Undercurrent fetches one undercurrent.
func (c *Client) Undercurrent(ctx context.Context, id string) (*models.Undercurrent, error) {
	var u models.Undercurrent
	if _, err := c.do(ctx, http.MethodGet, "/undercurrents/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUndercurrent removes one undercurrent.
func (c *Client) DeleteUndercurrent(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/undercurrents/"+url.PathEscape(id), nil, nil)
	return err
}
