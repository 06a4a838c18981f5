// Package sync pushes local records to the remote archive under a quota and
// pulls the cloud copy back, tracking per-record synced state locally.
package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/artbox-app/artbox/internal/models"
)

// Client wraps the remote archive REST API with rate limiting and bearer
// authentication. An empty token means anonymous: callers short-circuit to
// local-only behavior before any request is made.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an archive API client. rateLimit is requests per minute.
func NewClient(baseURL, token string, rateLimit int) *Client {
	if rateLimit <= 0 {
		rateLimit = 60
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rateLimit)), rateLimit),
	}
}

// Authenticated reports whether a bearer identity is configured.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// RemoteRecord is the wire shape of one archived image.
type RemoteRecord struct {
	UUID           string          `json:"uuid"`
	Prompt         string          `json:"prompt"`
	PromptSummary  string          `json:"promptSummary,omitempty"`
	NegativePrompt string          `json:"negativePrompt,omitempty"`
	Model          string          `json:"model,omitempty"`
	Seed           int64           `json:"seed,omitempty"`
	CFG            float64         `json:"cfg,omitempty"`
	Width          int             `json:"width,omitempty"`
	Height         int             `json:"height,omitempty"`
	AspectRatio    string          `json:"aspectRatio,omitempty"`
	Loras          models.LoraList `json:"loras,omitempty"`
	Regional       models.Regional `json:"regionalPrompting"`
	IsFavorite     bool            `json:"isFavorite"`
	Tags           []string        `json:"tags"`
	Timestamp      time.Time       `json:"timestamp"`
	SyncPriority   int             `json:"syncPriority"`
	PayloadBase64  string          `json:"payloadBase64,omitempty"`
	ContentType    string          `json:"contentType,omitempty"`
}

// Payload decodes the base64 payload, if any.
func (r *RemoteRecord) Payload() ([]byte, error) {
	if r.PayloadBase64 == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(r.PayloadBase64)
}

// MetadataPatch is a cheap metadata-only update. Nil fields are untouched.
type MetadataPatch struct {
	Tags       *[]string `json:"tags,omitempty"`
	IsFavorite *bool     `json:"isFavorite,omitempty"`
}

// statusResponse mirrors GET /sync/status.
type statusResponse struct {
	SyncEnabled   bool      `json:"syncEnabled"`
	ImagesInCloud int       `json:"imagesInCloud"`
	ImageLimit    int       `json:"imageLimit"`
	LastSyncTime  time.Time `json:"lastSyncTime"`
	SyncedIDs     []string  `json:"syncedIds"`
}

// Status fetches the current cloud sync state.
func (c *Client) Status(ctx context.Context) (*models.SyncStatus, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &models.SyncStatus{
		Enabled:      resp.SyncEnabled,
		QuotaUsed:    resp.ImagesInCloud,
		QuotaLimit:   resp.ImageLimit,
		LastSyncTime: resp.LastSyncTime,
		SyncedIDs:    resp.SyncedIDs,
	}, nil
}

// UploadImage pushes metadata and payload as one unit. Idempotent per uuid.
func (c *Client) UploadImage(ctx context.Context, rec RemoteRecord) error {
	return c.do(ctx, http.MethodPost, "/sync/image", rec, nil)
}

// PatchImage issues a metadata-only update. The remote fails (404) when the
// uuid was never synced; that surfaces as ErrNotFound, never as silence.
func (c *Client) PatchImage(ctx context.Context, uuid string, patch MetadataPatch) error {
	return c.do(ctx, http.MethodPatch, "/sync/image/"+uuid, patch, nil)
}

// DeleteImage removes the cloud copy of a record.
func (c *Client) DeleteImage(ctx context.Context, uuid string) error {
	return c.do(ctx, http.MethodDelete, "/sync/image/"+uuid, nil, nil)
}

// ListImages fetches all remote records, optionally with payloads.
func (c *Client) ListImages(ctx context.Context, includeBlobs bool) ([]RemoteRecord, error) {
	var recs []RemoteRecord
	path := fmt.Sprintf("/sync/images?includeBlobs=%t", includeBlobs)
	if err := c.do(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// RemoteTag is the wire shape of a tag, identical to the local entity.
type RemoteTag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListTags fetches the remote tag set.
func (c *Client) ListTags(ctx context.Context) ([]RemoteTag, error) {
	var tags []RemoteTag
	if err := c.do(ctx, http.MethodGet, "/sync/tags", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// PushTag creates or updates a remote tag.
func (c *Client) PushTag(ctx context.Context, tag RemoteTag) error {
	return c.do(ctx, http.MethodPost, "/sync/tags", tag, nil)
}

// DeleteTag removes a remote tag. Callers treat ErrNotFound as confirmed
// deletion.
func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sync/tags/"+id, nil, nil)
}

// do performs one rate-limited, authenticated request and decodes the JSON
// response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s", ErrNotAuthenticated, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode == http.StatusInsufficientStorage, resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s %s", ErrQuotaExceeded, method, path)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
