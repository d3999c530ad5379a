// Package assets talks to the external image store that hosts character
// avatars. The store is a plain HTTP collaborator: the server posts raw
// image data and gets back a stable URL.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PlaceholderURL is used whenever avatar resolution fails or no avatar
// was supplied. Upload failures degrade to it instead of failing the
// character operation.
const PlaceholderURL = "https://static.castfold.io/avatars/placeholder.png"

// ErrUploadFailed is returned when the image store rejects an upload.
var ErrUploadFailed = errors.New("avatar upload failed")

// Resolver turns a client-supplied avatar reference into a hosted URL.
// A reference is either an already-hosted http(s) URL (passed through)
// or inline image data to be uploaded.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// HTTPUploader resolves avatar references against a remote image store
// over HTTP.
type HTTPUploader struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPUploader builds an uploader for the given image store endpoint.
func NewHTTPUploader(endpoint, apiKey string) *HTTPUploader {
	return &HTTPUploader{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Resolve passes hosted URLs through unchanged and uploads anything else
// as raw image data.
func (u *HTTPUploader) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	return u.upload(ctx, ref)
}

func (u *HTTPUploader) upload(ctx context.Context, data string) (string, error) {
	body, err := json.Marshal(map[string]string{"image": data})
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("%w: empty url in response", ErrUploadFailed)
	}
	return result.URL, nil
}

// StaticResolver returns a fixed URL for every reference. Used in tests
// and when no image store is configured.
type StaticResolver struct {
	URL string
	Err error
}

// Resolve implements Resolver.
func (r StaticResolver) Resolve(_ context.Context, ref string) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	if ref == "" {
		return "", nil
	}
	return r.URL, nil
}
