// Package datauri converts between binary image payloads and the
// self-describing inline encoding (`data:<mime>;base64,<body>`) used to
// ship images to the remote store and the generation capability.
package datauri

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const scheme = "data:"

// Encode wraps raw bytes in an inline data URI.
func Encode(data []byte, mimeType string) string {
	return scheme + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURI reports whether the locator is already inline-encoded.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// Parse splits an inline data URI back into its MIME type and raw bytes.
func Parse(uri string) (mimeType string, data []byte, err error) {
	if !IsDataURI(uri) {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, body, ok := strings.Cut(uri[len(scheme):], ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI: missing body")
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	if mimeType == meta {
		return "", nil, fmt.Errorf("unsupported data URI encoding: %q", meta)
	}
	data, err = base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI body: %w", err)
	}
	return mimeType, data, nil
}

// FetchError reports a failed dereference of an image locator. It is
// fatal to the request that needed the bytes.
type FetchError struct {
	Locator string
	Status  int // 0 for transport errors
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Locator, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Resolver turns image locators into inline data URIs.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a resolver with a sensible fetch timeout when the
// provided client is nil.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{client: client}
}

// Resolve returns the inline form of the locator. Inline input is
// returned unchanged, never re-encoded. URLs are fetched and encoded
// using the response Content-Type, falling back to content sniffing.
func (r *Resolver) Resolve(ctx context.Context, locator string) (string, error) {
	if IsDataURI(locator) {
		return locator, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", &FetchError{Locator: locator, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &FetchError{Locator: locator, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Locator: locator, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Locator: locator, Err: err}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	return Encode(data, mimeType), nil
}
