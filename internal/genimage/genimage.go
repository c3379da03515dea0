// Package genimage is the client for the external image-generation
// capability. The capability is a black box with high latency and
// non-idempotent side effects (provider-side billing), so every request
// is invoked at most once and never retried automatically.
package genimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fitcheckhq/fitcheck/internal/datauri"
)

// Request is one generation invocation: a text instruction plus the
// inline-encoded input images, subject first.
type Request struct {
	Prompt string
	Images []string // data URIs
}

// Result is a successful generation response.
type Result struct {
	ImageDataURI string
	Text         string
}

// Generator invokes the generation capability.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// StructuredGenerator invokes the capability for JSON output instead of
// pixels.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req Request, out any) error
}

// APIError carries the upstream failure so it can be surfaced verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generation API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("generation API error (status %d)", e.Status)
}

// Client talks to a Gemini-style generateContent REST endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Config holds the generation API settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient creates a generation client. Timeout defaults to two
// minutes; the capability routinely takes tens of seconds.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inlineData,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 body, no data: prefix
}

type apiContent struct {
	Parts []apiPart `json:"parts"`
}

type apiRequest struct {
	Contents         []apiContent  `json:"contents"`
	GenerationConfig *apiGenConfig `json:"generationConfig,omitempty"`
}

type apiGenConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content apiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate invokes the capability exactly once and returns the first
// image part of the response.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.call(ctx, req, &apiGenConfig{ResponseModalities: []string{"TEXT", "IMAGE"}})
	if err != nil {
		return nil, err
	}

	result := &Result{Text: resp.Text}
	if resp.ImageDataURI == "" {
		return nil, &APIError{Status: http.StatusOK, Message: "response contained no image"}
	}
	result.ImageDataURI = resp.ImageDataURI
	return result, nil
}

// GenerateStructured asks the capability for JSON output and decodes the
// text part into out. Used by flows that want descriptions rather than
// pixels.
func (c *Client) GenerateStructured(ctx context.Context, req Request, out any) error {
	resp, err := c.call(ctx, req, &apiGenConfig{ResponseMimeType: "application/json"})
	if err != nil {
		return err
	}
	if resp.Text == "" {
		return &APIError{Status: http.StatusOK, Message: "response contained no text"}
	}
	if err := json.Unmarshal([]byte(resp.Text), out); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, req Request, genCfg *apiGenConfig) (*Result, error) {
	parts := make([]apiPart, 0, len(req.Images)+1)
	if req.Prompt != "" {
		parts = append(parts, apiPart{Text: req.Prompt})
	}
	for _, img := range req.Images {
		mimeType, data, err := datauri.Parse(img)
		if err != nil {
			return nil, fmt.Errorf("invalid input image: %w", err)
		}
		parts = append(parts, apiPart{InlineData: &apiInlineData{
			MimeType: mimeType,
			Data:     base64Body(data),
		}})
	}

	body, err := json.Marshal(apiRequest{
		Contents:         []apiContent{{Parts: parts}},
		GenerationConfig: genCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}

	var parsed apiResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil && httpResp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("decode generation response: %w", jsonErr)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: httpResp.StatusCode}
		if parsed.Error != nil {
			apiErr.Message = parsed.Error.Message
		}
		return nil, apiErr
	}
	if len(parsed.Candidates) == 0 {
		return nil, &APIError{Status: httpResp.StatusCode, Message: "response contained no candidates"}
	}

	result := &Result{}
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.InlineData != nil && result.ImageDataURI == "" {
			data, decErr := decodeBody(part.InlineData.Data)
			if decErr != nil {
				return nil, fmt.Errorf("decode response image: %w", decErr)
			}
			result.ImageDataURI = datauri.Encode(data, part.InlineData.MimeType)
		}
		if part.Text != "" && result.Text == "" {
			result.Text = part.Text
		}
	}

	return result, nil
}
