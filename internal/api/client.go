package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deckhand/internal/domain"
	"deckhand/internal/infra"
)

// Options configures the presentation job API client.
type Options struct {
	BaseURL        string
	Token          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the presentation job API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *infra.Logger
}

// CreateRequest captures the inputs for minting a new presentation.
type CreateRequest struct {
	Name   string         `json:"name"`
	Topic  string         `json:"topic,omitempty"`
	Author string         `json:"author,omitempty"`
	Slides []domain.Slide `json:"slides,omitempty"`
}

type listResponse struct {
	Items []domain.Presentation `json:"items"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Create mints a new presentation resource with all steps pending.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*domain.Presentation, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("api: presentation name is required")
	}
	var created domain.Presentation
	if err := c.doJSON(ctx, http.MethodPost, "/presentations", req, &created); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("presentation_id", created.ID).Msg("api: created presentation")
	return &created, nil
}

// Get fetches a presentation by id. A missing id yields domain.ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (*domain.Presentation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("api: presentation id is required")
	}
	var p domain.Presentation
	if err := c.doJSON(ctx, http.MethodGet, "/presentations/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List fetches every presentation visible to the caller.
func (c *Client) List(ctx context.Context) ([]domain.Presentation, error) {
	var resp listResponse
	if err := c.doJSON(ctx, http.MethodGet, "/presentations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Update sends the full presentation body and returns the server-canonical
// echo. The server owns step state, so client-side step edits do not stick.
func (c *Client) Update(ctx context.Context, p *domain.Presentation) (*domain.Presentation, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return nil, errors.New("api: presentation with id is required")
	}
	var updated domain.Presentation
	if err := c.doJSON(ctx, http.MethodPut, "/presentations/"+url.PathEscape(p.ID), p, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// RunStep asks the server to start one pipeline step. Params may be zero for
// server defaults.
func (c *Client) RunStep(ctx context.Context, id string, step domain.StepName, params domain.RunStepParams) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("api: presentation id is required")
	}
	if !domain.KnownStep(step) {
		return fmt.Errorf("api: %w: %s", domain.ErrStepUnknown, step)
	}
	params.Normalize()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("api: run step params: %w", err)
	}
	var body any
	if !params.Empty() {
		body = params
	}
	path := "/presentations/" + url.PathEscape(id) + "/steps/" + url.PathEscape(string(step)) + "/run"
	if err := c.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return err
	}
	c.logger.Debug().Str("presentation_id", id).Str("step", string(step)).Msg("api: step run accepted")
	return nil
}

// Delete removes a single presentation.
func (c *Client) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("api: presentation id is required")
	}
	return c.doJSON(ctx, http.MethodDelete, "/presentations/"+url.PathEscape(id), nil, nil)
}

// DeleteBatch removes several presentations in one call. Unknown ids are
// skipped server-side rather than failing the batch.
func (c *Client) DeleteBatch(ctx context.Context, ids []string) error {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return errors.New("api: at least one presentation id is required")
	}
	return c.doJSON(ctx, http.MethodPost, "/presentations/batch-delete", batchDeleteRequest{IDs: cleaned}, nil)
}

// DownloadPPTX streams the compiled deck. The caller must close the reader.
// The suggested filename comes from Content-Disposition, falling back to
// "<id>.pptx".
func (c *Client) DownloadPPTX(ctx context.Context, id string) (io.ReadCloser, string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", errors.New("api: presentation id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PPTXDownloadURL(id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("api: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("api: http request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return nil, "", c.decodeError(resp.StatusCode, raw)
	}
	filename := id + ".pptx"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				filename = name
			}
		}
	}
	c.logger.Debug().Str("presentation_id", id).Str("filename", filename).Msg("api: pptx download started")
	return resp.Body, filename, nil
}

// PPTXDownloadURL returns the direct download location for a compiled deck.
func (c *Client) PPTXDownloadURL(id string) string {
	return c.baseURL + "/presentations/" + url.PathEscape(strings.TrimSpace(id)) + "/download-pptx"
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return c.decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// decodeError maps the API error envelope onto domain sentinels where the
// code is recognized.
func (c *Client) decodeError(status int, raw []byte) error {
	var detail errorResponse
	code := ""
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		code = detail.Error.Code
		message = detail.Error.Message
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("api: %w: %s", domain.ErrNotFound, message)
	case code == "step_busy":
		return fmt.Errorf("api: %w: %s", domain.ErrStepBusy, message)
	case code == "unknown_step":
		return fmt.Errorf("api: %w: %s", domain.ErrStepUnknown, message)
	case code != "":
		return fmt.Errorf("api: %s (%s)", message, code)
	}
	return fmt.Errorf("api: status %d: %s", status, message)
}
