package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kiln/internal/api"
	"kiln/internal/jobs"
	"kiln/internal/stream"
)

const defaultRequestTimeout = 15 * time.Second

// Client talks to the job service's REST API.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	// No timeout - generation streams stay open until the server finishes
	// or the caller cancels.
	streamHTTP *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client used for single-shot calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithRequestTimeout adjusts the timeout applied to single-shot calls.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout}
		}
	}
}

// New constructs a job service client.
func New(baseURL, apiToken string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("job service base URL required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   strings.TrimSpace(apiToken),
		http:       &http.Client{Timeout: defaultRequestTimeout},
		streamHTTP: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FetchJobs performs one authoritative fetch of the full job list.
func (c *Client) FetchJobs(ctx context.Context) ([]jobs.Job, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}

	var listing api.JobList
	if err := c.do(req, &listing); err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}

	converted, err := api.ToJobs(listing.Results)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	return converted, nil
}

// SubmitAnalyze submits a new analysis job and returns the authoritative
// record the server created for it.
func (c *Client) SubmitAnalyze(ctx context.Context, request api.AnalyzeRequest) (jobs.Job, error) {
	if strings.TrimSpace(request.Name) == "" {
		return jobs.Job{}, errors.New("submit analyze: name required")
	}
	if strings.TrimSpace(request.SourceRef) == "" {
		return jobs.Job{}, errors.New("submit analyze: source_ref required")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/jobs/analyze", request)
	if err != nil {
		return jobs.Job{}, err
	}

	var record api.JobRecord
	if err := c.do(req, &record); err != nil {
		return jobs.Job{}, fmt.Errorf("submit analyze: %w", err)
	}

	job, err := api.ToJob(record)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("submit analyze: %w", err)
	}
	return job, nil
}

// Generate drives the token stream for a job, emitting frames as they
// decode. Cancelling ctx aborts the underlying read; see stream.Decode for
// the terminal-condition contract.
func (c *Client) Generate(ctx context.Context, jobID int64, request api.GenerateRequest, emit func(stream.Frame)) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/jobs/"+strconv.FormatInt(jobID, 10)+"/generate", request)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("generate: %w", readStatusError(resp))
	}
	return stream.Decode(ctx, resp.Body, emit)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return readStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
