package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// StatusError captures a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the OpenAI Assistants v2 REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Client authenticated with the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// threadAndRunRequest is the body for POST /threads/runs: a new thread with
// a single user message, executed against the given assistant.
type threadAndRunRequest struct {
	AssistantID string       `json:"assistant_id"`
	Thread      inlineThread `json:"thread"`
}

type inlineThread struct {
	Messages []threadMessage `json:"messages"`
}

type threadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateThreadAndRun opens a new thread containing one user message and
// starts an assistant run against it.
func (c *Client) CreateThreadAndRun(ctx context.Context, assistantID, message string) (Run, error) {
	body := threadAndRunRequest{
		AssistantID: assistantID,
		Thread: inlineThread{
			Messages: []threadMessage{{Role: "user", Content: message}},
		},
	}

	var run Run
	if err := c.do(ctx, http.MethodPost, "/threads/runs", body, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// RetrieveRun fetches the current state of a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs/%s", threadID, runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// messageList mirrors GET /threads/{id}/messages, newest first.
type messageList struct {
	Data []Message `json:"data"`
}

// ListMessages returns the thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var list messageList
	path := fmt.Sprintf("/threads/%s/messages", threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("agent: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("agent: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("agent: read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("agent: decode response: %w", err)
	}
	return nil
}
