package jobledgersdk

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
)

// Client is a minimal Jobledger HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Amount is a quantity of money in a currency's minor units.
type Amount struct {
	Currency string `json:"currency"`
	Quantity int64  `json:"quantity"`
}

// Snapshot is one accepted version of a job.
type Snapshot struct {
	JobID     string         `json:"job_id"`
	Version   int64          `json:"version"`
	Command   string         `json:"command"`
	State     map[string]any `json:"state"`
	CreatedAt string         `json:"created_at"`
}

// JobRecord is the job header returned by list endpoints.
type JobRecord struct {
	ID         string `json:"id"`
	Developer  string `json:"developer"`
	Contractor string `json:"contractor"`
	Currency   string `json:"currency"`
	Version    int64  `json:"version"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Document is a registered document record.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	Owner     string `json:"owner"`
	CreatedAt string `json:"created_at"`
}

// Event is a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	JobID      string `json:"job_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// CashEntry is one owned amount inside a cash movement.
type CashEntry struct {
	Owner  string `json:"owner"`
	Amount Amount `json:"amount"`
}

// CashMovement accompanies a pay-milestone transition.
type CashMovement struct {
	Inputs  []CashEntry `json:"inputs"`
	Outputs []CashEntry `json:"outputs"`
}

// TransitionRequest names a command against a stored job.
type TransitionRequest struct {
	Command        string         `json:"command"`
	MilestoneIndex int            `json:"milestone_index"`
	TaskIndex      int            `json:"task_index,omitempty"`
	Signers        []string       `json:"signers"`
	Cash           []CashMovement `json:"cash,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// AgreeJob records a new job; the body follows the agree-job schema.
func (c *Client) AgreeJob(ctx context.Context, job map[string]any) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodPost, "v0/jobs", job, &resp)
	return resp, err
}

// Jobs lists job headers.
func (c *Client) Jobs(ctx context.Context) ([]JobRecord, error) {
	var resp []JobRecord
	err := c.do(ctx, http.MethodGet, "v0/jobs", nil, &resp)
	return resp, err
}

// Job fetches the latest snapshot of a job.
func (c *Client) Job(ctx context.Context, jobID string) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, "v0/jobs/"+url.PathEscape(jobID), nil, &resp)
	return resp, err
}

// History fetches every accepted version of a job.
func (c *Client) History(ctx context.Context, jobID string) ([]Snapshot, error) {
	var resp []Snapshot
	endpoint := fmt.Sprintf("v0/jobs/%s/history", url.PathEscape(jobID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ProposeTransition submits a transition against the latest snapshot.
func (c *Client) ProposeTransition(ctx context.Context, jobID string, req TransitionRequest) (Snapshot, error) {
	var resp Snapshot
	endpoint := fmt.Sprintf("v0/jobs/%s/transitions", url.PathEscape(jobID))
	err := c.do(ctx, http.MethodPost, endpoint, req, &resp)
	return resp, err
}

// RegisterDocument registers a document record.
func (c *Client) RegisterDocument(ctx context.Context, name, hash, owner string) (Document, error) {
	body := map[string]any{
		"name":  name,
		"hash":  hash,
		"owner": owner,
	}
	var resp Document
	err := c.do(ctx, http.MethodPost, "v0/documents", body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int, jobID string) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if jobID != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%sjob_id=%s", endpoint, sep, url.QueryEscape(jobID))
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
