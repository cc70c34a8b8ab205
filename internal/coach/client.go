// Package coach wraps the external answer-evaluation service. The engine
// treats feedback content as opaque; only shouldIterate and the optional
// gate verdict are interpreted.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request carries everything the coaching service needs to evaluate one
// answer submission.
type Request struct {
	SessionID         string            `json:"sessionId"`
	QuestionID        string            `json:"questionId"`
	Prompt            string            `json:"prompt"`
	Answer            string            `json:"answer"`
	Iteration         int               `json:"iteration"`
	Profile           json.RawMessage   `json:"profile,omitempty"`
	PriorAnswers      map[string]string `json:"priorAnswers,omitempty"`
	History           []HistoryItem     `json:"history,omitempty"`
	SpecificityChecks []string          `json:"specificityChecks,omitempty"`
}

// HistoryItem is one earlier coaching round for the same question, capped by
// the caller to the most recent rounds.
type HistoryItem struct {
	Answer    string          `json:"answer"`
	Feedback  json.RawMessage `json:"feedback,omitempty"`
	Iteration int             `json:"iteration"`
}

// GateUpdate is the coach's verdict for the gate linked to the question.
type GateUpdate struct {
	GateID string `json:"gateId"`
	Status string `json:"status"`
}

// Result is the evaluation outcome. Feedback stays opaque to the engine.
type Result struct {
	Feedback      json.RawMessage `json:"feedback"`
	ShouldIterate bool            `json:"shouldIterate"`
	GateUpdate    *GateUpdate     `json:"gateUpdate,omitempty"`
}

// Client talks to the coaching service over HTTP with a bounded timeout.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Evaluate performs a single evaluation attempt. Retrying is the caller's
// policy, not the client's; see Service.
func (c *Client) Evaluate(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/evaluate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build evaluation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call coaching service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode evaluation response: %w", err)
	}
	return &result, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("coaching service returned %d: %s", e.code, e.body)
}

// retryable reports whether a failed attempt is worth repeating: transport
// errors and server-side failures are, a 4xx rejection is not.
func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code >= 500
	}
	return true
}
