// Package upstream talks to the Dify-compatible chat completion API that
// personas are configured against.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fragment is one incremental piece of a reply.
type Fragment struct {
	Content        string
	ConversationID string
}

// Request describes one chat turn to stream.
type Request struct {
	APIKey         string
	Query          string
	ConversationID string
	User           string
}

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream api error (status %d): %s", e.Status, e.Message)
}

// Client streams chat completions. Responses normally arrive as SSE; some
// deployments answer with a single JSON blob instead, which is re-chunked
// so downstream consumers always see a stream.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	ConversationID string         `json:"conversation_id,omitempty"`
	User           string         `json:"user"`
	Files          []any          `json:"files"`
}

type chatEvent struct {
	Event          string `json:"event"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

// Stream runs one chat turn against the upstream API, invoking emit for
// every reply fragment in arrival order.
func (c *Client) Stream(ctx context.Context, req Request, emit func(Fragment)) error {
	payload := chatRequest{
		Inputs:         map[string]any{},
		Query:          req.Query,
		ResponseMode:   "streaming",
		ConversationID: req.ConversationID,
		User:           req.User,
		Files:          []any{},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return consumeSSE(resp.Body, emit)
	}
	return consumeJSON(resp.Body, emit)
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}

func consumeSSE(r io.Reader, emit func(Fragment)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "" || data == "[DONE]" {
			continue
		}
		var ev chatEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Tolerate malformed keep-alive lines.
			continue
		}
		if ev.Event == "message_end" {
			continue
		}
		if ev.Answer != "" || ev.ConversationID != "" {
			emit(Fragment{Content: ev.Answer, ConversationID: ev.ConversationID})
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read upstream stream: %w", err)
	}
	return nil
}

// consumeJSON handles upstreams that ignore streaming mode: the complete
// answer is split into small word groups so consumers still observe a
// chunked reply.
func consumeJSON(r io.Reader, emit func(Fragment)) error {
	var body struct {
		Answer         string `json:"answer"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4<<20)).Decode(&body); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	for _, chunk := range rechunk(body.Answer, 3) {
		emit(Fragment{Content: chunk, ConversationID: body.ConversationID})
	}
	return nil
}

func rechunk(answer string, wordsPer int) []string {
	words := strings.Fields(answer)
	if len(words) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(words); i += wordsPer {
		end := i + wordsPer
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if end < len(words) {
			chunk += " "
		}
		out = append(out, chunk)
	}
	return out
}
