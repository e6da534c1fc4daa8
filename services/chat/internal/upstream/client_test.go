package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func collect(t *testing.T, c *Client, req Request) []Fragment {
	t.Helper()
	var got []Fragment
	if err := c.Stream(context.Background(), req, func(f Fragment) {
		got = append(got, f)
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	return got
}

func TestStreamSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-key" {
			t.Errorf("auth header = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["response_mode"] != "streaming" || body["query"] != "hello" {
			t.Errorf("unexpected request body: %v", body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"event":"message","answer":"Hel","conversation_id":"conv-9"}`,
			``,
			`data: {"event":"message","answer":"lo"}`,
			``,
			`data: {"event":"message_end","conversation_id":"conv-9"}`,
			``,
		}
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
	defer srv.Close()

	got := collect(t, New(srv.URL), Request{APIKey: "app-key", Query: "hello", User: "client-1"})
	if len(got) != 2 {
		t.Fatalf("got %d fragments: %+v", len(got), got)
	}
	if got[0].Content != "Hel" || got[0].ConversationID != "conv-9" {
		t.Fatalf("first fragment: %+v", got[0])
	}
	if got[1].Content != "lo" {
		t.Fatalf("second fragment: %+v", got[1])
	}
}

func TestStreamJSONFallbackRechunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"answer":          "one two three four five",
			"conversation_id": "conv-3",
		})
	}))
	defer srv.Close()

	got := collect(t, New(srv.URL), Request{APIKey: "app-key", Query: "q", User: "u"})
	if len(got) < 2 {
		t.Fatalf("answer not re-chunked: %+v", got)
	}
	var joined strings.Builder
	for _, f := range got {
		joined.WriteString(f.Content)
		if f.ConversationID != "conv-3" {
			t.Fatalf("fragment missing conversation id: %+v", f)
		}
	}
	if joined.String() != "one two three four five" {
		t.Fatalf("rejoined answer = %q", joined.String())
	}
}

func TestStreamAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	}))
	defer srv.Close()

	err := New(srv.URL).Stream(context.Background(), Request{APIKey: "bad", Query: "q", User: "u"}, func(Fragment) {
		t.Fatal("no fragments expected")
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid api key" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestRechunkGrouping(t *testing.T) {
	chunks := rechunk("a b c d e f g", 3)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks: %q", len(chunks), chunks)
	}
	if strings.Join(chunks, "") != "a b c d e f g" {
		t.Fatalf("chunks do not rejoin: %q", chunks)
	}
	if rechunk("", 3) != nil {
		t.Fatal("empty answer should produce no chunks")
	}
}
