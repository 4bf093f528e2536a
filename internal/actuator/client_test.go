package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler func(req chatRequest) chatResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(handler(req))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func textResponse(text string) chatResponse {
	var resp chatResponse
	resp.Choices = []struct {
		Message chatMessage `json:"message"`
	}{{Message: chatMessage{Role: "assistant", Content: text}}}
	return resp
}

func TestOpenAICompatComplete(t *testing.T) {
	var got chatRequest
	srv := completionServer(t, func(req chatRequest) chatResponse {
		got = req
		return textResponse("10")
	})

	c := NewOpenAICompatClient(srv.URL, "test-key", "test-model", 5*time.Second)
	out, err := c.Complete(context.Background(), "double 5")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "10" {
		t.Errorf("out = %q, want 10", out)
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q, want test-model", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAICompatCompleteWithSystem(t *testing.T) {
	var got chatRequest
	srv := completionServer(t, func(req chatRequest) chatResponse {
		got = req
		return textResponse("ok")
	})

	c := NewOpenAICompatClient(srv.URL, "", "m", 5*time.Second)
	if _, err := c.CompleteWithSystem(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAICompatEmptyResponse(t *testing.T) {
	srv := completionServer(t, func(chatRequest) chatResponse {
		return chatResponse{}
	})

	c := NewOpenAICompatClient(srv.URL, "", "m", 5*time.Second)
	_, err := c.Complete(context.Background(), "p")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("got %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAICompatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAICompatClient(srv.URL, "", "m", 5*time.Second)
	_, err := c.Complete(context.Background(), "p")
	if err == nil {
		t.Fatal("non-200 status should fail")
	}
}
