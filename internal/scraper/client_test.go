// internal/scraper/client_test.go
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(retries int) *HTTPClient {
	return NewHTTPClient(ClientConfig{
		Timeout:       5 * time.Second,
		RetryAttempts: retries,
		RetryDelay:    time.Millisecond,
		UserAgents:    []string{"TestAgent/1.0", "TestAgent/2.0"},
		RateLimit:     1000,
		RateBurst:     100,
	})
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (o *recordingObserver) ObserveRequest(method, host string, statusCode int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, statusCode)
}

func TestHTTPClient_Get_Success(t *testing.T) {
	var (
		mu     sync.Mutex
		agents []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.UserAgent())
		mu.Unlock()
		w.Write([]byte("<html><body>Test Content</body></html>"))
	}))
	defer server.Close()

	client := testClient(0)
	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Expected successful request, got error: %v", err)
		}
		resp.Body.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	if len(agents) != 2 || agents[0] != "TestAgent/1.0" || agents[1] != "TestAgent/2.0" {
		t.Errorf("Expected rotated user agents, got %v", agents)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	observer := &recordingObserver{}
	client := testClient(3)
	client.observer = observer

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if !out.OK {
		t.Error("Expected decoded body")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(observer.statuses) != 3 || observer.statuses[2] != http.StatusOK {
		t.Errorf("Unexpected observed statuses %v", observer.statuses)
	}
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(3).Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
	if IsRetryableError(err) {
		t.Error("404 should not be retryable")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestHTTPClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var in map[string]string
		json.Unmarshal(body, &in)
		json.NewEncoder(w).Encode(map[string]string{"echo": in["zip"]})
	}))
	defer server.Close()

	var out map[string]string
	err := testClient(0).PostJSON(context.Background(), server.URL, map[string]string{"zip": "10001"}, &out)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if out["echo"] != "10001" {
		t.Errorf("Expected echo 10001, got %v", out)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(5)
	client.retryDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, server.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestHTTPClient_GetDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1 class="name">Store 7</h1></body></html>`))
	}))
	defer server.Close()

	doc, err := testClient(0).GetDocument(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got := doc.Find("h1.name").Text(); got != "Store 7" {
		t.Errorf("Expected heading text, got %q", got)
	}
	if doc.Url == nil {
		t.Error("Expected document URL to be set")
	}
}

func TestShouldRetryStatusCode(t *testing.T) {
	retry := []int{429, 500, 502, 503, 504, 520, 524}
	noRetry := []int{200, 301, 400, 401, 403, 404}
	for _, code := range retry {
		if !ShouldRetryStatusCode(code) {
			t.Errorf("Expected %d to be retryable", code)
		}
	}
	for _, code := range noRetry {
		if ShouldRetryStatusCode(code) {
			t.Errorf("Expected %d not to be retryable", code)
		}
	}
}

func TestBlockedURLPatterns(t *testing.T) {
	patterns := BlockedURLPatterns()
	if len(patterns) != len(BlockedDomains)+len(BlockedExtensions) {
		t.Fatalf("Expected one pattern per blocked domain and extension, got %d", len(patterns))
	}
	want := map[string]bool{"*.png*": true, "*.woff2*": true, "*googletagmanager.com*": true, "*.facebook.net*": true}
	for _, p := range patterns {
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("Missing patterns %v in %v", want, patterns)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{100 * time.Millisecond, 0, 100 * time.Millisecond},
		{100 * time.Millisecond, 3, 800 * time.Millisecond},
		{time.Second, 5, maxBackoff},
		{time.Second, 40, maxBackoff},
		{time.Millisecond, 1000, maxBackoff},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.base, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%s, %d) = %s, want %s", tt.base, tt.attempt, got, tt.want)
		}
	}
	for attempt := 0; attempt < 128; attempt++ {
		if got := backoffDelay(time.Second, attempt); got <= 0 || got > maxBackoff {
			t.Fatalf("backoffDelay(1s, %d) = %s out of (0, %s]", attempt, got, maxBackoff)
		}
	}
}

func TestWaitForRetry_LargeAttemptStillWaits(t *testing.T) {
	c := NewHTTPClient(ClientConfig{RetryDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.waitForRetry(ctx, 64); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the capped wait to outlast the context, got %v", err)
	}
}
