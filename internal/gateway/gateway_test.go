package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(url string, retryCount int) *HTTPClient {
	return NewClient(Options{
		URL:           url,
		Timeout:       5 * time.Second,
		MinInterval:   0,
		Jitter:        0,
		RatePerMinute: 6000,
		RetryCount:    retryCount,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: 50 * time.Millisecond,
	}, zap.NewNop())
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "worldstate-watcher/1.0" {
			t.Errorf("unexpected user agent: %s", ua)
		}
		// The real upstream mislabels its JSON body.
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`{"ActiveMissions":[]}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	body, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ActiveMissions":[]}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGetJSON_EmptyBodyIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	_, err := client.GetJSON(context.Background(), server.URL)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for empty 200 body, got %v", err)
	}
}

func TestFetch_RateLimitedRetriesAreBounded(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL, 2)

	_, err := client.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected wrapped ErrRateLimited, got %v", err)
	}

	// Initial attempt plus 2 retries
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestFetch_RecoversAfterRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 3)

	body, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{}` {
		t.Errorf("unexpected body: %s", body)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestFetch_OverloadRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(server.URL, 1)

	_, err := client.Fetch(context.Background())
	if !errors.Is(err, ErrOverloaded) {
		t.Errorf("expected wrapped ErrOverloaded, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestFetch_OtherStatusFailsImmediately(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL, 5)

	_, err := client.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 status")
	}
	if attempts != 1 {
		t.Errorf("expected no retries on 500, got %d attempts", attempts)
	}
}

func TestFetch_MinIntervalSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Options{
		URL:           server.URL,
		Timeout:       5 * time.Second,
		MinInterval:   50 * time.Millisecond,
		Jitter:        0,
		RatePerMinute: 6000,
	}, zap.NewNop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(context.Background()); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}

	// Three requests with a 50ms floor between them need at least 100ms.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("requests not throttled: 3 fetches in %s", elapsed)
	}
}

func TestFetch_ContextCancelledDuringThrottle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Options{
		URL:           server.URL,
		Timeout:       5 * time.Second,
		MinInterval:   10 * time.Second,
		RatePerMinute: 6000,
	}, zap.NewNop())

	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded during throttle wait, got %v", err)
	}
}
