package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(n int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: n,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{APIKey: "test-key"})
	if err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestNewClient_DefaultValues(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "https://example.com/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.BaseURL() != "https://example.com" {
		t.Errorf("BaseURL() = %s, want trailing slash trimmed", client.BaseURL())
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
	}
	if client.retry.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", client.retry.MaxRetries, DefaultMaxRetries)
	}
	if client.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %s, want %s", client.userAgent, DefaultUserAgent)
	}
	if client.logger == nil {
		t.Error("logger is nil")
	}
}

func TestNewClient_CustomValues(t *testing.T) {
	customHTTPClient := &http.Client{Timeout: 60 * time.Second}
	retry := fastRetry(5)

	client, err := NewClient(Config{
		BaseURL:    "https://custom.example.com",
		HTTPClient: customHTTPClient,
		Retry:      retry,
		UserAgent:  "custom/1.0",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.HTTPClient() != customHTTPClient {
		t.Error("httpClient not set correctly")
	}
	if client.retry != retry {
		t.Error("retry config not set correctly")
	}
	if client.userAgent != "custom/1.0" {
		t.Errorf("userAgent = %s, want custom/1.0", client.userAgent)
	}
}

func TestNew_WithOptions(t *testing.T) {
	client, err := New("https://example.com",
		WithAPIKey("k"),
		WithRetry(fastRetry(5)),
		WithTimeout(60*time.Second),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.apiKey != "k" {
		t.Errorf("apiKey = %s, want k", client.apiKey)
	}
	if client.retry.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", client.retry.MaxRetries)
	}
	if client.httpClient.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", client.httpClient.Timeout)
	}
}

func TestClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("X-API-Key = %s, want test-key", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("Content-Type = %s, want empty for bodiless request", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("User-Agent = %s, want %s", r.Header.Get("User-Agent"), DefaultUserAgent)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	var result struct{ OK bool }
	if err := client.Do(context.Background(), http.MethodGet, "/test", nil, &result); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !result.OK {
		t.Error("result.OK = false, want true")
	}
}

func TestClient_Do_NoAPIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Api-Key"]; ok {
			t.Error("X-API-Key header sent without an API key")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL})
	if err := client.Do(context.Background(), http.MethodGet, "/", nil, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestClient_Do_WithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", r.Header.Get("Content-Type"))
		}
		var body struct{ Name string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"received": body.Name})
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL})

	request := struct{ Name string }{Name: "test"}
	var result struct{ Received string }

	if err := client.Do(context.Background(), http.MethodPost, "/test", request, &result); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result.Received != "test" {
		t.Errorf("result.Received = %s, want test", result.Received)
	}
}

func TestClient_Do_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL})

	var result struct{ OK bool }
	if err := client.Do(context.Background(), http.MethodPut, "/test", map[string]string{"a": "b"}, &result); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestClient_Do_RetryResendsBody(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ N int }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.N != 7 {
			t.Errorf("attempt body = %+v, err = %v", body, err)
		}
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, Retry: fastRetry(3)})

	if err := client.Do(context.Background(), http.MethodPut, "/x", struct{ N int }{7}, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClient_Do_RetriesExhausted(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, Retry: fastRetry(2)})

	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("Do() error = %v, want 502 APIError", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClient_Do_NoRetryOn4xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "already published"})
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, Retry: fastRetry(3)})

	err := client.Do(context.Background(), http.MethodPut, "/test", struct{}{}, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Do() error = %v, want ErrConflict", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewClient(Config{BaseURL: url, Retry: fastRetry(1)})

	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Do() error = %v, want *NetworkError", err)
	}
	if netErr.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", netErr.Attempt)
	}
	if netErr.URL != url+"/x" {
		t.Errorf("URL = %s, want %s/x", netErr.URL, url)
	}
}

func TestClient_Do_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Do(ctx, http.MethodGet, "/test", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestClient_Do_CancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, Retry: fastRetry(3)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := client.Do(ctx, http.MethodGet, "/test", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Do() honored Retry-After past the deadline: %v", elapsed)
	}
}

func TestClient_Do_ErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		sentinel   error
	}{
		{"unauthorized", 401, `{"error": "invalid API key"}`, ErrUnauthorized},
		{"forbidden", 403, `{"error": "rejected"}`, ErrForbidden},
		{"not found", 404, `{"error": "no such record"}`, ErrNotFound},
		{"conflict", 409, `{"error": "already published"}`, ErrConflict},
		{"rate limited", 429, `{"error": "rate limit exceeded"}`, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewClient(Config{BaseURL: server.URL, Retry: NoRetry()})

			err := client.Do(context.Background(), http.MethodGet, "/test", nil, nil)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("Do() error = %v, want %v", err, tt.sentinel)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestClient_Do_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL})

	var result map[string]any
	if err := client.Do(context.Background(), http.MethodGet, "/", nil, &result); err == nil {
		t.Fatal("Do() expected decode error")
	}
}

// ExampleNew demonstrates creating an API client with functional options.
func ExampleNew() {
	client, err := New("https://orders.example.com/",
		WithRetry(NoRetry()),
		WithTimeout(10*time.Second),
	)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Client created for: %s\n", client.BaseURL())
	// Output: Client created for: https://orders.example.com
}
