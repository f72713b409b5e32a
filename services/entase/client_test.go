package entase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient("test-key", srv.URL, srv.Client())
	return client, srv
}

func TestFetch_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		w.Write([]byte(`{"data": [{"id": "p1"}]}`))
	})

	payload, err := client.Fetch(context.Background(), "productions", FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("expected object payload, got %T", payload)
	}
	if _, ok := obj["data"]; !ok {
		t.Fatal("expected data key in payload")
	}
}

func TestFetch_MissingAPIKey(t *testing.T) {
	client := NewClient("", "http://localhost:1", nil)
	_, err := client.Fetch(context.Background(), "productions", FetchOptions{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestFetch_SkipsEmptyParams(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	})

	params := url.Values{}
	params.Set("limit", "50")
	params.Set("cursor", "")
	if _, err := client.Fetch(context.Background(), "events", FetchOptions{Params: params}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotQuery.Get("limit") != "50" {
		t.Errorf("expected limit=50, got %q", gotQuery.Get("limit"))
	}
	if _, present := gotQuery["cursor"]; present {
		t.Error("empty param should have been skipped")
	}
}

func TestFetch_EmptyBodyIsNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	payload, err := client.Fetch(context.Background(), "productions", FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if payload != nil {
		t.Fatalf("expected nil payload for empty body, got %v", payload)
	}
}

func TestFetch_MalformedJSONFailsWithoutRetry(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{not json`))
	})

	_, err := client.Fetch(context.Background(), "productions", FetchOptions{Backoff: time.Millisecond})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("expected exactly 1 request, got %d", n)
	}
}

func TestFetch_NonRetryableStatusFailsImmediately(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "no such resource"}`))
	})

	_, err := client.Fetch(context.Background(), "productions", FetchOptions{Backoff: time.Millisecond})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", reqErr.Status)
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("expected exactly 1 request, got %d", n)
	}
}

func TestFetch_RetryBudget(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	})

	// retries=2 means 3 attempts total; the server's 4th (successful)
	// response must never be requested.
	_, err := client.Fetch(context.Background(), "productions", FetchOptions{
		Retries: 2,
		Backoff: time.Millisecond,
	})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", reqErr.Status)
	}
	if n := requests.Load(); n != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", n)
	}
}

func TestFetch_RetryThenSuccess(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	})

	payload, err := client.Fetch(context.Background(), "productions", FetchOptions{Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if payload == nil {
		t.Fatal("expected payload after retry")
	}
	if n := requests.Load(); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

func TestFetch_NegativeRetriesDisablesRetrying(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Fetch(context.Background(), "productions", FetchOptions{
		Retries: -1,
		Backoff: time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected exactly 1 request with retries disabled, got %d", got)
	}
}
