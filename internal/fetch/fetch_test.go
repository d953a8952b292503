package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, ua string) *Client {
	t.Helper()
	c, err := NewClient(Options{Timeout: 5 * time.Second, UserAgent: ua})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchOK(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("page-body"))
	}))
	defer srv.Close()

	c := newTestClient(t, "stripd-test/1.0")
	body, err := c.Fetch(context.Background(), srv.URL, "http://ref.example/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "page-body" {
		t.Errorf("body = %q", body)
	}
	if gotUA != "stripd-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotReferer != "http://ref.example/" {
		t.Errorf("Referer = %q", gotReferer)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, "")
	_, err := c.Fetch(context.Background(), srv.URL, "")
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %T", err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("Status = %d", fe.Status)
	}
}

func TestFetchTransportError(t *testing.T) {
	c := newTestClient(t, "")
	_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/nope", "")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %T", err)
	}
	if fe.Status != 0 {
		t.Errorf("transport failure should have Status 0, got %d", fe.Status)
	}
	if fe.Unwrap() == nil {
		t.Error("transport failure should carry the underlying error")
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("second try"))
	}))
	defer srv.Close()

	c := newTestClient(t, "")
	body, err := c.Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "second try" {
		t.Errorf("body = %q", body)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, "")
	_, err := c.Fetch(context.Background(), srv.URL, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (4xx must not retry)", hits.Load())
	}
}

func TestPickUserAgent(t *testing.T) {
	if got := PickUserAgent("custom"); got != "custom" {
		t.Errorf("override ignored: %q", got)
	}
	if got := PickUserAgent(""); got == "" {
		t.Error("default UA empty")
	}
}
