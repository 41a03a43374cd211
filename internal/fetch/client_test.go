package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestClientGet tests basic page fetching.
func TestClientGet(t *testing.T) {
	t.Parallel()

	t.Run("fetches page with body and metadata", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer server.Close()

		client := NewClient()
		page, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if page.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", page.StatusCode)
		}
		if !strings.Contains(string(page.Raw), "hello") {
			t.Errorf("expected body content, got %q", string(page.Raw))
		}
		if !page.IsHTML() {
			t.Errorf("expected HTML content type, got %q", page.ContentType)
		}
		if page.Snapshot == "" {
			t.Error("expected snapshot set for HTML page")
		}
		if page.Hash == "" {
			t.Error("expected content hash to be computed")
		}
	})

	t.Run("sends configured user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		client := NewClient(WithUserAgent("testbot/1.0"))
		if _, err := client.Get(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotUA != "testbot/1.0" {
			t.Errorf("expected user agent testbot/1.0, got %q", gotUA)
		}
	})

	t.Run("sends per-site headers and cookie", func(t *testing.T) {
		t.Parallel()

		var gotHeader, gotCookie string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("X-Custom")
			gotCookie = r.Header.Get("Cookie")
		}))
		defer server.Close()

		client := NewClient(
			WithHeaders(map[string]string{"X-Custom": "value"}),
			WithCookie("session=abc123"),
		)
		if _, err := client.Get(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotHeader != "value" {
			t.Errorf("expected custom header, got %q", gotHeader)
		}
		if gotCookie != "session=abc123" {
			t.Errorf("expected cookie header, got %q", gotCookie)
		}
	})

	t.Run("truncates oversized body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
		}))
		defer server.Close()

		client := NewClient(WithMaxBodySize(100))
		page, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Raw) != 100 {
			t.Errorf("expected body capped at 100 bytes, got %d", len(page.Raw))
		}
	})
}

// TestClientErrorKinds tests the HTTP vs network error taxonomy.
func TestClientErrorKinds(t *testing.T) {
	t.Parallel()

	t.Run("status error for 404", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		client := NewClient()
		_, err := client.Get(context.Background(), server.URL+"/missing")
		if err == nil {
			t.Fatal("expected error for 404")
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected *StatusError, got %T: %v", err, err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", statusErr.StatusCode)
		}

		kind, code := ClassifyError(err)
		if kind != KindHTTP || code != http.StatusNotFound {
			t.Errorf("ClassifyError() = %q, %d; want http, 404", kind, code)
		}
	})

	t.Run("status error for 500", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient()
		_, err := client.Get(context.Background(), server.URL)

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected *StatusError, got %T: %v", err, err)
		}
		if statusErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", statusErr.StatusCode)
		}
	})

	t.Run("network error for unreachable host", func(t *testing.T) {
		t.Parallel()

		// Reserved TEST-NET address, nothing listens there
		client := NewClient(WithTimeout(500 * time.Millisecond))
		_, err := client.Get(context.Background(), "http://192.0.2.1:1/")
		if err == nil {
			t.Fatal("expected error for unreachable host")
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			t.Errorf("expected network-kind error, got status error: %v", err)
		}

		kind, _ := ClassifyError(err)
		if kind != KindNetwork {
			t.Errorf("ClassifyError() kind = %q, want network", kind)
		}
	})
}

// TestClientRobotsGate tests robots.txt enforcement.
func TestClientRobotsGate(t *testing.T) {
	t.Parallel()

	newServer := func(robots string) *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(robots))
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html></html>"))
		})
		return httptest.NewServer(mux)
	}

	t.Run("refuses disallowed path", func(t *testing.T) {
		t.Parallel()

		server := newServer("User-agent: *\nDisallow: /private/\n")
		defer server.Close()

		gate := NewRobotsGate("websift/1.0")
		client := NewClient(WithRobotsGate(gate))

		_, err := client.Get(context.Background(), server.URL+"/private/page")
		if !errors.Is(err, ErrRobotsDisallowed) {
			t.Errorf("expected ErrRobotsDisallowed, got %v", err)
		}

		kind, _ := ClassifyError(err)
		if kind != KindRobots {
			t.Errorf("ClassifyError() kind = %q, want robots", kind)
		}
	})

	t.Run("allows permitted path", func(t *testing.T) {
		t.Parallel()

		server := newServer("User-agent: *\nDisallow: /private/\n")
		defer server.Close()

		gate := NewRobotsGate("websift/1.0")
		client := NewClient(WithRobotsGate(gate))

		if _, err := client.Get(context.Background(), server.URL+"/public/page"); err != nil {
			t.Errorf("expected public path allowed, got %v", err)
		}
	})

	t.Run("fails open when robots.txt is missing", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		gate := NewRobotsGate("websift/1.0")
		client := NewClient(WithRobotsGate(gate))

		if _, err := client.Get(context.Background(), server.URL+"/anything"); err != nil {
			t.Errorf("expected fetch allowed with missing robots.txt, got %v", err)
		}
	})

	t.Run("caches robots.txt per host", func(t *testing.T) {
		t.Parallel()

		var robotsFetches int
		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
			robotsFetches++
			_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		gate := NewRobotsGate("websift/1.0")
		client := NewClient(WithRobotsGate(gate))

		for i := 0; i < 3; i++ {
			if _, err := client.Get(context.Background(), server.URL+"/page"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if robotsFetches != 1 {
			t.Errorf("expected 1 robots.txt fetch, got %d", robotsFetches)
		}
	})
}

// TestClientRateLimit tests that the rate limiter spaces out requests.
func TestClientRateLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	// 10 rps = 100ms between requests
	client := NewClient(WithRateLimit(10))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First request is immediate, the next two wait ~100ms each
	if elapsed < 150*time.Millisecond {
		t.Errorf("expected rate limiting to space requests, took %v", elapsed)
	}
}

// TestClientContextCancellation tests that cancellation aborts a fetch.
func TestClientContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient()
	_, err := client.Get(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
