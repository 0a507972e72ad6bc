package sessgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// testBackend is an httptest server wired like the quoting backend: a token
// endpoint, a refresh endpoint, and whatever resource handlers a test needs.
// Counters are handler-side so tests assert exact network call counts.
type testBackend struct {
	server *httptest.Server
	mux    *http.ServeMux

	tokenFetches int32
	refreshes    int32
	refreshOK    int32 // 1 = refresh succeeds
	nextToken    func() string
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()

	b := &testBackend{
		mux:       http.NewServeMux(),
		refreshOK: 1,
	}
	tokenSeq := int32(0)
	b.nextToken = func() string {
		n := atomic.AddInt32(&tokenSeq, 1)
		return "token-" + strconv.Itoa(int(n))
	}

	b.mux.HandleFunc(DefaultTokenPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.tokenFetches, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"csrf_token": b.nextToken()})
	})
	b.mux.HandleFunc(DefaultRefreshPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshes, 1)
		if atomic.LoadInt32(&b.refreshOK) == 1 {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusForbidden)
		}
	})

	b.server = httptest.NewServer(b.mux)
	t.Cleanup(b.server.Close)
	return b
}

// handle registers a resource handler and a hit counter for it.
func (b *testBackend) handle(path string, fn http.HandlerFunc) *int32 {
	hits := new(int32)
	b.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		fn(w, r)
	})
	return hits
}

func (b *testBackend) client(options ...Option) *Client {
	return New(b.server.URL, options...)
}

func TestGetReturnsDecodedPayload(t *testing.T) {
	b := newTestBackend(t)
	b.handle("/api/quotes/q-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.Header.Get(HeaderCSRFToken) != "" {
			t.Error("GET must not carry the anti-forgery token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"q-1","total":1250}`))
	})

	c := b.client()
	payload, err := c.Get(context.Background(), "/api/quotes/q-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	var quote struct {
		ID    string `json:"id"`
		Total int    `json:"total"`
	}
	if err := payload.Decode(&quote); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if quote.ID != "q-1" || quote.Total != 1250 {
		t.Errorf("Decoded %+v, want id=q-1 total=1250", quote)
	}
	if got := atomic.LoadInt32(&b.tokenFetches); got != 0 {
		t.Errorf("GET triggered %d token fetches, want 0", got)
	}
}

func TestPostAttachesTokenAndBody(t *testing.T) {
	b := newTestBackend(t)
	b.handle("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(HeaderCSRFToken); got != "token-1" {
			t.Errorf("X-CSRF-Token = %q, want %q", got, "token-1")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Acme") {
			t.Errorf("Body %q missing customer name", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"q-1"}`))
	})

	c := b.client()
	payload, err := c.Post(context.Background(), "/api/quotes", map[string]string{"customer_name": "Acme"})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := payload.Decode(&created); err != nil || created.ID != "q-1" {
		t.Errorf("Decoded id %q (err %v), want q-1", created.ID, err)
	}
}

func TestBarePathRoutedThroughProxyPrefix(t *testing.T) {
	b := newTestBackend(t)
	hits := b.handle("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	c := b.client()
	if _, err := c.Get(context.Background(), "quotes"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("Resource hits = %d, want 1", got)
	}
}

func TestErrorShapePreservesBody(t *testing.T) {
	b := newTestBackend(t)
	b.handle("/api/quotes/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"not found"}`))
	})

	c := b.client()
	_, err := c.Get(context.Background(), "/api/quotes/missing")
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Error type %T, want *CallError", err)
	}
	if callErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", callErr.StatusCode)
	}
	if callErr.Type != ErrorTypeHTTP {
		t.Errorf("Type = %q, want %q", callErr.Type, ErrorTypeHTTP)
	}
	if !strings.Contains(string(callErr.Body), "not found") {
		t.Errorf("Body %q lost the diagnostic detail", callErr.Body)
	}
}

func TestTransportFailureIsStatusZero(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()
	b.server.Close()

	_, err := c.Get(context.Background(), "/api/quotes")
	if err == nil {
		t.Fatal("Expected error when server is unreachable")
	}

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Error type %T, want *CallError", err)
	}
	if callErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", callErr.StatusCode)
	}
	if !IsTransportFailure(err) {
		t.Error("IsTransportFailure = false, want true")
	}
	if IsSessionExpired(err) {
		t.Error("Transport failure must not look like session expiry")
	}
}

func TestPerCallHeadersMergedOverDefaults(t *testing.T) {
	b := newTestBackend(t)
	b.handle("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Tenant"); got != "acme" {
			t.Errorf("X-Tenant = %q, want %q (per-call override)", got, "acme")
		}
		if got := r.Header.Get("X-Client"); got != "dashboard" {
			t.Errorf("X-Client = %q, want %q (client default)", got, "dashboard")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	c := b.client(WithHeader("X-Client", "dashboard"), WithHeader("X-Tenant", "default"))
	h := http.Header{}
	h.Set("X-Tenant", "acme")
	if _, err := c.Get(context.Background(), "/api/quotes", h); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
}

func TestUploadSendsMultipartWithToken(t *testing.T) {
	b := newTestBackend(t)
	b.handle("/api/prices/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderCSRFToken) == "" {
			t.Error("Upload must carry the anti-forgery token")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		if header.Filename != "prices.csv" {
			t.Errorf("Filename = %q, want prices.csv", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "sku,price\nA,10\n" {
			t.Errorf("File content = %q", content)
		}
		if got := r.FormValue("profile"); got != "standard" {
			t.Errorf("Form field profile = %q, want standard", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"imported":1}`))
	})

	c := b.client()
	payload, err := c.Upload(context.Background(), "/api/prices/import", "prices.csv",
		strings.NewReader("sku,price\nA,10\n"), map[string]string{"profile": "standard"})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	var out struct {
		Imported int `json:"imported"`
	}
	if err := payload.Decode(&out); err != nil || out.Imported != 1 {
		t.Errorf("Decoded %+v (err %v), want imported=1", out, err)
	}
}

func TestDownloadWritesBodyAndReportsFilename(t *testing.T) {
	b := newTestBackend(t)
	pdf := []byte("%PDF-1.4 fake")
	b.handle("/api/quotes/q-1/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="quote-q-1.pdf"`)
		w.Write(pdf)
	})

	c := b.client()
	var buf bytes.Buffer
	filename, err := c.Download(context.Background(), "/api/quotes/q-1/pdf", &buf)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if filename != "quote-q-1.pdf" {
		t.Errorf("Filename = %q, want quote-q-1.pdf", filename)
	}
	if !bytes.Equal(buf.Bytes(), pdf) {
		t.Errorf("Downloaded %d bytes, want %d", buf.Len(), len(pdf))
	}
}

func TestInvalidConfigurationSurfacesBeforeDispatch(t *testing.T) {
	c := New("not a url")
	if c.IsValid() {
		t.Fatal("Expected invalid configuration")
	}

	_, err := c.Get(context.Background(), "/api/quotes")
	if err == nil {
		t.Fatal("Expected validation error")
	}
	var callErr *CallError
	if !errors.As(err, &callErr) || callErr.Type != ErrorTypeValidation {
		t.Errorf("Error = %v, want validation CallError", err)
	}
}

// TestEndToEndRefreshScenario walks the full recovery path: create call →
// 401 → refresh → token re-fetch → replay → created. Exactly 2 token
// fetches, 1 refresh, and 2 attempts at the protected resource.
func TestEndToEndRefreshScenario(t *testing.T) {
	b := newTestBackend(t)

	// The session is expired until a refresh has happened; the refresh
	// handler always runs strictly before the replay, so reading the
	// refresh counter here is deterministic.
	hits := b.handle("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&b.refreshes) == 0 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get(HeaderCSRFToken); got != "token-2" {
			t.Errorf("Replay X-CSRF-Token = %q, want the re-fetched token-2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"q-1"}`))
	})

	c := b.client()
	payload, err := c.Post(context.Background(), "/api/quotes", map[string]string{"customer_name": "Acme"})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := payload.Decode(&created); err != nil || created.ID != "q-1" {
		t.Errorf("Decoded id %q (err %v), want q-1", created.ID, err)
	}

	if got := atomic.LoadInt32(&b.tokenFetches); got != 2 {
		t.Errorf("Token fetches = %d, want 2 (initial + after invalidation)", got)
	}
	if got := atomic.LoadInt32(&b.refreshes); got != 1 {
		t.Errorf("Refresh calls = %d, want 1", got)
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Errorf("Protected resource attempts = %d, want 2", got)
	}
}
