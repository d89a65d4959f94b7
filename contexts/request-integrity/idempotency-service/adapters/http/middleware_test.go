package httpadapter_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	idempotency "turnstile/contexts/request-integrity/idempotency-service"
	httpadapter "turnstile/contexts/request-integrity/idempotency-service/adapters/http"
	"turnstile/contexts/request-integrity/idempotency-service/application"
	httptransport "turnstile/contexts/request-integrity/idempotency-service/transport/http"
	"turnstile/internal/shared/requestctx"
)

const validKey = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

func newGuardedServer(t *testing.T, opts application.TableOptions, handler http.Handler) *httptest.Server {
	t.Helper()
	module, err := idempotency.NewInMemoryModule(map[string]application.TableOptions{
		application.DefaultTableName: opts,
	}, nil)
	if err != nil {
		t.Fatalf("build module: %v", err)
	}
	guarded := httpadapter.Middleware(module.Guard)(handler)
	server := httptest.NewServer(guarded)
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, url string, key string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) httptransport.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var body httptransport.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestMissingKeyRejected(t *testing.T) {
	server := newGuardedServer(t, application.TableOptions{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a key")
	}))

	resp := post(t, server.URL, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Code != httptransport.CodeKeyRequired {
		t.Fatalf("unexpected error code %q", body.Code)
	}
}

func TestMalformedKeyRejected(t *testing.T) {
	server := newGuardedServer(t, application.TableOptions{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for a malformed key")
	}))

	resp := post(t, server.URL, "not-a-guid")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Code != httptransport.CodeKeyMalformed {
		t.Fatalf("unexpected error code %q", body.Code)
	}
}

func TestOptionalKeyPassesThrough(t *testing.T) {
	var executions atomic.Int32
	server := newGuardedServer(t, application.TableOptions{IdempotencyKeyOptional: true},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			executions.Add(1)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))

	for i := 0; i < 2; i++ {
		resp := post(t, server.URL, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}
	if executions.Load() != 2 {
		t.Fatalf("unguarded requests must each execute, got %d", executions.Load())
	}
}

func TestHandlerSeesAmbientKey(t *testing.T) {
	var observed atomic.Value
	server := newGuardedServer(t, application.TableOptions{},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			observed.Store(requestctx.IdempotencyKey(r.Context()))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}))

	resp := post(t, server.URL, validKey)
	resp.Body.Close()
	if got, _ := observed.Load().(string); got != validKey {
		t.Fatalf("handler must observe the resolved key in context, got %q", got)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("correlation id must be echoed")
	}
}

func TestServerErrorReleasesClaim(t *testing.T) {
	var executions atomic.Int32
	server := newGuardedServer(t, application.TableOptions{},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if executions.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"code":"boom"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))

	first := post(t, server.URL, validKey)
	first.Body.Close()
	if first.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected the handler's 500 to pass through, got %d", first.StatusCode)
	}

	second := post(t, server.URL, validKey)
	second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("retry after failure must execute, got %d", second.StatusCode)
	}
	if executions.Load() != 2 {
		t.Fatalf("expected two executions, got %d", executions.Load())
	}
}

// TestConcurrentDuplicateThenReplay drives the full scenario: request A claims
// the key and pauses mid-handler, request B with the same key receives a
// conflict, A finishes and commits, request C receives A's response without
// executing.
func TestConcurrentDuplicateThenReplay(t *testing.T) {
	var executions atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	server := newGuardedServer(t, application.TableOptions{ThrowOnConflict: true},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			executions.Add(1)
			close(started)
			<-release
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":200,"body":"ok"}`))
		}))

	aDone := make(chan *http.Response, 1)
	go func() {
		aDone <- post(t, server.URL, validKey)
	}()

	<-started
	b := post(t, server.URL, validKey)
	if b.StatusCode != http.StatusConflict {
		t.Fatalf("request B must conflict while A is pending, got %d", b.StatusCode)
	}
	if body := decodeError(t, b); body.Code != httptransport.CodeConflict {
		t.Fatalf("unexpected conflict code %q", body.Code)
	}

	close(release)
	a := <-aDone
	defer a.Body.Close()
	if a.StatusCode != http.StatusOK {
		t.Fatalf("request A must complete, got %d", a.StatusCode)
	}

	c := post(t, server.URL, validKey)
	defer c.Body.Close()
	if c.StatusCode != http.StatusOK {
		t.Fatalf("request C must replay A's status, got %d", c.StatusCode)
	}
	var replayed map[string]any
	if err := json.NewDecoder(c.Body).Decode(&replayed); err != nil {
		t.Fatalf("decode replayed body: %v", err)
	}
	if replayed["body"] != "ok" {
		t.Fatalf("request C must replay A's payload, got %v", replayed)
	}

	if executions.Load() != 1 {
		t.Fatalf("handler must run exactly once, got %d", executions.Load())
	}
}
