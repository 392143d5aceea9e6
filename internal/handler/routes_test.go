package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"factory-usage-proxy/internal/client"
	"factory-usage-proxy/internal/config"
	"factory-usage-proxy/internal/metrics"
	"factory-usage-proxy/internal/middleware"
	"factory-usage-proxy/internal/service"
)

const indexHTML = "<!doctype html><title>usage</title>\n"

// newTestServer builds the full route table over a temp document root
// holding index.html, wired to the given upstream.
func newTestServer(t *testing.T, upstreamURL string, metricsEnabled bool) *echo.Echo {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte(indexHTML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{DocRoot: root},
		Upstream: config.UpstreamConfig{
			URL:       upstreamURL,
			UserAgent: "test-agent/1.0",
		},
		Metrics: config.MetricsConfig{Enabled: metricsEnabled, Path: "/_proxy/metrics"},
	}
	logger := testLogger()

	var m *metrics.Metrics
	if metricsEnabled {
		m = metrics.New()
	}

	uc := client.NewUsageClient(cfg, logger, m)
	svc, err := service.NewProxyServiceForTest(uc, cfg, logger, m)
	if err != nil {
		t.Fatalf("NewProxyServiceForTest: %v", err)
	}
	router := NewRouter(NewProxyHandler(svc, logger), NewStaticHandler(cfg))

	e := echo.New()
	e.Use(middleware.CORS())
	if m != nil {
		e.Use(middleware.MetricsMiddleware(m))
	}
	RegisterRoutes(e, cfg, router, NewHealthHandler(cfg, "test"), m)
	return e
}

func do(e *echo.Echo, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Authorization, User-Agent, Content-Type",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestRoutes_Preflight(t *testing.T) {
	e := newTestServer(t, "http://127.0.0.1:1", false)

	for _, p := range []string{"/anything", "/api/proxy", "/", "/index.html"} {
		t.Run(p, func(t *testing.T) {
			rec := do(e, http.MethodOptions, p, "")
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("body = %q, want empty", rec.Body.String())
			}
			assertCORS(t, rec)
		})
	}
}

func TestRoutes_MissingAuthorizationSkipsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("upstream must not be called without a credential")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	e := newTestServer(t, upstream.URL, false)
	rec := do(e, http.MethodGet, "/api/proxy", "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	assertCORS(t, rec)
}

func TestRoutes_ProxySuccessNormalizesStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
		}
		if got := r.Header.Get("User-Agent"); got != "test-agent/1.0" {
			t.Errorf("User-Agent = %q, want %q", got, "test-agent/1.0")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"x":1}`))
	}))
	defer upstream.Close()

	e := newTestServer(t, upstream.URL, false)

	for _, target := range []string{"/api/proxy", "/api/proxy?team=7", "/api/proxy/extra"} {
		t.Run(target, func(t *testing.T) {
			rec := do(e, http.MethodGet, target, "Bearer abc")

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if rec.Body.String() != `{"x":1}` {
				t.Errorf("body = %q, want %q", rec.Body.String(), `{"x":1}`)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want %q", got, "application/json")
			}
			assertCORS(t, rec)
		})
	}
}

func TestRoutes_ProxyUpstreamForbidden(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	e := newTestServer(t, upstream.URL, false)
	rec := do(e, http.MethodGet, "/api/proxy", "Bearer abc")

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec.Body.String() != `{"error": "Forbidden"}` {
		t.Errorf("body = %q, want %q", rec.Body.String(), `{"error": "Forbidden"}`)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	assertCORS(t, rec)
}

func TestRoutes_ProxyUnreachable(t *testing.T) {
	e := newTestServer(t, refusedURL(t), false)
	rec := do(e, http.MethodGet, "/api/proxy", "Bearer abc")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(rec.Body.String(), "Proxy error") {
		t.Errorf("body = %q, want failure description", rec.Body.String())
	}
	assertCORS(t, rec)
}

func TestRoutes_StaticFile(t *testing.T) {
	e := newTestServer(t, "http://127.0.0.1:1", false)

	for _, target := range []string{"/index.html", "/"} {
		t.Run(target, func(t *testing.T) {
			rec := do(e, http.MethodGet, target, "")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if rec.Body.String() != indexHTML {
				t.Errorf("body = %q, want %q", rec.Body.String(), indexHTML)
			}
			if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
				t.Errorf("Content-Type = %q, want text/html", got)
			}
			assertCORS(t, rec)
		})
	}
}

func TestRoutes_StaticMissing(t *testing.T) {
	e := newTestServer(t, "http://127.0.0.1:1", false)
	rec := do(e, http.MethodGet, "/missing.js", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	assertCORS(t, rec)
}

func TestRoutes_HeadOnProxyPrefixIsStatic(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("HEAD must not reach the upstream")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	e := newTestServer(t, upstream.URL, false)
	rec := do(e, http.MethodHead, "/api/proxy", "Bearer abc")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	assertCORS(t, rec)
}

func TestRoutes_UnsupportedMethod(t *testing.T) {
	e := newTestServer(t, "http://127.0.0.1:1", false)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := do(e, method, "/api/proxy", "Bearer abc")
			if rec.Code != http.StatusNotImplemented {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
			}
			assertCORS(t, rec)
		})
	}
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	e := newTestServer(t, "http://127.0.0.1:1", true)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz", config.HealthzPath, http.StatusOK, `"status":"ok"`},
		{"status", config.StatusPath, http.StatusOK, `"version":"test"`},
		{"metrics", "/_proxy/metrics", http.StatusOK, "usage_proxy_http_requests_in_flight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want to contain %q", rec.Body.String(), tt.wantBody)
			}
			assertCORS(t, rec)
		})
	}
}

func TestRoutes_MetricsDisabledFallsThroughToStatic(t *testing.T) {
	e := newTestServer(t, "http://127.0.0.1:1", false)
	rec := do(e, http.MethodGet, "/_proxy/metrics", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
