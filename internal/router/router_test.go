package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ordermail/internal/config"
	"ordermail/internal/domain/notification"
	"ordermail/internal/infra/email"
	"ordermail/internal/infra/template"

	"github.com/gin-gonic/gin"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      config.AuthConfig{APIKeys: []string{"key-a"}, CronKey: "cron-secret"},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}

	engine, err := template.NewEngine("Linkist")
	if err != nil {
		t.Fatalf("template engine: %v", err)
	}
	// No SMTP host: every send is simulated.
	transport, err := email.NewTransport(cfg)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	service := notification.NewService(transport, engine, nil, notification.ServiceConfig{})

	r, limiter := New(cfg, notification.NewHandler(service))
	if limiter == nil {
		t.Fatalf("expected the ip limiter to be returned")
	}
	return r
}

func serve(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicHealth(t *testing.T) {
	w := serve(newTestEngine(t), http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Data["service"] != "ordermail" || resp.Data["status"] != "ok" {
		t.Fatalf("unexpected health body %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestAPIRoutesRequireKey(t *testing.T) {
	r := newTestEngine(t)

	if w := serve(r, http.MethodGet, "/api/v1/emails/settings", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a key, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/emails/settings", "", map[string]string{"Authorization": "Bearer cron-secret"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("cron key must not open the email routes, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/emails/settings", "", map[string]string{"X-API-Key": "key-a"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a key, got %d", w.Code)
	}
}

func TestPrinterRouteAcceptsCronKey(t *testing.T) {
	r := newTestEngine(t)
	body := `{"date":"2026-10-15","recipients":["print@example.com"],"orders":[{"order_number":"LNK-1001","card":{"first_name":"Ada","last_name":"Lovelace","quantity":2}}]}`

	if w := serve(r, http.MethodPost, "/api/v1/printer/send", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}
	w := serve(r, http.MethodPost, "/api/v1/printer/send", body, map[string]string{"Authorization": "Bearer cron-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with the cron key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	w := serve(newTestEngine(t), http.MethodGet, "/api/v2/emails", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Success || resp.Error.Code != http.StatusNotFound {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
