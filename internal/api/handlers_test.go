package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/oneubank/ussd-service/internal/app"
	"github.com/oneubank/ussd-service/internal/domain"
	"github.com/oneubank/ussd-service/internal/store"
)

func newTestRouter(t *testing.T, gatewayKey string) http.Handler {
	t.Helper()
	svc := app.NewService(
		store.NewMemorySessionStore(store.DefaultIdleTimeout),
		store.NewMemoryLedger(),
		nil,
		nil,
		app.TransferLimits{},
	)
	return USSDRoutes(NewUSSDHandlers(svc), gatewayKey, 30*time.Second)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) domain.USSDResponse {
	t.Helper()
	var resp domain.USSDResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp
}

func TestCallbackHandler_JSONBody(t *testing.T) {
	router := newTestRouter(t, "")

	body := `{"sessionId":"sess-1","phoneNumber":"08031234567","serviceCode":"*737#","text":""}`
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.ContinueSession {
		t.Fatal("expected session continued on first callback")
	}
	if !strings.Contains(resp.Message, "Welcome to 1UBank") {
		t.Fatalf("expected root menu, got %q", resp.Message)
	}
}

func TestCallbackHandler_FormBody(t *testing.T) {
	router := newTestRouter(t, "")

	form := url.Values{}
	form.Set("sessionId", "sess-1")
	form.Set("phoneNumber", "08031234567")
	form.Set("serviceCode", "*737#")
	form.Set("text", "")
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.SessionID != "sess-1" {
		t.Fatalf("expected response stamped with session id, got %q", resp.SessionID)
	}
}

func TestCallbackHandler_RejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestCallbackHandler_RejectsMissingIdentifiers(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(`{"text":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing session id, got %d", rec.Code)
	}
}

func TestGatewayAuth_RejectsBadKey(t *testing.T) {
	router := newTestRouter(t, "secret-key")

	body := `{"sessionId":"sess-1","phoneNumber":"08031234567","text":""}`

	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without gateway key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Key", "wrong-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong gateway key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Key", "secret-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct gateway key, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Health stays open even when the callback route requires a key.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", rec.Code)
	}
}
