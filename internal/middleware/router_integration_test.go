package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/careercompass/internal/model"
)

// buildTestRouter は本番ルーターと同じ構成を組む:
// Stripe WebhookとCSRFトークン取得はセッション・CSRF検証の外、
// それ以外のAPIは Session → CSRF を通る認証グループに入る。
func buildTestRouter(repo *mockSessionRepository) chi.Router {
	csrfConfig := CSRFConfig{}

	r := chi.NewRouter()
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)
	r.Post("/api/billing/webhook", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"received": "true"})
	})

	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(repo))
		r.Use(NewCSRFMiddleware(csrfConfig))

		r.Get("/api/profile", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
		r.Post("/api/goals", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID, "status": "created"})
		})
	})

	return r
}

func routerTestRepo() *mockSessionRepository {
	return &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "router-test-session" {
				return nil, nil
			}
			return &model.Session{
				ID:        "router-test-session",
				UserID:    "user-router-test",
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}
}

func TestRouterIntegration_AuthedGroup(t *testing.T) {
	r := buildTestRouter(routerTestRepo())

	tests := []struct {
		name       string
		method     string
		path       string
		session    bool
		csrfToken  string
		wantStatus int
	}{
		{name: "認証済みGETはCSRFなしで通る", method: http.MethodGet, path: "/api/profile", session: true, wantStatus: http.StatusOK},
		{name: "未認証GETは401", method: http.MethodGet, path: "/api/profile", wantStatus: http.StatusUnauthorized},
		{name: "認証済みPOSTはトークン一致で通る", method: http.MethodPost, path: "/api/goals", session: true, csrfToken: "test-csrf-token", wantStatus: http.StatusOK},
		{name: "認証済みPOSTはトークンなしで403", method: http.MethodPost, path: "/api/goals", session: true, wantStatus: http.StatusForbidden},
		{name: "未認証POSTはCSRF検証より先に401", method: http.MethodPost, path: "/api/goals", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.session {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-test-session"})
			}
			if tt.csrfToken != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.csrfToken})
				req.Header.Set(csrfHeaderName, tt.csrfToken)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestRouterIntegration_AuthedPOST_ReturnsUserID(t *testing.T) {
	r := buildTestRouter(routerTestRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/goals", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-test-session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "test-csrf-token"})
	req.Header.Set(csrfHeaderName, "test-csrf-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["user_id"] != "user-router-test" {
		t.Errorf("user_id = %q, want %q", body["user_id"], "user-router-test")
	}
}

func TestRouterIntegration_WebhookBypassesSessionAndCSRF(t *testing.T) {
	r := buildTestRouter(routerTestRepo())

	// Stripeからの呼び出しはセッションもCSRFトークンも持たない
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouterIntegration_CSRFTokenEndpointNeedsNoAuth(t *testing.T) {
	r := buildTestRouter(routerTestRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Error("expected non-empty token")
	}
}
