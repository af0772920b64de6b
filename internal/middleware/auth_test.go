package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJWTAuth_TokenRoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, err := auth.GenerateToken("acme")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotTenant string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = GetTenantID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotTenant != "acme" {
		t.Errorf("expected tenant 'acme' in context, got %q", gotTenant)
	}
}

func TestJWTAuth_RejectsBadRequests(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	otherSecret := NewJWTAuth("other-secret")
	foreignToken, _ := otherSecret.GenerateToken("acme")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + foreignToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run for an unauthorized request")
			}))

			req := httptest.NewRequest(http.MethodGet, "/runs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}
