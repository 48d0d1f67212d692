package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthenticateSetsOwner(t *testing.T) {
	ownerID := uuid.New()
	token := signToken(t, &Claims{
		Sub: ownerID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	var gotOwner uuid.UUID
	m := NewJWTMiddleware(testSecret)
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = OwnerFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotOwner != ownerID {
		t.Errorf("owner = %s, want %s", gotOwner, ownerID)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	ownerID := uuid.New()
	future := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not.a.jwt"},
		{
			"wrong secret",
			signToken(t, &Claims{Sub: ownerID.String(), RegisteredClaims: future}, "other-secret"),
		},
		{
			"expired",
			signToken(t, &Claims{
				Sub: ownerID.String(),
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				},
			}, testSecret),
		},
		{
			"non-uuid subject",
			signToken(t, &Claims{Sub: "admin", RegisteredClaims: future}, testSecret),
		},
	}

	m := NewJWTMiddleware(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest("GET", "/api/v1/documents", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if called {
				t.Error("handler must not run for rejected requests")
			}
		})
	}
}

func TestOwnerFromContextDefault(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := OwnerFromContext(req.Context()); got != uuid.Nil {
		t.Errorf("owner on bare context = %s, want nil uuid", got)
	}
}
