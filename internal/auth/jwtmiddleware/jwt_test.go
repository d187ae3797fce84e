package jwtmiddleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmark/eventa-coins/internal/auth/jwtmiddleware"
	"github.com/velmark/eventa-coins/internal/domain/models"
)

const testSecret = "test-secret"

// makeToken выпускает HS256-токен с нужными клеймами для тестов.
func makeToken(t *testing.T, userID string, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestJWTMiddleware_MissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	middleware := jwtmiddleware.NewJWTMiddleware()
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	middleware := jwtmiddleware.NewJWTMiddleware()
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached with a broken token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_ValidTokenSetsIdentity(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	middleware := jwtmiddleware.NewJWTMiddleware()

	var gotUserID int64
	var gotRole string
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := jwtmiddleware.FromContext(r.Context())
		require.True(t, ok)
		role, ok := jwtmiddleware.RoleFromContext(r.Context())
		require.True(t, ok)
		gotUserID, gotRole = userID, role
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken(t, "42", models.RoleClient))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotUserID)
	assert.Equal(t, models.RoleClient, gotRole)
}

// Клиентская роль не проходит через RequireAdmin, админская проходит.
func TestRequireAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	middleware := jwtmiddleware.NewJWTMiddleware()
	handler := middleware(jwtmiddleware.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/balance", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken(t, "42", models.RoleClient))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "Client role must not pass admin gate")

	req = httptest.NewRequest(http.MethodPost, "/api/admin/balance", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken(t, "1", models.RoleAdmin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
