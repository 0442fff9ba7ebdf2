package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	key, pubPEM := generateTestKeys(t)
	verifier, err := NewVerifier(pubPEM, "test-issuer")
	require.NoError(t, err)

	var captured *Principal
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = MustGetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("passes valid token and injects principal", func(t *testing.T) {
		captured = nil
		claims := validClaims("test-issuer")

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, key, claims))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, claims.Subject, captured.UserID.String())
	})

	t.Run("rejects missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects non-bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer this.is.garbage")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetPrincipal(t *testing.T) {
	p := &Principal{Role: RoleAdmin}
	ctx := WithPrincipal(t.Context(), p)

	got, ok := GetPrincipal(ctx)
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = GetPrincipal(t.Context())
	assert.False(t, ok)
}
