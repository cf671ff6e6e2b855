package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, time.Minute)

	tokenString, err := tm.GenerateSessionToken("cred123", "user@example.com", "Jane Doe")
	require.NoError(t, err)

	var gotClaims *models.TokenClaims
	handler := SessionMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetSessionFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "cred123", gotClaims.CredentialID)
}

func TestSessionMiddleware_MissingHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, time.Minute)

	handler := SessionMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, time.Minute)

	handler := SessionMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_RejectsChallengeToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, time.Minute)

	tokenString, err := tm.GenerateChallengeToken("cred123", models.ChallengeKindMFA, nil)
	require.NoError(t, err)

	handler := SessionMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSessionFromContext_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetSessionFromContext(req))
}
