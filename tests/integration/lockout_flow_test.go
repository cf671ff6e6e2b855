package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFlowTest(t *testing.T) (*TestServer, *TestDB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Teardown(context.Background()) })

	server := NewTestServer(testDB.DB)
	t.Cleanup(server.Close)

	return server, testDB
}

func login(t *testing.T, server *TestServer, email, password string) *http.Response {
	t.Helper()

	resp, err := server.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.NoError(t, err)
	return resp
}

func TestLockoutAndUnlockFlow(t *testing.T) {
	server, testDB := setupFlowTest(t)

	ctx := context.Background()
	email, password := TestAccount("lockout")
	_, err := SeedCredential(ctx, testDB.DB, email, password)
	require.NoError(t, err)

	// Five wrong passwords lock the account.
	for i := 0; i < 5; i++ {
		resp := login(t, server, email, "WrongPassword1!")
		resp.Body.Close()
	}

	resp := login(t, server, email, password)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body map[string]any
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.Equal(t, "account_locked", body["error"])

	// The lock email carries a working unlock token.
	unlockEmail := server.EmailService.WaitForEmail("unlock", 3*time.Second)
	require.NotNil(t, unlockEmail)
	require.NotEmpty(t, unlockEmail.Token)

	resp, err = server.Request(http.MethodPost, "/auth/unlock/confirm", map[string]string{
		"token": unlockEmail.Token,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The token is single-use.
	resp, err = server.Request(http.MethodPost, "/auth/unlock/confirm", map[string]string{
		"token": unlockEmail.Token,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Unlocked: the correct password signs in again.
	resp = login(t, server, email, password)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginBody map[string]any
	require.NoError(t, ParseJSONResponse(resp, &loginBody))
	assert.Equal(t, "authenticated", loginBody["status"])
	assert.NotEmpty(t, loginBody["token"])
}

func TestRegisterLoginAndChangePasswordFlow(t *testing.T) {
	server, _ := setupFlowTest(t)

	email, password := TestAccount("register")

	resp, err := server.Request(http.MethodPost, "/auth/register", map[string]any{
		"email":     email,
		"password":  password,
		"full_name": "Flow Test",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = login(t, server, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginBody map[string]any
	require.NoError(t, ParseJSONResponse(resp, &loginBody))
	sessionToken, _ := loginBody["token"].(string)
	require.NotEmpty(t, sessionToken)

	newPassword := "RotatedPassword456$"
	resp, err = server.RequestWithAuth(http.MethodPost, "/auth/password/change", sessionToken, map[string]string{
		"current_password": password,
		"new_password":     newPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Old password no longer works, new one does.
	resp = login(t, server, email, password)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = login(t, server, email, newPassword)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Reusing the previous password is refused.
	resp = login(t, server, email, newPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, ParseJSONResponse(resp, &loginBody))
	sessionToken, _ = loginBody["token"].(string)

	resp, err = server.RequestWithAuth(http.MethodPost, "/auth/password/change", sessionToken, map[string]string{
		"current_password": newPassword,
		"new_password":     password,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSecurityChallengeFlow(t *testing.T) {
	server, _ := setupFlowTest(t)

	email, password := TestAccount("challenge")

	resp, err := server.Request(http.MethodPost, "/auth/register", map[string]any{
		"email":     email,
		"password":  password,
		"full_name": "Challenge Test",
		"security_questions": []map[string]string{
			{"question": "First pet?", "answer": "Rex"},
		},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Two plain failures, the third offers the question challenge.
	for i := 0; i < 2; i++ {
		resp := login(t, server, email, "WrongPassword1!")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	resp = login(t, server, email, "WrongPassword1!")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.Equal(t, "challengeRequired", body["status"])
	assert.Equal(t, "securityChallenge", body["challenge_kind"])
	pendingToken, _ := body["pending_token"].(string)
	require.NotEmpty(t, pendingToken)

	// Correct answer completes the login.
	resp, err = server.Request(http.MethodPost, "/auth/challenge/resume", map[string]any{
		"pending_token": pendingToken,
		"answers":       []string{"rex"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.Equal(t, "authenticated", body["status"])
	assert.NotEmpty(t, body["token"])
}
