package vespa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_StoresTokensAndReturnsProfile(t *testing.T) {
	ctx := context.Background()
	backend, server := newFakeBackend(t)
	client, store := newTestClient(t, server, "", "")

	login, err := client.Authenticate(ctx, "admin", "secret")
	require.NoError(t, err)

	assert.Equal(t, "Login successful", login.Message)
	assert.Equal(t, "access-1", login.AccessToken)
	assert.Equal(t, "refresh-1", login.RefreshToken)
	assert.Equal(t, User{ID: 1, Username: "admin", Role: "ADMIN", FullName: "Shop Admin"}, login.User)
	assert.Equal(t, "Login successful", login.Raw["message"])

	assert.Equal(t, StateAuthenticated, client.Session().State())
	refresh, ok, err := store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refresh-1", refresh)

	// The next request carries the new token
	_, err = client.GetCustomers(ctx, CustomerQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer access-1"}, backend.authHeaders())
}

func TestAuthenticate_RejectedCredentials(t *testing.T) {
	_, server := newFakeBackend(t)
	client, _ := newTestClient(t, server, "old-access", "old-refresh")

	_, err := client.Authenticate(context.Background(), "admin", "wrong")
	require.Error(t, err)

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Invalid credentials", authErr.Error())

	access, refresh := client.Session().Credentials()
	assert.Equal(t, "old-access", access)
	assert.Equal(t, "old-refresh", refresh)
}

func TestAuthenticate_FallbackMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, "", "")
	_, err := client.Authenticate(context.Background(), "admin", "secret")

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "login failed", authErr.Message)
}

func TestDeauthenticate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend, server := newFakeBackend(t)
	client, store := newTestClient(t, server, "access-1", "refresh-1")

	client.Deauthenticate(ctx)
	client.Deauthenticate(ctx)

	assert.Equal(t, int32(1), backend.logoutCalls.Load())
	assert.Equal(t, StateUnauthenticated, client.Session().State())
	for _, key := range []string{KeyAccessToken, KeyRefreshToken} {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestDeauthenticate_ClearsCredentialsWhenLogoutFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, "access-1", "refresh-1")
	client.Deauthenticate(context.Background())

	access, refresh := client.Session().Credentials()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestCurrentUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"id":        4,
				"username":  "mechanic",
				"role":      "STAFF",
				"full_name": "Luca Verdi",
				"email":     "luca@example.com",
			},
		})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, "a", "r")
	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &User{ID: 4, Username: "mechanic", Role: "STAFF", FullName: "Luca Verdi", Email: "luca@example.com"}, user)
}

func TestChangePassword(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/change-password/", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"message":"Password changed successfully"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, "a", "r")
	res, err := client.ChangePassword(context.Background(), "n3w-pass")
	require.NoError(t, err)

	assert.Equal(t, "n3w-pass", body["new_password"])
	assert.Equal(t, "Password changed successfully", res["message"])
}
