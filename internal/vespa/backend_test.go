package vespa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vespa-garage/vespa-admin/internal/storage"
)

// fakeBackend imitates the auth endpoints of the shop backend and a
// protected /customers/ collection.
type fakeBackend struct {
	mu           sync.Mutex
	validAccess  string
	refreshToken string
	nextAccess   string
	// refreshStatus, when set, makes /auth/refresh/ fail with that status.
	refreshStatus int
	refreshDelay  time.Duration
	// refreshGate, when set, holds /auth/refresh/ until it is closed.
	refreshGate chan struct{}
	// rejectAll makes /customers/ answer 401 regardless of token.
	rejectAll bool

	refreshCalls  atomic.Int32
	customerCalls atomic.Int32
	logoutCalls   atomic.Int32

	customerAuth       []string
	customerRequestIDs []string
	refreshAuth        []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		validAccess:  "access-1",
		refreshToken: "refresh-1",
		nextAccess:   "access-2",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", b.login)
	mux.HandleFunc("POST /auth/refresh/", b.refresh)
	mux.HandleFunc("POST /auth/logout/", b.logout)
	mux.HandleFunc("GET /customers/", b.customers)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return b, server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&creds)
	if creds.Username != "admin" || creds.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	b.mu.Lock()
	access, refresh := b.validAccess, b.refreshToken
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Login successful",
		"access_token":  access,
		"refresh_token": refresh,
		"user": map[string]any{
			"id":        1,
			"username":  "admin",
			"role":      "ADMIN",
			"full_name": "Shop Admin",
		},
	})
}

func (b *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	b.mu.Lock()
	b.refreshAuth = append(b.refreshAuth, r.Header.Get("Authorization"))
	status, delay, gate := b.refreshStatus, b.refreshDelay, b.refreshGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": "Token is invalid or expired"})
		return
	}

	var body struct {
		Refresh string `json:"refresh"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	if body.Refresh != b.refreshToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	b.validAccess = b.nextAccess
	writeJSON(w, http.StatusOK, map[string]string{"access": b.nextAccess})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	b.logoutCalls.Add(1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (b *fakeBackend) customers(w http.ResponseWriter, r *http.Request) {
	b.customerCalls.Add(1)

	b.mu.Lock()
	auth := r.Header.Get("Authorization")
	b.customerAuth = append(b.customerAuth, auth)
	b.customerRequestIDs = append(b.customerRequestIDs, r.Header.Get(headerRequestID))
	ok := !b.rejectAll && auth == "Bearer "+b.validAccess
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": []map[string]any{
			{"id": 1, "name": "Giulia Rossi"},
			{"id": 2, "name": "Marco Bianchi"},
		},
		"count": 2,
	})
}

func (b *fakeBackend) authHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.customerAuth...)
}

// newTestClient returns a client for server backed by a MemoryStore
// pre-loaded with access/refresh (either may be empty).
func newTestClient(t *testing.T, server *httptest.Server, access, refresh string, opts ...func(*ClientOpts)) (*Client, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	values := map[string]string{}
	if access != "" {
		values[KeyAccessToken] = access
	}
	if refresh != "" {
		values[KeyRefreshToken] = refresh
	}
	require.NoError(t, store.SetAll(ctx, values))

	session, err := NewSession(ctx, store)
	require.NoError(t, err)

	clientOpts := ClientOpts{
		BaseURL: server.URL,
		Session: session,
		Timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&clientOpts)
	}
	return NewClient(clientOpts), store
}
