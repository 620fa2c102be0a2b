package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vespa-garage/vespa-admin/internal/storage"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
)

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// newShopServer serves a small slice of the admin API. Every endpoint other
// than login requires "Bearer access-1".
func newShopServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		writeJSON(w, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"user":          map[string]any{"id": 1, "username": creds["username"], "role": "ADMIN", "full_name": "Shop Admin"},
		})
	})
	mux.HandleFunc("POST /auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"message": "Logged out"})
	})

	protected := http.NewServeMux()
	protected.HandleFunc("GET /auth/me/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"user": map[string]any{"id": 1, "username": "admin", "role": "ADMIN", "full_name": "Shop Admin"}})
	})
	protected.HandleFunc("GET /customers/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rossi", r.URL.Query().Get("search"))
		writeJSON(w, map[string]any{
			"customers": []map[string]any{{"id": 4, "first_name": "Giulia", "last_name": "Rossi", "phone": "+39 055 000"}},
			"count":     1,
		})
	})
	protected.HandleFunc("GET /inventory/stock/low/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"critical_stock":[{"id":3,"part_code":"PX-CLT-01","part_name":"Clutch cable","total_stock":1,"min_stock_level":10,"stock_status":"CRITICAL"}],
			"low_stock":[],"critical_count":1,"low_count":0,"total_alerts":1}`))
	})
	protected.HandleFunc("GET /reports/dashboard/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"active_services": 3, "monthly_revenue": 1520.5})
	})
	protected.HandleFunc("GET /appointments/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-05-04", r.URL.Query().Get("start_date"))
		writeJSON(w, map[string]any{"appointments": []map[string]any{
			{"id": 1, "appointment_time": "09:30", "customer_name": "Marco Bianchi", "status": "CONFIRMED"},
		}})
	})
	protected.HandleFunc("GET /accounting/tax-reports/{id}/export-pdf/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T, server *httptest.Server, access, refresh string) (*app, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if access != "" {
		require.NoError(t, store.SetAll(ctx, map[string]string{
			vespa.KeyAccessToken:  access,
			vespa.KeyRefreshToken: refresh,
		}))
	}
	session, err := vespa.NewSession(ctx, store)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &app{
		client:       vespa.NewClient(vespa.ClientOpts{BaseURL: server.URL, Session: session}),
		out:          out,
		prompt:       func(string) (string, error) { return "admin", nil },
		readPassword: func() (string, error) { return "secret", nil },
		now:          func() time.Time { return time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC) },
	}, out
}

func TestLogin_PromptsAndStoresSession(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "", "")

	require.NoError(t, a.run(context.Background(), "login", nil))

	assert.Equal(t, "Logged in as Shop Admin (ADMIN)\n", out.String())
	access, refresh := a.client.Session().Credentials()
	assert.Equal(t, "access-1", access)
	assert.Equal(t, "refresh-1", refresh)
}

func TestLogin_WrongPassword(t *testing.T) {
	server := newShopServer(t)
	a, _ := newTestApp(t, server, "", "")
	a.readPassword = func() (string, error) { return "nope", nil }

	err := a.run(context.Background(), "login", []string{"-u", "admin"})

	var authErr *vespa.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid credentials", authErr.Message)
	assert.Equal(t, vespa.StateUnauthenticated, a.client.Session().State())
}

func TestLogout(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")

	require.NoError(t, a.run(context.Background(), "logout", nil))

	assert.Equal(t, "Logged out.\n", out.String())
	assert.Equal(t, vespa.StateUnauthenticated, a.client.Session().State())
}

func TestWhoami(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")

	require.NoError(t, a.run(context.Background(), "whoami", nil))
	assert.Contains(t, out.String(), "Shop Admin (admin), role ADMIN")

	a, _ = newTestApp(t, server, "", "")
	assert.EqualError(t, a.run(context.Background(), "whoami", nil), "not logged in")
}

func TestCustomers(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")

	require.NoError(t, a.run(context.Background(), "customers", []string{"-search", "rossi"}))

	assert.Contains(t, out.String(), "Giulia Rossi")
	assert.Contains(t, out.String(), "+39 055 000")
	assert.Contains(t, out.String(), "1 of 1 customers")
}

func TestLowStock(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")

	require.NoError(t, a.run(context.Background(), "low-stock", nil))

	assert.Contains(t, out.String(), "PX-CLT-01")
	assert.Contains(t, out.String(), "CRITICAL")
	assert.Contains(t, out.String(), "1 critical, 0 low")
}

func TestStatus(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")

	require.NoError(t, a.run(context.Background(), "status", nil))

	assert.Contains(t, out.String(), "monthly_revenue")
	assert.Contains(t, out.String(), "1520.5")
	assert.Contains(t, out.String(), "1 critical, 0 low")
	assert.Contains(t, out.String(), "09:30  Marco Bianchi  CONFIRMED")
}

func TestStatus_SessionExpired(t *testing.T) {
	server := newShopServer(t)
	a, _ := newTestApp(t, server, "stale", "")

	err := a.run(context.Background(), "status", nil)
	assert.True(t, vespa.IsSessionExpired(err))
}

func TestExportTaxReport(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")
	path := filepath.Join(t.TempDir(), "report.pdf")

	require.NoError(t, a.run(context.Background(), "export-tax-report", []string{"-id", "7", "-o", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Contains(t, out.String(), "(8 bytes)")

	assert.Error(t, a.run(context.Background(), "export-tax-report", nil))
}

func TestGet(t *testing.T) {
	server := newShopServer(t)
	a, out := newTestApp(t, server, "access-1", "refresh-1")

	require.NoError(t, a.run(context.Background(), "get", []string{"-q", "search=rossi", "customers/"}))
	assert.Contains(t, out.String(), `"first_name": "Giulia"`)

	assert.Error(t, a.run(context.Background(), "get", nil))
	assert.Error(t, a.run(context.Background(), "get", []string{"-q", "novalue", "customers/"}))
}

func TestRun_UnknownCommand(t *testing.T) {
	server := newShopServer(t)
	a, _ := newTestApp(t, server, "", "")

	assert.ErrorIs(t, a.run(context.Background(), "frobnicate", nil), errUnknownCommand)
}

func TestField(t *testing.T) {
	rec := vespa.Record{"s": "x", "n": float64(12), "f": 1.5, "b": true, "nil": nil, "obj": map[string]any{"a": float64(1)}}
	assert.Equal(t, "x", field(rec, "s"))
	assert.Equal(t, "12", field(rec, "n"))
	assert.Equal(t, "1.5", field(rec, "f"))
	assert.Equal(t, "true", field(rec, "b"))
	assert.Equal(t, "", field(rec, "nil"))
	assert.Equal(t, "", field(rec, "missing"))
	assert.Equal(t, `{"a":1}`, field(rec, "obj"))
}
