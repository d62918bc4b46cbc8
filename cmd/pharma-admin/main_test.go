// ABOUTME: End-to-end tests for pharma-admin commands against a fake backend
// ABOUTME: Runs the cobra tree with a temp config and session file

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/pharmacy"
	"github.com/2389/pharma-console/internal/session"
)

type cliEnv struct {
	configPath  string
	sessionPath string
}

func newCLIEnv(t *testing.T, baseURL string) cliEnv {
	t.Helper()
	t.Setenv(tokenEnv, "")

	dir := t.TempDir()
	env := cliEnv{
		configPath:  filepath.Join(dir, "console.yaml"),
		sessionPath: filepath.Join(dir, "token"),
	}
	cfg := fmt.Sprintf(`api:
  base_url: %q
  admin_key: "test-admin-key"
  timeout: "2s"
session:
  backend: file
  path: %q
auth:
  dev_mode: true
logging:
  level: error
`, baseURL, env.sessionPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0600))
	return env
}

func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCmd(a)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := root.ExecuteContext(t.Context())
	require.NoError(t, a.teardown())
	return out.String(), err
}

func (e cliEnv) storedToken(t *testing.T) string {
	t.Helper()
	token, err := session.NewFileStore(e.sessionPath).Get()
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginThenListCustomers(t *testing.T) {
	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "name": "Ada Lovelace", "email": "ada@example.com", "is_new_user": true},
			{"id": 2, "name": "", "phone": "555-0100"},
		})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "", "login", "--email", "Ops@Example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ops@example.com")

	token := env.storedToken(t)
	require.NotEmpty(t, token)

	out, err = env.run(t, "", "customers")
	require.NoError(t, err)
	got := <-seen
	assert.Equal(t, "Bearer "+token, got.Get("Authorization"))
	assert.Equal(t, "test-admin-key", got.Get(gateway.AdminKeyHeader))
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "Customer")
	assert.Contains(t, out, "555-0100")

	out, err = env.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ops@example.com")
}

func TestLoginPromptsForMissingCredentials(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1")

	out, err := env.run(t, "ops@example.com\nsecret\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Password: ")
	assert.NotEmpty(t, env.storedToken(t))
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1")

	_, err := env.run(t, "", "login", "--email", "not-an-email", "--password", "secret")
	require.Error(t, err)
	assert.Empty(t, env.storedToken(t))
}

func TestLogoutClearsSession(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1")
	require.NoError(t, session.NewFileStore(env.sessionPath).Set("tok"))

	_, err := env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Empty(t, env.storedToken(t))

	_, err = env.run(t, "", "whoami")
	assert.EqualError(t, err, "not logged in")
}

func TestRejectedSessionIsClearedAndReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)
	require.NoError(t, session.NewFileStore(env.sessionPath).Set("stale-token"))

	_, err := env.run(t, "", "orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrSessionExpired)
	assert.Contains(t, err.Error(), "Invalid token")
	assert.Empty(t, env.storedToken(t))
}

func TestTracesLimit(t *testing.T) {
	var mu sync.Mutex
	var limits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		limits = append(limits, r.URL.Query().Get("limit"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"id": 1, "created_at": "2026-01-01T10:00:00", "trace_data": map[string]string{"step": "older"}},
			{"id": 2, "created_at": "2026-01-02T10:00:00", "trace_data": "newer"},
		}})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "", "traces")
	require.NoError(t, err)
	_, err = env.run(t, "", "traces", "--limit", "500")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"50", "100"}, limits)
	mu.Unlock()
	assert.Less(t, strings.Index(out, "newer"), strings.Index(out, "older"), "newest trace first")
}

func TestTraceDetailShowsExtraFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, gateway.PathDecisionTraces+"3", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          3,
			"created_at":  "2026-01-01T00:00:00Z",
			"trace_data":  map[string]int{"k": 1},
			"customer_id": 7,
			"decision":    "approved",
			"notes":       nil,
		})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "", "traces", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision Trace #3")
	assert.Regexp(t, `customer_id:\s+7`, out)
	assert.Regexp(t, `decision:\s+approved`, out)
	assert.Regexp(t, `notes:\s+-`, out)
	assert.Contains(t, out, `"k": 1`)
}

func TestRequestRelativePath(t *testing.T) {
	type received struct {
		path, adminKey string
	}
	seen := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- received{path: r.URL.Path, adminKey: r.Header.Get(gateway.AdminKeyHeader)}
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "", "request", "GET", "admin/customers/")
	require.NoError(t, err)
	got := <-seen
	assert.Equal(t, "/admin/customers/", got.path)
	assert.Equal(t, "test-admin-key", got.adminKey)
}

func TestHashPasswordSkipsConfig(t *testing.T) {
	t.Setenv(tokenEnv, "")
	broken := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("api: [not: valid"), 0600))
	env := cliEnv{configPath: broken}

	out, err := env.run(t, "", "hash-password", "hunter2-hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "$2")

	_, err = env.run(t, "", "customers")
	assert.Error(t, err, "other commands still load the config")
}

func TestStatsCountsFailedListAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case gateway.PathCustomers:
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "is_new_user": true}, {"id": 2}})
		case gateway.PathMedicines:
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 1, "stock_quantity": 0},
				{"id": 2, "stock_quantity": 5, "prescription_required": true},
				{"id": 3, "stock_quantity": 50},
			})
		case gateway.PathOrders:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
		default:
			writeJSON(w, http.StatusOK, []any{})
		}
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)
	require.NoError(t, session.NewFileStore(env.sessionPath).Set("tok"))

	out, err := env.run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "2 (1 new)")
	assert.Contains(t, out, "orders could not be loaded")
}

func TestRequestEscapeHatch(t *testing.T) {
	type received struct {
		method, body, trace string
	}
	seen := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen <- received{method: r.Method, body: string(b), trace: r.Header.Get("X-Trace")}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "", "request", "put", "/admin/medicines/3", `{"stock_quantity":12}`, "-H", "X-Trace: abc")
	require.NoError(t, err)
	got := <-seen
	assert.Equal(t, http.MethodPut, got.method)
	assert.JSONEq(t, `{"stock_quantity":12}`, got.body)
	assert.Equal(t, "abc", got.trace)
	assert.Contains(t, out, "200 PUT /admin/medicines/3")
	assert.Contains(t, out, `"ok": true`)
}

func TestRequestRejectsUnsupportedMethod(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "", "request", "PATCH", "/admin/orders/1")
	assert.ErrorIs(t, err, gateway.ErrUnsupportedMethod)
	assert.Zero(t, hits.Load())
}

type chatBackend struct {
	mu        sync.Mutex
	customers []int64
}

func (b *chatBackend) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == gateway.PathChat:
		var req pharmacy.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.customers = append(b.customers, req.CustomerID)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"reply":    fmt.Sprintf("reply to %d: %s", req.CustomerID, req.Message),
			"approved": true,
			"order_id": 42,
		})
	case strings.HasPrefix(r.URL.Path, gateway.PathCustomers):
		id := strings.TrimPrefix(r.URL.Path, gateway.PathCustomers)
		writeJSON(w, http.StatusOK, map[string]any{"id": json.Number(id), "name": "Customer " + id})
	default:
		http.NotFound(w, r)
	}
}

func TestChatOneShot(t *testing.T) {
	backend := &chatBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "", "chat", "7", "need", "my", "refill")
	require.NoError(t, err)
	assert.Contains(t, out, "agent: reply to 7: need my refill")
	assert.Contains(t, out, "approved, order #42")
}

func TestChatREPLSwitchesCustomer(t *testing.T) {
	backend := &chatBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "hello\n/switch 8\nhi there\n/quit\n", "chat", "7")
	require.NoError(t, err)

	assert.Contains(t, out, "Chat as Customer 7 (#7)")
	assert.Contains(t, out, "Now chatting as Customer 8 (#8)")
	assert.Contains(t, out, "reply to 7: hello")
	assert.Contains(t, out, "reply to 8: hi there")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []int64{7, 8}, backend.customers)
}

func TestChatShowsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == gateway.PathChat {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "agent offline"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "name": "Grace"})
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, err := env.run(t, "", "chat", "3", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: agent offline")
}

func TestRenderSession(t *testing.T) {
	t.Run("opaque token", func(t *testing.T) {
		var buf bytes.Buffer
		renderSession(&buf, "not-a-jwt-token-value", time.Now())
		assert.Contains(t, buf.String(), "Opaque token (not-a-jwt...)")
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"much too long for this", 10, "much to..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max), "truncate(%q, %d)", tt.in, tt.max)
	}
}

func TestRequestOptions(t *testing.T) {
	opts, err := requestOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = requestOptions([]string{"X-One: 1", "X-One: 2", "Accept:text/plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, opts.Header.Values("X-One"))
	assert.Equal(t, "text/plain", opts.Header.Get("Accept"))

	_, err = requestOptions([]string{"no-colon"})
	assert.Error(t, err)
}
