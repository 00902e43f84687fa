package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/dispatch"
	"github.com/tjfontaine/taintpath/internal/pipeline"
	"github.com/tjfontaine/taintpath/internal/pkg/config"
	"github.com/tjfontaine/taintpath/internal/scenario"
	"github.com/tjfontaine/taintpath/internal/sink/command"
	"github.com/tjfontaine/taintpath/internal/sink/render"
	"github.com/tjfontaine/taintpath/internal/storage/sqldb"
)

func newTestServer(t *testing.T, name string, backend ports.Backend) *Server {
	t.Helper()
	if backend == nil {
		store, err := sqldb.NewSQLite("file:" + name + "?mode=memory&cache=shared")
		if err != nil {
			t.Fatalf("NewSQLite() error = %v", err)
		}
		t.Cleanup(func() { store.Close() })
		if err := store.Seed(context.Background(), []sqldb.User{
			{Username: "alice", Email: "alice@example.com"},
			{Username: "bob", Email: "bob@example.com"},
		}); err != nil {
			t.Fatalf("Seed() error = %v", err)
		}
		backend = store
	}

	cmd := command.New(backend)
	rnd := render.New()
	forward, err := pipeline.NewForwardChainFromConfig(configFor("1ms"), nil)
	if err != nil {
		t.Fatalf("NewForwardChainFromConfig() error = %v", err)
	}
	svc := scenario.New(scenario.Config{
		Dispatcher: dispatch.New(cmd, rnd, nil),
		Command:    cmd,
		Render:     rnd,
		Forward:    forward,
	})

	logger, _ := newTestLogger()
	srv := New(Options{Port: 0, RequestTimeout: 5 * time.Second, Logger: logger})
	RegisterUserRoutes(srv.Router, NewHandlers(svc))
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGetUser(t *testing.T) {
	srv := newTestServer(t, "http_get_user", nil)

	rec := do(t, srv, "GET", "/api/users/name/alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	users, ok := decode(t, rec)["user"].([]any)
	if !ok || len(users) != 1 {
		t.Fatalf("user = %v", users)
	}
	if users[0].(map[string]any)["email"] != "alice@example.com" {
		t.Errorf("user = %v", users[0])
	}
}

func TestGetUser_Injection(t *testing.T) {
	srv := newTestServer(t, "http_get_inject", nil)

	rec := do(t, srv, "GET", "/api/users/name/a'%20OR%20'1'='1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if users := decode(t, rec)["user"].([]any); len(users) != 2 {
		t.Errorf("injection returned %d users, want 2", len(users))
	}
}

func TestGetUser_SyntaxErrorIsGeneric500(t *testing.T) {
	srv := newTestServer(t, "http_get_syntax", nil)

	rec := do(t, srv, "GET", "/api/users/name/it's", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Internal Server Error" || len(body) != 1 {
		t.Errorf("body = %v", body)
	}
	if strings.Contains(rec.Body.String(), "SELECT") || strings.Contains(rec.Body.String(), "syntax") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestSearchUser(t *testing.T) {
	srv := newTestServer(t, "http_search", nil)

	rec := do(t, srv, "GET", "/api/users/search/%20%20bob%20%20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if results := decode(t, rec)["results"].([]any); len(results) != 1 {
		t.Errorf("results = %v", results)
	}
}

func TestSearchUser_NoMatchIsEmptyList(t *testing.T) {
	srv := newTestServer(t, "http_search_empty", nil)

	rec := do(t, srv, "GET", "/api/users/search/nobody", "")
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCreateUser(t *testing.T) {
	srv := newTestServer(t, "http_create", nil)

	rec := do(t, srv, "POST", "/api/users/", `{"username":"carol","email":"carol@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["ok"] != true {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = do(t, srv, "POST", "/api/users/", `{"username":"carol","email":"again@example.com"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("duplicate insert status = %d", rec.Code)
	}
}

func TestCreateUser_NumericFields(t *testing.T) {
	srv := newTestServer(t, "http_create_num", nil)

	rec := do(t, srv, "POST", "/api/users/", `{"username":12,"email":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUser_BadJSON(t *testing.T) {
	srv := newTestServer(t, "http_create_bad", nil)

	rec := do(t, srv, "POST", "/api/users/", `{"username":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestComments(t *testing.T) {
	srv := newTestServer(t, "http_comments", nil)

	tests := []struct {
		name   string
		path   string
		body   string
		want   string
		absent string
	}{
		{
			name: "bad", path: "/api/users/comment/bad",
			body: `{"comment":"<img src=x onerror=alert(1)>"}`,
			want: `<div><img src=x onerror=alert(1)></div>`,
		},
		{
			name: "bad2", path: "/api/users/comment/bad2",
			body: `{"comment":"hi<script>x</script>"}`,
			want: `<div><div class="comment">hi</div></div>`,
		},
		{
			name: "good", path: "/api/users/comment/good",
			body:   `{"comment":"<script>alert(1)</script>"}`,
			want:   `<div>&lt;script&gt;alert(1)&lt;/script&gt;</div>`,
			absent: "<script>",
		},
		{
			name: "good without body", path: "/api/users/comment/good",
			want: `<div></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, "POST", tt.path, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
			if rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
			if tt.absent != "" && strings.Contains(rec.Body.String(), tt.absent) {
				t.Errorf("body contains %q", tt.absent)
			}
		})
	}
}

func TestAdminRoutesNotMounted(t *testing.T) {
	srv := newTestServer(t, "http_admin", nil)

	rec := do(t, srv, "DELETE", "/admin/delete/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

type downBackend struct{}

func (downBackend) Acquire(context.Context) (ports.Session, error) {
	return nil, domain.ErrBackendUnavailable
}

func (downBackend) Dialect() string { return "sqlite" }

func TestBackendUnavailable(t *testing.T) {
	srv := newTestServer(t, "", downBackend{})

	for _, path := range []string{"/api/users/name/alice", "/api/users/search/alice"} {
		rec := do(t, srv, "GET", path, "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "unavailable") {
			t.Errorf("%s leaked detail: %s", path, rec.Body.String())
		}
	}
}

func TestPathParam_DecodesEscapes(t *testing.T) {
	srv := New(Options{})
	var got string
	srv.Router.Get("/p/{v}", func(w http.ResponseWriter, r *http.Request) {
		got = pathParam(r, "v")
	})

	srv.Router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/p/a'%20b", nil))
	if got != "a' b" {
		t.Errorf("pathParam() = %q", got)
	}
}

func configFor(delay string) config.PipelineConfig {
	return config.PipelineConfig{AsyncDelay: delay}
}
