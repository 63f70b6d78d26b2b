package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miradorhq/sessiond/internal/adapter/outbound/directory"
	"github.com/miradorhq/sessiond/internal/domain/principal"
)

func TestRequirePermissionForbidden(t *testing.T) {
	env := newTestEnv(t, &staticDirectory{users: []directory.Record{userRecord(t)}})
	env.login(t, "ana@example.org", false)

	// Readonly users only hold view_dashboard.
	guarded := RequirePermission(env.svc, principal.PermManageUsers)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("guard let a readonly user through")
		}))

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Error != "No tienes permiso para esta acción" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestRequirePermissionAdminPasses(t *testing.T) {
	env := newTestEnv(t, &staticDirectory{admins: []directory.Record{adminRecord(t)}})
	env.login(t, "root@example.org", true)

	called := false
	guarded := RequirePermission(env.svc, principal.PermManageEvents)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d", called, rec.Code)
	}
}

func TestChainRunsOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLoggerFromContextFallback(t *testing.T) {
	if LoggerFromContext(context.Background()) == nil {
		t.Error("LoggerFromContext returned nil without an enriched logger")
	}
}
