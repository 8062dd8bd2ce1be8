package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve registers h on a fresh engine and performs a GET on path.
func serve(t *testing.T, h *Handler, req *http.Request) (int, result) {
	t.Helper()
	r := gin.New()
	h.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "providers", Check: failing("down")})
	code, body := serve(t, h, get("/healthz"))
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "providers", Check: ok}, {Name: "profiles", Check: ok}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"providers": "ok", "profiles": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{{Name: "providers", Check: failing("all backends open")}, {Name: "profiles", Check: ok}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"providers": "fail: all backends open", "profiles": "ok"},
		},
		{
			name:       "all fail",
			checkers:   []Checker{{Name: "providers", Check: failing("timeout")}, {Name: "profiles", Check: failing("seed not loaded")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"providers": "fail: timeout", "profiles": "fail: seed not loaded"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			code, body := serve(t, New(tc.checkers...), get("/readyz"))
			if code != tc.wantCode {
				t.Errorf("status code = %d, want %d", code, tc.wantCode)
			}
			if body.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tc.wantStatus)
			}
			for name, want := range tc.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("checks[%q] = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, body := serve(t, h, get("/readyz").WithContext(ctx))
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if !strings.HasPrefix(body.Checks["slow"], "fail:") {
		t.Errorf("checks[slow] = %q, want a failure", body.Checks["slow"])
	}
}

type fakeFailover bool

func (f fakeFailover) Healthy() bool { return bool(f) }

func TestProvidersChecker(t *testing.T) {
	t.Parallel()

	healthy := ProvidersChecker(map[string]Failover{
		"simplify": fakeFailover(true),
		"diagram":  fakeFailover(true),
	})
	if err := healthy.Check(context.Background()); err != nil {
		t.Errorf("healthy components: unexpected error %v", err)
	}

	down := ProvidersChecker(map[string]Failover{
		"simplify": fakeFailover(true),
		"visual":   fakeFailover(false),
		"diagram":  fakeFailover(false),
	})
	err := down.Check(context.Background())
	if err == nil {
		t.Fatal("expected error when components are down")
	}
	if want := "all backends open for diagram, visual"; err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
	if down.Name != "providers" {
		t.Errorf("Name = %q, want providers", down.Name)
	}
}
