package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func probe(t *testing.T, h *Handler, path string) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
	}
	return rec.Code, rep
}

func pass(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func failing(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

func TestHealthz_IgnoresCheckers(t *testing.T) {
	t.Parallel()
	code, rep := probe(t, New(failing("session", "not connected")), "/healthz")
	if code != http.StatusOK || rep.Status != "ok" || rep.Checks != nil {
		t.Errorf("healthz = %d %+v", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantFailed map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []Checker{pass("session"), pass("feedback_store")},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "one fails",
			checkers:   []Checker{pass("session"), failing("feedback_store", "read-only file system")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
			wantFailed: map[string]string{"feedback_store": "read-only file system"},
		},
		{
			name:       "all fail",
			checkers:   []Checker{failing("session", "connecting"), failing("feedback_store", "disk full")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
			wantFailed: map[string]string{"session": "connecting", "feedback_store": "disk full"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, rep := probe(t, New(tt.checkers...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Fatalf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			if len(rep.Checks) != len(tt.checkers) {
				t.Errorf("checks = %v", rep.Checks)
			}
			for name, res := range rep.Checks {
				want, failed := tt.wantFailed[name]
				if res.OK == failed || res.Error != want {
					t.Errorf("check %s = %+v", name, res)
				}
				if res.Elapsed == "" {
					t.Errorf("check %s has no elapsed time", name)
				}
			}
		})
	}
}

func TestEvaluate_RunsChecksConcurrently(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var started = make(chan struct{}, 2)
	slow := func(name string) Checker {
		return Checker{Name: name, Check: func(ctx context.Context) error {
			started <- struct{}{}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}}
	}
	h := New(slow("a"), slow("b"))

	done := make(chan Report, 1)
	go func() { done <- h.Evaluate(context.Background()) }()
	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("checks did not start concurrently")
		}
	}
	close(release)
	if rep := <-done; rep.Status != "ok" {
		t.Errorf("report = %+v", rep)
	}
}

func TestEvaluate_CheckTimeout(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "stuck", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	h.timeout = 20 * time.Millisecond

	rep := h.Evaluate(context.Background())
	if rep.Checks["stuck"].Error != context.DeadlineExceeded.Error() {
		t.Errorf("stuck check = %+v", rep.Checks["stuck"])
	}
}

func TestGate(t *testing.T) {
	t.Parallel()
	var g Gate
	c := g.Checker("session")

	if g.Ready() {
		t.Error("zero Gate is ready")
	}
	if err := c.Check(context.Background()); err == nil || err.Error() != "not ready" {
		t.Errorf("zero Gate check = %v", err)
	}

	g.Set(true, "")
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("open Gate check = %v", err)
	}

	g.Set(false, "session ended")
	if err := c.Check(context.Background()); err == nil || err.Error() != "session ended" {
		t.Errorf("closed Gate check = %v", err)
	}

	g.Set(true, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Check(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled check = %v", err)
	}
}

func TestReadyz_FollowsGate(t *testing.T) {
	t.Parallel()
	var g Gate
	h := New(g.Checker("session"))

	if code, _ := probe(t, h, "/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("before Set = %d", code)
	}
	g.Set(true, "")
	if code, _ := probe(t, h, "/readyz"); code != http.StatusOK {
		t.Errorf("after Set = %d", code)
	}
}
