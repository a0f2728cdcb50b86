// Package health serves the liveness and readiness probes of the side
// server.
//
// GET /healthz answers 200 whenever the process can serve HTTP. GET /readyz
// runs every registered [Checker] concurrently and answers 200 only if all of
// them pass, 503 otherwise. Both respond with a JSON [Report].
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckTimeout bounds a single readiness check.
const CheckTimeout = 5 * time.Second

// Checker is one named readiness condition. Check returns nil while the
// condition holds.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// CheckResult is the outcome of one [Checker] in a [Report].
type CheckResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

// Report is the response body of both probes.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves the probes. Its checkers are fixed at construction.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New returns a Handler evaluating checkers on every readiness request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...), timeout: CheckTimeout}
}

// Register mounts GET /healthz and GET /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: "ok"})
}

// Readyz reports readiness.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	code := http.StatusOK
	if rep.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeReport(w, code, rep)
}

// Evaluate runs all checkers concurrently, each under its own timeout.
func (h *Handler) Evaluate(ctx context.Context) Report {
	results := make([]CheckResult, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)
			res := CheckResult{OK: err == nil, Elapsed: time.Since(start).Round(time.Microsecond).String()}
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: "ok", Checks: make(map[string]CheckResult, len(results))}
	for i, res := range results {
		rep.Checks[h.checkers[i].Name] = res
		if !res.OK {
			rep.Status = "unavailable"
		}
	}
	return rep
}

func writeReport(w http.ResponseWriter, code int, rep Report) {
	body, err := json.Marshal(rep)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

// Gate is a readiness flag owned by the component it describes. The interview
// session opens it once the live connection is up and closes it on teardown.
// The zero value is closed.
type Gate struct {
	open   atomic.Bool
	reason atomic.Value // string
}

// Set updates the gate. reason explains a closed gate.
func (g *Gate) Set(ready bool, reason string) {
	g.reason.Store(reason)
	g.open.Store(ready)
}

// Ready reports whether the gate is open.
func (g *Gate) Ready() bool { return g.open.Load() }

// Checker adapts the gate to a readiness check named name.
func (g *Gate) Checker(name string) Checker {
	return Checker{Name: name, Check: func(ctx context.Context) error {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case g.open.Load():
			return nil
		}
		if reason, _ := g.reason.Load().(string); reason != "" {
			return errors.New(reason)
		}
		return errors.New("not ready")
	}}
}
