package interview

import (
	"fmt"
	"log/slog"
	"sync"
)

// releaser runs registered cleanup functions exactly once, newest first.
// A release that fails or panics is logged and the remaining releases still
// run. Releases added after release has started run immediately, so a
// resource acquired by an operation that raced teardown is never leaked.
type releaser struct {
	log *slog.Logger

	mu       sync.Mutex
	done     bool
	releases []namedRelease
}

type namedRelease struct {
	name string
	fn   func() error
}

func newReleaser(log *slog.Logger) *releaser {
	return &releaser{log: log}
}

// add registers fn under name. It reports false when the releaser had
// already run, in which case fn has been called before add returned.
func (r *releaser) add(name string, fn func() error) bool {
	r.mu.Lock()
	if !r.done {
		r.releases = append(r.releases, namedRelease{name: name, fn: fn})
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()
	r.run(namedRelease{name: name, fn: fn})
	return false
}

// release runs every registered release in reverse order. Only the first
// call has an effect.
func (r *releaser) release() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	rs := r.releases
	r.releases = nil
	r.mu.Unlock()

	for i := len(rs) - 1; i >= 0; i-- {
		r.run(rs[i])
	}
}

func (r *releaser) run(nr namedRelease) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("release panicked", "resource", nr.name, "panic", fmt.Sprint(p))
		}
	}()
	if err := nr.fn(); err != nil {
		r.log.Warn("release failed", "resource", nr.name, "err", err)
		return
	}
	r.log.Debug("released", "resource", nr.name)
}
