package app

import (
	"encoding/json"
	"net/http"
)

type snapshotJSON struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	Connected     bool    `json:"connected"`
	Recording     bool    `json:"recording"`
	Capturing     bool    `json:"capturing"`
	Speaking      bool    `json:"speaking"`
	NextStartTime float64 `json:"next_start_time"`
	ActiveSources int     `json:"active_sources"`
	Messages      int     `json:"messages"`
	ElapsedSecs   float64 `json:"elapsed_secs"`
}

// serveSnapshot reports the current session state as JSON.
func (a *App) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	sess := a.session.Load()
	if sess == nil {
		http.Error(w, `{"error":"no session"}`, http.StatusNotFound)
		return
	}
	snap := sess.Snapshot()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(snapshotJSON{
		ID:            snap.ID,
		State:         snap.State.String(),
		Connected:     snap.Connected,
		Recording:     snap.Recording,
		Capturing:     snap.Capturing,
		Speaking:      snap.Speaking,
		NextStartTime: snap.NextStartTime,
		ActiveSources: snap.ActiveSources,
		Messages:      snap.Messages,
		ElapsedSecs:   snap.Elapsed.Seconds(),
	})
}
