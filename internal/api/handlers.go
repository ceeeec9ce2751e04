package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	goccy "github.com/goccy/go-json"

	"godwatch/internal/audit"
	"godwatch/internal/notify"
)

// Status is the dashboard summary
type Status struct {
	AdminsOnline     int          `json:"adminsOnline"`
	IntervalSeconds  int          `json:"intervalSeconds"`
	AttackSubscribed bool         `json:"attackSubscribed"`
	TargetSubscribed bool         `json:"targetSubscribed"`
	BridgeConnected  bool         `json:"bridgeConnected"`
	Notifications    notify.Stats `json:"notifications"`
	Audit            audit.Stats  `json:"audit"`
}

func (h *routerHandlers) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.watcher.Status())
}

func (h *routerHandlers) handleGetAdmins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.watcher.Admins())
}

func (h *routerHandlers) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, rec := range h.watcher.Admins() {
		if rec.ID == id {
			writeJSON(w, rec)
			return
		}
	}
	writeError(w, "admin not online", http.StatusNotFound)
}

func (h *routerHandlers) handleGetOffenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.watcher.Offenses())
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	goccy.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	goccy.NewEncoder(w).Encode(map[string]string{"error": message})
}
