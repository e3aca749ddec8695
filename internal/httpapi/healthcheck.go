package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"aquacast-server/internal/utils"
)

// Dependency is an external service checked by /healthz next to the database.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db   *sql.DB
	deps []Dependency
}

func NewHealthchecker(db *sql.DB, deps ...Dependency) healthchecker {
	return &healthcheckerImpl{db: db, deps: deps}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	for _, dep := range h.deps {
		if err := dep.Ping(r.Context()); err != nil {
			slog.Error("failed to check dependency connectivity", "dependency", dep.Name, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to check "+dep.Name+" connectivity")
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, deps []Dependency) {
	healthchecker := NewHealthchecker(db, deps...)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
