package httpapi

import (
	"database/sql"
	"io/fs"
	"net/http"
)

// NewMux registers the infrastructure routes. Feature modules add their own
// routes to the returned mux. deps are pinged by /healthz after the database.
func NewMux(db *sql.DB, static fs.FS, metrics http.Handler, deps ...Dependency) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, deps)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}
