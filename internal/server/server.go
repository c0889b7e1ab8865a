// Package server exposes the archive as a read-only JSON API.
package server

import (
	"net/http"

	"github.com/driftwatch/driftwatch/internal/utils"
	"github.com/driftwatch/driftwatch/pkg/storage"
)

type Server struct {
	DB       *storage.DB
	Username string
	Password string
}

func New(db *storage.DB, user, pass string) *Server {
	return &Server{
		DB:       db,
		Username: user,
		Password: pass,
	}
}

// Handler builds the route table. Split from Start so tests can mount it
// on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.basicAuth(s.handleHealth))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/runs", s.basicAuth(s.handleRuns))
	mux.HandleFunc("GET /api/reports/latest", s.basicAuth(s.handleLatestReport))
	mux.HandleFunc("GET /api/compare", s.basicAuth(s.handleCompare))

	return mux
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Starting archive API on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
