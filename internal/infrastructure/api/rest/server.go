// Package rest exposes the engine's operations as a stdlib net/http
// JSON API using the standard library's method+pattern mux, no router
// dependency required.
package rest

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fractalvote/deliberation/internal/application/engine"
)

// Server wires the deliberation engine behind a plain http.ServeMux.
type Server struct {
	engine *engine.Engine
	mux    *http.ServeMux
	logger zerolog.Logger
	limit  *rateLimiter
}

func NewServer(eng *engine.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		engine: eng,
		mux:    http.NewServeMux(),
		logger: logger,
		limit:  newRateLimiter(120, time.Minute),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /deliberations/{id}/ideas", s.handleSubmitIdea)
	s.mux.HandleFunc("POST /deliberations/{id}/members", s.handleJoinDeliberation)
	s.mux.HandleFunc("POST /deliberations/{id}/voting-entries", s.handleEnterVoting)
	s.mux.HandleFunc("POST /cells/{id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /cells/{id}/comments", s.handlePostComment)
	s.mux.HandleFunc("POST /comments/{id}/upvotes", s.handleUpvoteComment)
	s.mux.HandleFunc("POST /deliberations/{id}/start-voting", s.handleTriggerStartVoting)
	s.mux.HandleFunc("POST /deliberations/{id}/force-close", s.handleForceClose)
}

// ServeHTTP makes Server usable directly as an http.Handler, wrapped in
// the standard middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler().ServeHTTP(w, r)
}

func (s *Server) handler() http.Handler {
	var h http.Handler = s.mux
	h = s.limit.middleware(h)
	h = contentTypeMiddleware(h)
	h = corsMiddleware(h)
	h = recoveryMiddleware(s.logger, h)
	h = loggingMiddleware(s.logger, h)
	return h
}
