package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Server struct {
	handler *Handler
	server  *http.Server
}

func NewServer(handler *Handler, host string, port int) *Server {
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	}

	return &Server{
		handler: handler,
		server:  server,
	}
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
