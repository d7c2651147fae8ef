package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opentraa/traa-mcp/internal/logger"
)

// RunSSE serves MCP over SSE on the given port until ctx is canceled
func (s *Server) RunSSE(ctx context.Context, port int) error {
	log := logger.WithComponent("sse")

	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	// The SSE handler owns both the event stream and the per-session
	// message endpoints it advertises, so it gets everything else
	router.PathPrefix("/").Handler(sseHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Int("port", port).Msg("SSE server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("SSE server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down SSE server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": Version,
	})
}
