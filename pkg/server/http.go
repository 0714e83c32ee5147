// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	claimsight "github.com/kadirpekel/claimsight"
	"github.com/kadirpekel/claimsight/pkg/config"
	"github.com/kadirpekel/claimsight/pkg/observability"
	"github.com/kadirpekel/claimsight/pkg/store"
)

// AgentName is the display name on the agent card.
const AgentName = "ClaimSight Analytics Agent"

// HTTPServer serves the analytics agent over A2A JSON-RPC.
type HTTPServer struct {
	serverCfg config.ServerConfig
	store     *store.Store
	server    *http.Server

	// TaskStore for persistent task storage (nil = in-memory)
	taskStore a2asrv.TaskStore

	// Observability: tracing and metrics
	observability *observability.Manager

	jsonRPCHandler http.Handler
	cardHandler    http.Handler
	card           *a2a.AgentCard
}

// HTTPServerOption configures the HTTP server.
type HTTPServerOption func(*HTTPServer)

// WithTaskStore sets the task store for persistent task storage.
// If not set, a2a-go uses its internal in-memory store.
func WithTaskStore(ts a2asrv.TaskStore) HTTPServerOption {
	return func(s *HTTPServer) {
		s.taskStore = ts
	}
}

// WithObservability sets the observability manager for tracing and metrics.
func WithObservability(obs *observability.Manager) HTTPServerOption {
	return func(s *HTTPServer) {
		s.observability = obs
	}
}

// NewHTTPServer creates the A2A HTTP server for the given executor. The
// store is only used for health reporting.
func NewHTTPServer(serverCfg config.ServerConfig, executor *Executor, st *store.Store, opts ...HTTPServerOption) *HTTPServer {
	if serverCfg.Host == "" {
		serverCfg.Host = config.DefaultHost
	}
	if serverCfg.Port == 0 {
		serverCfg.Port = config.DefaultPort
	}

	s := &HTTPServer{
		serverCfg: serverCfg,
		store:     st,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.card = buildAgentCard("http://" + serverCfg.Address() + "/")

	var handlerOpts []a2asrv.RequestHandlerOption
	if s.taskStore != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.taskStore))
	}

	requestHandler := a2asrv.NewHandler(executor, handlerOpts...)
	s.jsonRPCHandler = a2asrv.NewJSONRPCHandler(requestHandler)
	s.cardHandler = a2asrv.NewStaticAgentCardHandler(s.card)

	return s
}

// buildAgentCard creates the A2A-compliant agent card.
func buildAgentCard(url string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               AgentName,
		Description:        "Answers analytical questions about insurance customers, policies and claims using a SQL-backed analytics tool.",
		URL:                url,
		Version:            claimsight.Version,
		ProtocolVersion:    "1.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{{
			ID:          "insurance_analytics",
			Name:        "Insurance Analytics",
			Description: "Answer natural language questions about insurance data by generating and running SQL queries.",
			Tags:        []string{"insurance", "analytics", "sql"},
			Examples: []string{
				"How many customers do we have?",
				"What is the breakdown of policies by type?",
				"What is the total claim amount for pending claims?",
				"What is the average premium by policy type?",
				"Which customers have more than 2 claims?",
			},
		}},
		Capabilities: a2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      false,
			StateTransitionHistory: false,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Provider: &a2a.AgentProvider{
			Org: "ClaimSight",
			URL: "https://github.com/kadirpekel/claimsight",
		},
	}
}

// Card returns the agent card served by this server.
func (s *HTTPServer) Card() *a2a.AgentCard {
	return s.card
}

// Address returns the HTTP server address.
func (s *HTTPServer) Address() string {
	return s.serverCfg.Address()
}

// Handler returns the fully assembled HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := s.setupRoutes()

	// Middleware chain (order: observability -> logging -> cors -> routes).
	// Observability wraps everything so all requests are traced.
	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)

	if s.observability != nil && s.observability.TracingEnabled() {
		handler = observability.HTTPMiddleware(s.observability.GetTracer("claimsight.http"))(handler)
	}

	return handler
}

// Start starts the HTTP server and blocks until the context is canceled or
// the server fails.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.serverCfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.serverCfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

// setupRoutes configures the HTTP routes.
// A2A spec compliant paths:
//   - GET  /.well-known/agent-card.json → Agent card (a2a-go native)
//   - POST /                            → JSON-RPC (a2a-go native)
//   - GET  /                            → Service info
//   - GET  /health                      → Health check
//   - GET  /metrics                     → Prometheus metrics (if enabled)
func (s *HTTPServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(a2asrv.WellKnownAgentCardPath, s.cardHandler.ServeHTTP)

	if s.observability != nil && s.observability.MetricsEnabled() {
		mux.Handle("/metrics", observability.MetricsHandler())
		slog.Info("Metrics endpoint enabled", "path", "/metrics")
	}

	return mux
}

// handleRoot serves JSON-RPC for POST and service info for GET.
func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.jsonRPCHandler.ServeHTTP(w, r)

	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":       s.card.Name,
			"version":    s.card.Version,
			"agent_card": a2asrv.WellKnownAgentCardPath,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth returns server health status.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := ""
	if s.store != nil {
		database = s.store.Path()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":   "ok",
		"agent":    s.card.Name,
		"database": database,
	})
}

// corsMiddleware adds permissive CORS headers.
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests without wrapping the ResponseWriter, so
// http.Flusher keeps working for SSE.
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
