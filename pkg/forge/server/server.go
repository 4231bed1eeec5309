// Package server exposes the agent creation pipeline over HTTP for the
// scenario UI: POST a generated package, get back the agent id, URL, and
// provisioned schema.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/okrause/scenarioforge/pkg/forge"
	"github.com/okrause/scenarioforge/pkg/forge/proposal"
	"github.com/okrause/scenarioforge/pkg/forge/registry"
)

// Server is the HTTP front end over a Forge pipeline.
type Server struct {
	forge  *forge.Forge
	config forge.ServerConfig
	logger *slog.Logger
	server *http.Server
}

// New creates a Server.
func New(f *forge.Forge, cfg forge.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	return &Server{
		forge:  f,
		config: cfg,
		logger: logger.With("component", "server"),
	}
}

// Start starts the HTTP server in the background.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()
	s.logger.Info("server started", "address", s.config.ListenAddr)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("server stopping...")
	return s.server.Shutdown(ctx)
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/agents", s.handleCreateAgent)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	return s.corsMiddleware(mux)
}

// corsMiddleware allows the browser-based scenario UI to call the API from
// another origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
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

// handleHealth implements GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// generateRequest is the POST /api/generate body.
type generateRequest struct {
	Customer     string `json:"customer"`
	UseCase      string `json:"useCase"`
	MainSolution string `json:"mainSolution,omitempty"`
	Metric       string `json:"metric,omitempty"`
	Refinements  string `json:"refinements,omitempty"`
}

// handleGenerate implements POST /api/generate: run the LLM and return the
// proposed package without touching HANA or the registry.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Customer == "" || req.UseCase == "" {
		s.writeError(w, "customer and useCase are required", http.StatusBadRequest)
		return
	}

	var refine *proposal.Refinement
	if req.Refinements != "" {
		refine = &proposal.Refinement{Instructions: req.Refinements}
	}

	start := time.Now()
	pkg, err := s.forge.Generate(r.Context(), proposal.Scenario{
		Customer:     req.Customer,
		UseCase:      req.UseCase,
		MainSolution: req.MainSolution,
		Metric:       req.Metric,
	}, refine)
	if err != nil {
		s.logger.Error("generation failed", "customer", req.Customer, "error", err)
		var ve *proposal.ValidationError
		if errors.As(err, &ve) {
			s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.writeError(w, "generation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	s.logger.Info("package generated",
		"customer", req.Customer, "tables", len(pkg.Tables),
		"duration_ms", time.Since(start).Milliseconds())
	s.writeJSON(w, http.StatusOK, pkg)
}

// handleCreateAgent implements POST /api/agents: provision HANA and create
// the agent from a finished package.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var pkg proposal.AgentPackage
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		s.writeError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("received agent creation request", "agent_name", pkg.AgentName)

	result, err := s.forge.CreateAgent(r.Context(), &pkg)
	if err != nil {
		s.logger.Error("agent creation failed", "agent_name", pkg.AgentName, "error", err)

		var ve *proposal.ValidationError
		if errors.As(err, &ve) {
			s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		var apiErr *registry.APIError
		if errors.As(err, &apiErr) {
			s.writeError(w, "failed to create agent in SAP Agents service", http.StatusBadGateway)
			return
		}
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int) {
	s.writeJSON(w, code, map[string]any{"error": map[string]any{
		"message": msg,
		"code":    code,
	}})
}
