package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/readysetinsure/dashboard/internal/callwatch"
	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/gradient"
	"github.com/readysetinsure/dashboard/internal/vapi"
)

// CallService places outbound calls and accepts Vapi webhooks.
type CallService interface {
	Enabled() bool
	Templates() vapi.Templates
	StartCall(ctx context.Context, policyNumber, templateKey, notes string) (*vapi.Call, error)
	HandleWebhook(ctx context.Context, body []byte) (string, error)
}

// CallStream exposes live call updates.
type CallStream interface {
	Subscribe(callID string) (<-chan callwatch.Update, func(), error)
	Stop(callID string) error
}

type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	directory  customer.Directory
	updater    customer.Updater
	calls      CallService
	stream     CallStream
	ramp       gradient.Ramp
	now        func() time.Time
	logger     *slog.Logger
}

func NewServer(port int, dir customer.Directory, upd customer.Updater, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		directory: dir,
		updater:   upd,
		ramp:      gradient.Default,
		now:       time.Now,
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/", s.dashboard)
	router.Post("/callhook", s.callhook)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/customers", s.listCustomers)
		r.Route("/customers/{policy}", func(r chi.Router) {
			r.Get("/", s.getCustomer)
			r.Post("/summary", s.updateSummary)
			r.Post("/messages", s.appendMessage)
			r.Post("/calls", s.startCall)
		})
		r.Get("/calls/templates", s.listTemplates)
		r.Get("/calls/{id}/stream", s.streamCall)
		r.Post("/calls/{id}/stop", s.stopCall)
		r.Get("/stats/weekday", s.weekdayStats)
		r.Get("/gradient", s.gradient)
		r.Post("/transcripts/parse", s.parseTranscript)
	})

	return s
}

// SetCalls wires the call workflow. Call routes answer 503 unless calls
// reports Enabled; the stream routes also need a non-nil stream.
func (s *Server) SetCalls(calls CallService, stream CallStream) {
	s.calls = calls
	s.stream = stream
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

const maxBodyBytes = 1 << 20
