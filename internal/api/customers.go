package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/transcript"
)

var allStatuses = []customer.Status{customer.StatusIncomplete, customer.StatusPending, customer.StatusComplete}

// GET /api/v1/customers?status=
func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	status, err := customer.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	customers, err := s.directory.ListByStatus(r.Context(), status)
	if err != nil {
		s.logger.Error("failed to list customers", "status", status, "error", err)
		writeError(w, http.StatusBadGateway, "failed to list customers")
		return
	}
	if customers == nil {
		customers = []customer.Customer{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"count":     len(customers),
		"customers": customers,
	})
}

// GET /api/v1/customers/{policy}
func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCustomer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, customer.NewDetail(*c, s.now()))
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

// POST /api/v1/customers/{policy}/summary
func (s *Server) updateSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy := chi.URLParam(r, "policy")
	if err := s.updater.UpdateSummary(r.Context(), policy, req.Summary); err != nil {
		s.writeUpdateError(w, "update summary", policy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type messageRequest struct {
	Message string            `json:"message"`
	Sender  transcript.Sender `json:"sender,omitempty"`
}

// POST /api/v1/customers/{policy}/messages
func (s *Server) appendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Sender == "" {
		req.Sender = transcript.SenderAssistant
	}
	if !req.Sender.Valid() {
		writeError(w, http.StatusBadRequest, "unknown sender "+string(req.Sender))
		return
	}

	policy := chi.URLParam(r, "policy")
	if err := s.updater.AppendChatlog(r.Context(), policy, req.Sender, req.Message); err != nil {
		s.writeUpdateError(w, "append chatlog", policy, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "appended"})
}

func (s *Server) loadCustomer(w http.ResponseWriter, r *http.Request) (*customer.Customer, bool) {
	policy := chi.URLParam(r, "policy")
	c, err := s.directory.Get(r.Context(), policy)
	if errors.Is(err, customer.ErrNotFound) {
		writeError(w, http.StatusNotFound, "customer not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load customer", "policy_number", policy, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load customer")
		return nil, false
	}
	return c, true
}

func (s *Server) writeUpdateError(w http.ResponseWriter, op, policy string, err error) {
	switch {
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
	default:
		s.logger.Error("backend update failed", "op", op, "policy_number", policy, "error", err)
		writeError(w, http.StatusBadGateway, op+" failed")
	}
}

// customersFor lists one status, or every status when status is empty.
func (s *Server) customersFor(ctx context.Context, status string) ([]customer.Customer, error) {
	if status != "" {
		st, err := customer.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		return s.directory.ListByStatus(ctx, st)
	}

	var all []customer.Customer
	for _, st := range allStatuses {
		cs, err := s.directory.ListByStatus(ctx, st)
		if err != nil {
			return nil, err
		}
		all = append(all, cs...)
	}
	return all, nil
}
