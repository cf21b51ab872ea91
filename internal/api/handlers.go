package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/newsletter-engine/internal/compiler"
	"github.com/ignite/newsletter-engine/internal/dispatch"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/service/compile"
	"github.com/ignite/newsletter-engine/internal/store"
)

// Handlers holds the endpoint implementations and their dependencies.
type Handlers struct {
	compileSvc *compile.Service
	dispatcher *dispatch.Dispatcher
}

// NewHandlers creates the handler set.
func NewHandlers(compileSvc *compile.Service, dispatcher *dispatch.Dispatcher) *Handlers {
	return &Handlers{compileSvc: compileSvc, dispatcher: dispatcher}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type compileRequest struct {
	NewsletterID string `json:"newsletter_id"`
}

// CompileNewsletter compiles one newsletter and persists the result.
func (h *Handlers) CompileNewsletter(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NewsletterID == "" {
		respondError(w, http.StatusBadRequest, "newsletter_id is required")
		return
	}

	result, err := h.compileSvc.Compile(r.Context(), req.NewsletterID)
	if err != nil {
		h.respondCompileError(w, req.NewsletterID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"newsletter_id":   result.NewsletterID,
		"blocks_compiled": result.BlocksCompiled,
		"warnings":        result.Warnings,
	})
}

func (h *Handlers) respondCompileError(w http.ResponseWriter, newsletterID string, err error) {
	var cerr *compiler.CompileError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "newsletter not found")
	case errors.Is(err, compile.ErrInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &cerr):
		respondError(w, http.StatusInternalServerError, cerr.Error())
	default:
		logger.Error("compile failed", "newsletter_id", newsletterID, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "compile failed: "+err.Error())
	}
}

type sendRequest struct {
	NewsletterID string `json:"newsletter_id"`
	SendRecordID string `json:"send_record_id"`
}

// SendNewsletter dispatches one send record to its mailing list.
func (h *Handlers) SendNewsletter(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NewsletterID == "" || req.SendRecordID == "" {
		respondError(w, http.StatusBadRequest, "newsletter_id and send_record_id are required")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), req.SendRecordID)
	if err != nil {
		var ferr *dispatch.FatalError
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "send record not found")
		case errors.As(err, &ferr):
			respondError(w, http.StatusInternalServerError, ferr.Error())
		default:
			logger.Error("dispatch failed", "send_record_id", req.SendRecordID, "error", err.Error())
			respondError(w, http.StatusInternalServerError, "send failed: "+err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"status":       result.Status,
		"sent_count":   result.SentCount,
		"failed_count": result.FailedCount,
		"batch_id":     result.BatchID,
		"errors":       result.Errors,
		"analytics": map[string]any{
			"delivery_rate":    result.DeliveryRate,
			"total_recipients": result.TotalRecipients,
		},
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
