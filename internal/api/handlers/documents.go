package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/audifyhq/audify/internal/auth"
	"github.com/audifyhq/audify/internal/errs"
	"github.com/audifyhq/audify/internal/ledger"
	"github.com/audifyhq/audify/internal/models"
	"github.com/audifyhq/audify/internal/pipeline"
	"github.com/audifyhq/audify/internal/webhook"
)

type DocumentHandler struct {
	coordinator *pipeline.Coordinator
	ledger      *ledger.Postgres
	webhooks    *webhook.Service
}

func NewDocumentHandler(c *pipeline.Coordinator, lg *ledger.Postgres, wh *webhook.Service) *DocumentHandler {
	return &DocumentHandler{coordinator: c, ledger: lg, webhooks: wh}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read file: " + err.Error()})
		return
	}

	owner := auth.OwnerFromContext(r.Context())
	doc, err := h.coordinator.CreateDocument(r.Context(), name, owner, data)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}

	if h.webhooks != nil {
		if err := h.webhooks.Dispatch(r.Context(), owner, models.EventDocumentCreated, map[string]interface{}{
			"document_id": doc.ID,
			"name":        doc.Name,
			"pages":       len(doc.Pages),
		}); err != nil {
			slog.Warn("webhook dispatch failed", "document_id", doc.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	docs, err := h.ledger.ListDocuments(r.Context(), owner)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	if !h.ownedByCaller(w, r, id) {
		return
	}

	if err := h.coordinator.DeleteDocument(r.Context(), id); err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedByCaller rejects access to documents the caller does not own.
// Responds and returns false when the check fails.
func (h *DocumentHandler) ownedByCaller(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	owner, err := h.ledger.DocumentOwner(r.Context(), id)
	if err != nil || owner != auth.OwnerFromContext(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return false
	}
	return true
}

// statusFor maps the pipeline error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindExtraction:
		return http.StatusUnprocessableEntity
	case errs.KindDelete:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
