package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/audifyhq/audify/internal/auth"
	"github.com/audifyhq/audify/internal/pipeline"
	"github.com/audifyhq/audify/internal/queue"
	"github.com/audifyhq/audify/internal/runs"
)

// ownerSource resolves a document to its owner for access checks.
type ownerSource interface {
	DocumentOwner(ctx context.Context, documentID uuid.UUID) (uuid.UUID, error)
}

// runRegistry is the slice of the run store the handler needs.
type runRegistry interface {
	Create(ctx context.Context, documentID uuid.UUID, pageIDs []uuid.UUID, voice string) (*runs.Record, error)
	Get(ctx context.Context, id string) (*runs.Record, error)
	Finish(ctx context.Context, rec *runs.Record, results []pipeline.PageResult, runErr error) error
}

type audioEnqueuer interface {
	EnqueueAudioGenerate(payload queue.AudioGeneratePayload) error
}

type AudioHandler struct {
	ledger ownerSource
	runs   runRegistry
	queue  audioEnqueuer
}

func NewAudioHandler(lg ownerSource, rs runRegistry, qc audioEnqueuer) *AudioHandler {
	return &AudioHandler{ledger: lg, runs: rs, queue: qc}
}

type generateRequest struct {
	PageIDs []string `json:"page_ids"`
	Voice   string   `json:"voice"`
}

// Generate accepts a batch of pages for asynchronous narration and
// returns a run id the caller can poll.
func (h *AudioHandler) Generate(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.PageIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page_ids required"})
		return
	}

	pageIDs := make([]uuid.UUID, len(req.PageIDs))
	for i, s := range req.PageIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page ID: " + s})
			return
		}
		pageIDs[i] = id
	}

	owner, err := h.ledger.DocumentOwner(r.Context(), docID)
	if err != nil || owner != auth.OwnerFromContext(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	rec, err := h.runs.Create(r.Context(), docID, pageIDs, req.Voice)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "create run: " + err.Error()})
		return
	}

	if err := h.queue.EnqueueAudioGenerate(queue.AudioGeneratePayload{
		RunID:      rec.ID,
		DocumentID: docID.String(),
		PageIDs:    req.PageIDs,
		Voice:      req.Voice,
	}); err != nil {
		// The run can never execute; finalize it so pollers do not see a
		// pending record that nothing will pick up.
		if ferr := h.runs.Finish(r.Context(), rec, nil, err); ferr != nil {
			slog.Warn("failed to finalize unenqueued run", "run_id", rec.ID, "error", ferr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "enqueue: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": rec.ID, "status": rec.Status})
}

// RunStatus reports the state of a previously started generation run.
func (h *AudioHandler) RunStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.runs.Get(r.Context(), id)
	if err != nil {
		if runs.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
