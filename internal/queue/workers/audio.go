package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/audifyhq/audify/internal/ledger"
	"github.com/audifyhq/audify/internal/models"
	"github.com/audifyhq/audify/internal/pipeline"
	"github.com/audifyhq/audify/internal/queue"
	"github.com/audifyhq/audify/internal/runs"
	"github.com/audifyhq/audify/internal/webhook"
)

// AudioWorker executes one generation batch per task: it loads the run
// record, drives the coordinator, and writes the terminal state back.
// The task is never retried at the queue level, so a crash before the
// terminal write leaves the run visibly stuck in "running" instead of
// silently re-generating pages.
type AudioWorker struct {
	coordinator *pipeline.Coordinator
	runs        *runs.Store
	ledger      *ledger.Postgres
	webhooks    *webhook.Service
}

func NewAudioWorker(c *pipeline.Coordinator, rs *runs.Store, lg *ledger.Postgres, wh *webhook.Service) *AudioWorker {
	return &AudioWorker{
		coordinator: c,
		runs:        rs,
		ledger:      lg,
		webhooks:    wh,
	}
}

func (w *AudioWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AudioGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := w.runs.Get(ctx, payload.RunID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", payload.RunID, err)
	}

	slog.Info("starting generation batch",
		"run_id", rec.ID,
		"document_id", rec.DocumentID,
		"pages", len(rec.PageIDs),
		"voice", rec.Voice,
	)

	if err := w.runs.MarkRunning(ctx, rec); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	results, genErr := w.coordinator.GenerateAudio(ctx, rec.DocumentID, rec.PageIDs, rec.Voice)
	if err := w.runs.Finish(ctx, rec, results, genErr); err != nil {
		return fmt.Errorf("record run result: %w", err)
	}

	w.notify(ctx, rec, results)

	succeeded := 0
	for _, r := range results {
		if r.Status == models.JobStatusSucceeded {
			succeeded++
		}
	}
	slog.Info("generation batch finished",
		"run_id", rec.ID,
		"succeeded", succeeded,
		"failed", len(results)-succeeded,
		"error", genErr,
	)

	// The terminal state is recorded; returning genErr would only make
	// asynq mark the task failed without changing anything user-visible.
	return nil
}

func (w *AudioWorker) notify(ctx context.Context, rec *runs.Record, results []pipeline.PageResult) {
	if w.webhooks == nil {
		return
	}
	owner, err := w.ledger.DocumentOwner(ctx, rec.DocumentID)
	if err != nil || owner == uuid.Nil {
		slog.Warn("skipping webhook dispatch, owner unknown", "run_id", rec.ID, "error", err)
		return
	}
	if err := w.webhooks.Dispatch(ctx, owner, models.EventAudioGenerated, map[string]interface{}{
		"run_id":      rec.ID,
		"document_id": rec.DocumentID,
		"status":      rec.Status,
		"results":     results,
	}); err != nil {
		slog.Warn("webhook dispatch failed", "run_id", rec.ID, "error", err)
	}
}
