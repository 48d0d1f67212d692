package pipeline

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/audifyhq/audify/internal/errs"
	"github.com/audifyhq/audify/internal/models"
	"github.com/audifyhq/audify/internal/storage"
	"github.com/audifyhq/audify/internal/synth"
)

// Job is one page selected for (re)generation.
type Job struct {
	DocumentID uuid.UUID
	Page       models.Page
	Voice      string
}

// PageResult is the terminal outcome for one page of a generation
// batch. Exactly one of Locator/Error is set.
type PageResult struct {
	PageID     uuid.UUID `json:"page_id"`
	PageNumber int       `json:"page_number"`
	Status     string    `json:"status"` // succeeded | failed
	Locator    string    `json:"locator,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Runner drives one page through synthesize → store → record. Each
// page runs independently: a runner never touches another page's
// state, and the ledger is written only on success.
type Runner struct {
	synth       synth.Synthesizer
	store       storage.ArtifactStore
	ledger      Ledger
	maxAttempts int
	baseBackoff time.Duration

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(sy synth.Synthesizer, st storage.ArtifactStore, lg Ledger, maxAttempts int, baseBackoff time.Duration) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if baseBackoff <= 0 {
		baseBackoff = 250 * time.Millisecond
	}
	return &Runner{
		synth:       sy,
		store:       st,
		ledger:      lg,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		sleep:       sleepCtx,
	}
}

// Run executes the state machine Pending → Running → {Succeeded,
// Failed} for one page. Transient failures are retried with jittered
// exponential backoff; caller errors fail immediately.
func (r *Runner) Run(ctx context.Context, job Job) PageResult {
	result := PageResult{
		PageID:     job.Page.ID,
		PageNumber: job.Page.PageNumber,
		Status:     models.JobStatusPending,
	}

	result.Status = models.JobStatusRunning

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				// Keep the failing step's kind; the cancellation only
				// cut the retry short.
				lastErr = errs.Errorf(errs.KindOf(lastErr), "canceled before retry: %w", err)
				break
			}
		}

		locator, err := r.attempt(ctx, job)
		if err == nil {
			result.Status = models.JobStatusSucceeded
			result.Locator = locator
			return result
		}

		lastErr = err
		if !errs.Retryable(err) {
			break
		}
		slog.Warn("page generation attempt failed",
			"page_id", job.Page.ID,
			"page_number", job.Page.PageNumber,
			"attempt", attempt,
			"error", err,
		)
	}

	result.Status = models.JobStatusFailed
	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	return result
}

// attempt performs one full synthesize → store → record pass. Any step
// failing aborts the attempt; a fresh attempt stores under a fresh key
// so retries never collide.
func (r *Runner) attempt(ctx context.Context, job Job) (string, error) {
	res, err := r.synth.Synthesize(ctx, synth.Request{Text: job.Page.Content, Voice: job.Voice})
	if err != nil {
		return "", err
	}

	key := storage.AudioKey(job.DocumentID, job.Page.PageNumber, synth.Ext(res.ContentType))
	locator, err := r.store.Put(ctx, key, res.Audio, res.ContentType)
	if err != nil {
		return "", err
	}

	if _, err := r.ledger.InsertAudioFile(ctx, models.AudioFile{
		PageID:   job.Page.ID,
		FileName: key,
		FilePath: locator,
		Voice:    job.Voice,
	}); err != nil {
		return "", err
	}

	return locator, nil
}

// maxBackoff caps the retry delay so a large attempt budget cannot
// double the base into overflow.
const maxBackoff = time.Minute

// backoff returns the wait before the given attempt (attempt >= 2),
// doubling per attempt with ±50% jitter, capped at maxBackoff.
func (r *Runner) backoff(attempt int) time.Duration {
	d := r.baseBackoff
	for i := 2; i < attempt; i++ {
		d *= 2
		if d <= 0 || d >= maxBackoff {
			d = maxBackoff
			break
		}
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(d)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
