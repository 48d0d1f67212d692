package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/audifyhq/audify/internal/errs"
	"github.com/audifyhq/audify/internal/extract"
	"github.com/audifyhq/audify/internal/models"
	"github.com/audifyhq/audify/internal/storage"
	"github.com/audifyhq/audify/internal/synth"
)

// Ledger is the slice of the system of record the pipeline needs.
type Ledger interface {
	CreateDocument(ctx context.Context, name string, ownerID uuid.UUID, pages []extract.Page) (*models.Document, error)
	PagesByID(ctx context.Context, documentID uuid.UUID, pageIDs []uuid.UUID) ([]models.Page, error)
	InsertAudioFile(ctx context.Context, af models.AudioFile) (*models.AudioFile, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) ([]string, error)
}

type Config struct {
	Concurrency int           // worker pool size for page generation
	MaxAttempts int           // per-page synthesis/store attempts
	BaseBackoff time.Duration // first retry delay
}

// Coordinator owns the document-to-audiobook flow: it runs extraction
// once per document, fans page generation out to a bounded pool, and
// funnels all persistence through the ledger.
type Coordinator struct {
	extractor extract.Extractor
	store     storage.ArtifactStore
	ledger    Ledger
	runner    *Runner
	cfg       Config
}

func NewCoordinator(ex extract.Extractor, sy synth.Synthesizer, st storage.ArtifactStore, lg Ledger, cfg Config) *Coordinator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &Coordinator{
		extractor: ex,
		store:     st,
		ledger:    lg,
		runner:    NewRunner(sy, st, lg, cfg.MaxAttempts, cfg.BaseBackoff),
		cfg:       cfg,
	}
}

// CreateDocument extracts all pages from the raw bytes and persists
// the document with its full page set. Extraction and persistence are
// each all-or-nothing; the first failure is returned unwrapped.
func (c *Coordinator) CreateDocument(ctx context.Context, name string, ownerID uuid.UUID, data []byte) (*models.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Errorf(errs.KindInvalidInput, "document name is required")
	}

	pages, err := c.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	doc, err := c.ledger.CreateDocument(ctx, name, ownerID, pages)
	if err != nil {
		return nil, err
	}

	slog.Info("document created",
		"document_id", doc.ID,
		"name", doc.Name,
		"pages", extract.PageSummary(pages),
	)
	return doc, nil
}

// GenerateAudio synthesizes and stores audio for the requested pages
// of one document, with one result entry per requested page in request
// order. Pages fail independently: a failed page never aborts or rolls
// back the others. The pool bound keeps fan-out below the rate limits
// of the synthesis and storage services.
func (c *Coordinator) GenerateAudio(ctx context.Context, documentID uuid.UUID, pageIDs []uuid.UUID, voice string) ([]PageResult, error) {
	if len(pageIDs) == 0 {
		return nil, errs.Errorf(errs.KindInvalidInput, "no pages requested")
	}

	pages, err := c.ledger.PagesByID(ctx, documentID, pageIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Page, len(pages))
	for _, pg := range pages {
		byID[pg.ID] = pg
	}

	results := make([]PageResult, len(pageIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for i, id := range pageIDs {
		pg, ok := byID[id]
		if !ok {
			results[i] = PageResult{
				PageID: id,
				Status: models.JobStatusFailed,
				Error:  errs.Errorf(errs.KindInvalidInput, "page %s does not belong to document %s", id, documentID).Error(),
			}
			continue
		}

		i := i
		g.Go(func() error {
			// A canceled batch must not start queued pages; pages
			// already finished keep their results.
			if gctx.Err() != nil {
				results[i] = PageResult{
					PageID:     pg.ID,
					PageNumber: pg.PageNumber,
					Status:     models.JobStatusFailed,
					Error:      "batch canceled before page started",
				}
				return nil
			}
			results[i] = c.runner.Run(gctx, Job{
				DocumentID: documentID,
				Page:       pg,
				Voice:      voice,
			})
			return nil
		})
	}

	// Runners report failures through their result entries, so Wait
	// only returns a context error.
	g.Wait()

	return results, nil
}

// DeleteDocument removes the document and everything under it from the
// ledger, then sweeps the stored artifacts. Object cleanup is best
// effort: the rows are the source of truth and are already gone.
func (c *Coordinator) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	keys, err := c.ledger.DeleteDocument(ctx, documentID)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete stored artifact", "key", key, "error", err)
		}
	}

	slog.Info("document deleted", "document_id", documentID, "artifacts_removed", len(keys))
	return nil
}
