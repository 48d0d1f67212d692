package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/audifyhq/audify/internal/errs"
	"github.com/audifyhq/audify/internal/extract"
	"github.com/audifyhq/audify/internal/models"
)

type fakeExtractor struct {
	pages []extract.Page
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) ([]extract.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func newTestCoordinator(ex extract.Extractor, sy *fakeSynth, st *fakeStore, lg Ledger, concurrency int) *Coordinator {
	c := NewCoordinator(ex, sy, st, lg, Config{
		Concurrency: concurrency,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	})
	c.runner.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestCreateDocumentPersistsAllPages(t *testing.T) {
	ex := &fakeExtractor{pages: []extract.Page{
		{Number: 1, Text: "first"},
		{Number: 2, Text: "second"},
		{Number: 3, Text: "third"},
	}}
	lg := newFakeLedger()
	c := newTestCoordinator(ex, &fakeSynth{}, &fakeStore{}, lg, 4)

	doc, err := c.CreateDocument(context.Background(), "Report", uuid.New(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(doc.Pages))
	}
	for i, pg := range doc.Pages {
		if pg.PageNumber != i+1 {
			t.Errorf("page %d numbered %d, want contiguous from 1", i, pg.PageNumber)
		}
	}
}

func TestCreateDocumentFailures(t *testing.T) {
	tests := []struct {
		name     string
		docName  string
		ex       *fakeExtractor
		wantKind errs.Kind
	}{
		{
			name:     "blank name",
			docName:  "   ",
			ex:       &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "x"}}},
			wantKind: errs.KindInvalidInput,
		},
		{
			name:     "extraction failure",
			docName:  "Report",
			ex:       &fakeExtractor{err: errs.Errorf(errs.KindExtraction, "open PDF: bad header")},
			wantKind: errs.KindExtraction,
		},
		{
			name:     "zero pages extracted",
			docName:  "Report",
			ex:       &fakeExtractor{},
			wantKind: errs.KindPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg := newFakeLedger()
			c := newTestCoordinator(tt.ex, &fakeSynth{}, &fakeStore{}, lg, 4)

			_, err := c.CreateDocument(context.Background(), tt.docName, uuid.New(), []byte("%PDF"))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errs.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %q, want %q", got, tt.wantKind)
			}
			if len(lg.docs) != 0 {
				t.Error("no document should be persisted on failure")
			}
		})
	}
}

func seedDocument(t *testing.T, lg *fakeLedger, texts ...string) *models.Document {
	t.Helper()
	pages := make([]extract.Page, len(texts))
	for i, txt := range texts {
		pages[i] = extract.Page{Number: i + 1, Text: txt}
	}
	doc, err := lg.CreateDocument(context.Background(), "Report", uuid.New(), pages)
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func TestGenerateAudioPartialFailure(t *testing.T) {
	lg := newFakeLedger()
	doc := seedDocument(t, lg, "page one", "FAIL", "page three")

	sy := &fakeSynth{failText: "FAIL"}
	st := &fakeStore{}
	c := newTestCoordinator(&fakeExtractor{}, sy, st, lg, 4)

	pageIDs := []uuid.UUID{doc.Pages[0].ID, doc.Pages[1].ID}
	results, err := c.GenerateAudio(context.Background(), doc.ID, pageIDs, "voiceX")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want one per requested page", len(results))
	}
	if results[0].Status != models.JobStatusSucceeded || results[0].Locator == "" {
		t.Errorf("page 1: status=%q locator=%q, want succeeded with locator", results[0].Status, results[0].Locator)
	}
	if results[1].Status != models.JobStatusFailed || results[1].Error == "" {
		t.Errorf("page 2: status=%q, want failed with error detail", results[1].Status)
	}
	if results[0].PageID != doc.Pages[0].ID || results[1].PageID != doc.Pages[1].ID {
		t.Error("results must be keyed by page id in request order")
	}
	// Page three was never requested and must be untouched.
	if lg.audioCount() != 1 {
		t.Errorf("ledger has %d audio rows, want 1 (only the succeeded page)", lg.audioCount())
	}
}

func TestGenerateAudioRejectsForeignPages(t *testing.T) {
	lg := newFakeLedger()
	doc := seedDocument(t, lg, "page one")
	other := seedDocument(t, lg, "other doc page")

	sy := &fakeSynth{}
	c := newTestCoordinator(&fakeExtractor{}, sy, &fakeStore{}, lg, 4)

	unknown := uuid.New()
	results, err := c.GenerateAudio(context.Background(), doc.ID, []uuid.UUID{doc.Pages[0].ID, other.Pages[0].ID, unknown}, "voiceX")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Status != models.JobStatusSucceeded {
		t.Errorf("owned page: status=%q, want succeeded", results[0].Status)
	}
	for i := 1; i < 3; i++ {
		if results[i].Status != models.JobStatusFailed {
			t.Errorf("result %d: status=%q, want failed for page outside document", i, results[i].Status)
		}
		if !strings.Contains(results[i].Error, "does not belong") {
			t.Errorf("result %d: error %q should explain membership failure", i, results[i].Error)
		}
	}
	if sy.callCount() != 1 {
		t.Errorf("synthesizer called %d times, want 1 (foreign pages never start)", sy.callCount())
	}
}

func TestGenerateAudioEmptyRequest(t *testing.T) {
	lg := newFakeLedger()
	c := newTestCoordinator(&fakeExtractor{}, &fakeSynth{}, &fakeStore{}, lg, 4)

	_, err := c.GenerateAudio(context.Background(), uuid.New(), nil, "voiceX")
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("kind = %q, want invalid_input", errs.KindOf(err))
	}
}

func TestGenerateAudioBoundsConcurrency(t *testing.T) {
	lg := newFakeLedger()
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = "page text"
	}
	doc := seedDocument(t, lg, texts...)

	sy := &fakeSynth{delay: 5 * time.Millisecond}
	c := newTestCoordinator(&fakeExtractor{}, sy, &fakeStore{}, lg, 3)

	ids := make([]uuid.UUID, len(doc.Pages))
	for i, pg := range doc.Pages {
		ids[i] = pg.ID
	}
	results, err := c.GenerateAudio(context.Background(), doc.ID, ids, "voiceX")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	for i, r := range results {
		if r.Status != models.JobStatusSucceeded {
			t.Fatalf("page %d: status=%q (error: %s)", i, r.Status, r.Error)
		}
	}

	sy.mu.Lock()
	maxUse := sy.maxUse
	sy.mu.Unlock()
	if maxUse > 3 {
		t.Errorf("observed %d concurrent synthesis calls, pool bound is 3", maxUse)
	}
	if maxUse < 2 {
		t.Logf("note: observed max concurrency %d; pool may have been underfilled on this run", maxUse)
	}
}

func TestGenerateAudioCancellation(t *testing.T) {
	lg := newFakeLedger()
	doc := seedDocument(t, lg, "one", "two", "three")

	ctx, cancel := context.WithCancel(context.Background())
	sy := &fakeSynth{}
	sy.onCall = func(call int) {
		if call == 1 {
			cancel()
		}
	}

	c := newTestCoordinator(&fakeExtractor{}, sy, &fakeStore{}, lg, 1)

	ids := []uuid.UUID{doc.Pages[0].ID, doc.Pages[1].ID, doc.Pages[2].ID}
	results, err := c.GenerateAudio(ctx, doc.ID, ids, "voiceX")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}

	// The first page was already in flight and completes; queued pages
	// must never start.
	if results[0].Status != models.JobStatusSucceeded {
		t.Errorf("in-flight page: status=%q, want succeeded (not rolled back)", results[0].Status)
	}
	for i := 1; i < 3; i++ {
		if results[i].Status != models.JobStatusFailed {
			t.Errorf("queued page %d: status=%q, want failed after cancel", i, results[i].Status)
		}
	}
	if sy.callCount() != 1 {
		t.Errorf("synthesizer called %d times, want 1 (cancellation stops queued pages)", sy.callCount())
	}
	if lg.audioCount() != 1 {
		t.Errorf("ledger has %d audio rows, want 1", lg.audioCount())
	}
}

func TestDeleteDocumentSweepsArtifacts(t *testing.T) {
	lg := newFakeLedger()
	doc := seedDocument(t, lg, "one", "two", "three")

	sy := &fakeSynth{}
	st := &fakeStore{}
	c := newTestCoordinator(&fakeExtractor{}, sy, st, lg, 4)

	_, err := c.GenerateAudio(context.Background(), doc.ID, []uuid.UUID{doc.Pages[0].ID, doc.Pages[2].ID}, "voiceX")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if lg.audioCount() != 2 {
		t.Fatalf("ledger has %d audio rows, want 2", lg.audioCount())
	}

	if err := c.DeleteDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if len(lg.docs) != 0 || len(lg.pages) != 0 || lg.audioCount() != 0 {
		t.Error("delete must remove audio files, pages, and the document")
	}
	if len(st.deletes) != 2 {
		t.Errorf("store received %d deletes, want 2 (one per artifact)", len(st.deletes))
	}
}

func TestDeleteDocumentFailureStopsSweep(t *testing.T) {
	lg := newFakeLedger()
	lg.deleteErr = errs.Errorf(errs.KindDelete, "expected 2 audio files removed, got 1")

	st := &fakeStore{}
	c := newTestCoordinator(&fakeExtractor{}, &fakeSynth{}, st, lg, 4)

	err := c.DeleteDocument(context.Background(), uuid.New())
	if errs.KindOf(err) != errs.KindDelete {
		t.Fatalf("kind = %q, want delete_failed", errs.KindOf(err))
	}
	if len(st.deletes) != 0 {
		t.Error("no artifacts may be swept when the ledger delete fails")
	}
}
