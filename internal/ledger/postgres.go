package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/audifyhq/audify/internal/errs"
	"github.com/audifyhq/audify/internal/extract"
	"github.com/audifyhq/audify/internal/models"
)

// Postgres is the system of record for documents, pages, and audio
// files. Every other component reads and writes through it, never
// around it.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// CreateDocument persists a document and its full page set in one
// transaction. Either all pages are recorded or none are.
func (p *Postgres) CreateDocument(ctx context.Context, name string, ownerID uuid.UUID, pages []extract.Page) (*models.Document, error) {
	if len(pages) == 0 {
		return nil, errs.Errorf(errs.KindPersistence, "document %q has no pages", name)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var doc models.Document
	err = tx.QueryRow(ctx,
		`INSERT INTO documents (name, created_by)
		 VALUES ($1, $2)
		 RETURNING id, name, created_by, created_at`,
		name, ownerID,
	).Scan(&doc.ID, &doc.Name, &doc.CreatedBy, &doc.CreatedAt)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "insert document: %w", err)
	}

	batch := &pgx.Batch{}
	for _, pg := range pages {
		batch.Queue(
			`INSERT INTO pages (document_id, page_number, content)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			doc.ID, pg.Number, pg.Text,
		)
	}

	results := tx.SendBatch(ctx, batch)
	doc.Pages = make([]models.Page, len(pages))
	for i, pg := range pages {
		var pageID uuid.UUID
		if err := results.QueryRow().Scan(&pageID); err != nil {
			results.Close()
			return nil, errs.Errorf(errs.KindPersistence, "insert page %d: %w", pg.Number, err)
		}
		doc.Pages[i] = models.Page{
			ID:         pageID,
			DocumentID: doc.ID,
			PageNumber: pg.Number,
			Content:    pg.Text,
		}
	}
	if err := results.Close(); err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "commit: %w", err)
	}

	return &doc, nil
}

// PagesByID fetches the requested pages, restricted to the given
// document. Missing or foreign page ids are simply absent from the
// result; the caller decides how to report them.
func (p *Postgres) PagesByID(ctx context.Context, documentID uuid.UUID, pageIDs []uuid.UUID) ([]models.Page, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, document_id, page_number, content
		 FROM pages WHERE document_id = $1 AND id = ANY($2)`,
		documentID, pageIDs,
	)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "query pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var pg models.Page
		if err := rows.Scan(&pg.ID, &pg.DocumentID, &pg.PageNumber, &pg.Content); err != nil {
			return nil, errs.Errorf(errs.KindPersistence, "scan page: %w", err)
		}
		pages = append(pages, pg)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "iterate pages: %w", err)
	}
	return pages, nil
}

// InsertAudioFile records one stored artifact for a page. Called only
// after the object store confirmed the upload.
func (p *Postgres) InsertAudioFile(ctx context.Context, af models.AudioFile) (*models.AudioFile, error) {
	err := p.db.QueryRow(ctx,
		`INSERT INTO audio_files (page_id, file_name, file_path, voice)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		af.PageID, af.FileName, af.FilePath, af.Voice,
	).Scan(&af.ID, &af.CreatedAt)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "insert audio file: %w", err)
	}
	return &af, nil
}

// ListDocuments returns the owner's documents newest first, each with
// its pages in reading order and every page's audio files newest
// first (the first row is the active one).
func (p *Postgres) ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, name, created_by, created_at
		 FROM documents WHERE created_by = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	docIndex := map[uuid.UUID]int{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, errs.Errorf(errs.KindPersistence, "scan document: %w", err)
		}
		docIndex[d.ID] = len(docs)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "iterate documents: %w", err)
	}
	if len(docs) == 0 {
		return docs, nil
	}

	pageRows, err := p.db.Query(ctx,
		`SELECT p.id, p.document_id, p.page_number, p.content
		 FROM pages p
		 JOIN documents d ON d.id = p.document_id
		 WHERE d.created_by = $1
		 ORDER BY p.document_id, p.page_number`,
		ownerID,
	)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "list pages: %w", err)
	}
	defer pageRows.Close()

	pageIndex := map[uuid.UUID]struct{ doc, page int }{}
	for pageRows.Next() {
		var pg models.Page
		if err := pageRows.Scan(&pg.ID, &pg.DocumentID, &pg.PageNumber, &pg.Content); err != nil {
			return nil, errs.Errorf(errs.KindPersistence, "scan page: %w", err)
		}
		di, ok := docIndex[pg.DocumentID]
		if !ok {
			continue
		}
		docs[di].Pages = append(docs[di].Pages, pg)
		pageIndex[pg.ID] = struct{ doc, page int }{di, len(docs[di].Pages) - 1}
	}
	if err := pageRows.Err(); err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "iterate pages: %w", err)
	}

	audioRows, err := p.db.Query(ctx,
		`SELECT a.id, a.page_id, a.file_name, a.file_path, a.voice, a.created_at
		 FROM audio_files a
		 JOIN pages p ON p.id = a.page_id
		 JOIN documents d ON d.id = p.document_id
		 WHERE d.created_by = $1
		 ORDER BY a.page_id, a.created_at DESC, a.id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "list audio files: %w", err)
	}
	defer audioRows.Close()

	for audioRows.Next() {
		var af models.AudioFile
		if err := audioRows.Scan(&af.ID, &af.PageID, &af.FileName, &af.FilePath, &af.Voice, &af.CreatedAt); err != nil {
			return nil, errs.Errorf(errs.KindPersistence, "scan audio file: %w", err)
		}
		idx, ok := pageIndex[af.PageID]
		if !ok {
			continue
		}
		pg := &docs[idx.doc].Pages[idx.page]
		pg.AudioFiles = append(pg.AudioFiles, af)
	}
	if err := audioRows.Err(); err != nil {
		return nil, errs.Errorf(errs.KindPersistence, "iterate audio files: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document and all descendants in dependency
// order: audio files, then pages, then the document row. A step that
// affects zero rows where rows were expected aborts the transaction so
// no orphaned descendants survive a partial delete. Returns the object
// keys of the removed audio files so callers can clean up storage.
func (p *Postgres) DeleteDocument(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, errs.Errorf(errs.KindDelete, "begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM documents WHERE id=$1)", documentID).Scan(&exists); err != nil {
		return nil, errs.Errorf(errs.KindDelete, "check document: %w", err)
	}
	if !exists {
		return nil, errs.Errorf(errs.KindDelete, "document %s not found", documentID)
	}

	var pageCount int
	if err := tx.QueryRow(ctx, "SELECT count(*) FROM pages WHERE document_id=$1", documentID).Scan(&pageCount); err != nil {
		return nil, errs.Errorf(errs.KindDelete, "count pages: %w", err)
	}

	keys, err := collectAudioKeys(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM audio_files WHERE page_id IN (SELECT id FROM pages WHERE document_id=$1)`,
		documentID,
	)
	if err != nil {
		return nil, errs.Errorf(errs.KindDelete, "delete audio files: %w", err)
	}
	if int(tag.RowsAffected()) != len(keys) {
		return nil, errs.Errorf(errs.KindDelete, "expected %d audio files removed, got %d", len(keys), tag.RowsAffected())
	}

	tag, err = tx.Exec(ctx, "DELETE FROM pages WHERE document_id=$1", documentID)
	if err != nil {
		return nil, errs.Errorf(errs.KindDelete, "delete pages: %w", err)
	}
	if int(tag.RowsAffected()) != pageCount {
		return nil, errs.Errorf(errs.KindDelete, "expected %d pages removed, got %d", pageCount, tag.RowsAffected())
	}

	tag, err = tx.Exec(ctx, "DELETE FROM documents WHERE id=$1", documentID)
	if err != nil {
		return nil, errs.Errorf(errs.KindDelete, "delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errs.Errorf(errs.KindDelete, "document row vanished mid-delete")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Errorf(errs.KindDelete, "commit: %w", err)
	}

	return keys, nil
}

func collectAudioKeys(ctx context.Context, tx pgx.Tx, documentID uuid.UUID) ([]string, error) {
	rows, err := tx.Query(ctx,
		`SELECT a.file_name
		 FROM audio_files a
		 JOIN pages p ON p.id = a.page_id
		 WHERE p.document_id = $1`,
		documentID,
	)
	if err != nil {
		return nil, errs.Errorf(errs.KindDelete, "collect audio keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Errorf(errs.KindDelete, "scan audio key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Errorf(errs.KindDelete, "iterate audio keys: %w", err)
	}
	return keys, nil
}

// DocumentOwner returns the owner id recorded for a document.
func (p *Postgres) DocumentOwner(ctx context.Context, documentID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := p.db.QueryRow(ctx, "SELECT created_by FROM documents WHERE id=$1", documentID).Scan(&owner)
	if err != nil {
		return uuid.Nil, errs.Errorf(errs.KindPersistence, "document owner: %w", err)
	}
	return owner, nil
}
