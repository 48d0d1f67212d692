// Package runs tracks generation batches by a stable run id so their
// status stays queryable while (and after) the worker executes them.
package runs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/audifyhq/audify/internal/models"
	"github.com/audifyhq/audify/internal/pipeline"
)

// Record is the queryable state of one generation batch.
type Record struct {
	ID         string                `json:"id"`
	DocumentID uuid.UUID             `json:"document_id"`
	PageIDs    []uuid.UUID           `json:"page_ids"`
	Voice      string                `json:"voice"`
	Status     string                `json:"status"` // pending | running | succeeded | failed
	Results    []pipeline.PageResult `json:"results,omitempty"`
	Error      string                `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: 24 * time.Hour}
}

// Create registers a new pending run and returns its id.
func (s *Store) Create(ctx context.Context, documentID uuid.UUID, pageIDs []uuid.UUID, voice string) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		PageIDs:    pageIDs,
		Voice:      voice,
		Status:     models.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	val, err := s.client.Get(ctx, key(id)).Result()
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkRunning flips a run to running before the batch starts.
func (s *Store) MarkRunning(ctx context.Context, rec *Record) error {
	rec.Status = models.JobStatusRunning
	rec.UpdatedAt = time.Now().UTC()
	return s.put(ctx, rec)
}

// Finish records the terminal state. The per-page entries carry the
// partial outcome; the run as a whole fails only when the batch never
// ran or not a single page succeeded.
func (s *Store) Finish(ctx context.Context, rec *Record, results []pipeline.PageResult, runErr error) error {
	rec.Results = results
	rec.UpdatedAt = time.Now().UTC()
	rec.Status, rec.Error = terminal(results, runErr)
	return s.put(ctx, rec)
}

func terminal(results []pipeline.PageResult, runErr error) (status, detail string) {
	if runErr != nil {
		return models.JobStatusFailed, runErr.Error()
	}
	for _, r := range results {
		if r.Status == models.JobStatusSucceeded {
			return models.JobStatusSucceeded, ""
		}
	}
	return models.JobStatusFailed, "no page succeeded"
}

func (s *Store) put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(rec.ID), data, s.ttl).Err()
}

func key(id string) string {
	return "run:" + id
}

// IsNotFound reports whether err means the run id is unknown (or the
// record expired).
func IsNotFound(err error) bool {
	return err == redis.Nil
}
