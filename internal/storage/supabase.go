package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/audifyhq/audify/internal/errs"
)

// ArtifactStore durably stores audio artifacts under unique keys and
// returns externally resolvable locators.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// AudioKey builds the object key for one page's artifact. The
// millisecond timestamp keeps regenerated artifacts from colliding.
func AudioKey(documentID uuid.UUID, pageNumber int, ext string) string {
	return fmt.Sprintf("audio/%s-%d-%d.%s", documentID, pageNumber, time.Now().UnixMilli(), ext)
}

// SupabaseStore talks to the Supabase storage HTTP API.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStore(supabaseURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    supabaseURL + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Put uploads a complete object and returns its public URL. Nothing is
// considered stored unless the API confirms the whole write.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return "", errs.Errorf(errs.KindStore, "create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", errs.Errorf(errs.KindStore, "upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", errs.Errorf(errs.KindStore, "upload failed (%d): %s", resp.StatusCode, string(body))
	}

	return s.publicURL(key), nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return errs.Errorf(errs.KindStore, "create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errs.Errorf(errs.KindStore, "delete object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errs.Errorf(errs.KindStore, "delete failed (%d)", resp.StatusCode)
	}

	return nil
}

func (s *SupabaseStore) publicURL(key string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, key)
}
