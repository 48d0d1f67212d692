package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Pages []Page `json:"pages,omitempty" db:"-"`
}

type Page struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	PageNumber int       `json:"page_number" db:"page_number"`
	Content    string    `json:"content" db:"content"`

	AudioFiles []AudioFile `json:"audio_files,omitempty" db:"-"`
}

// AudioFile is one stored synthesis artifact for a page. A page may
// accumulate several rows across regenerations; the newest row is the
// active one for playback.
type AudioFile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PageID    uuid.UUID `json:"page_id" db:"page_id"`
	FileName  string    `json:"file_name" db:"file_name"`
	FilePath  string    `json:"file_path" db:"file_path"`
	Voice     string    `json:"voice" db:"voice"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)
