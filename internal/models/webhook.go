package models

import (
	"time"

	"github.com/google/uuid"
)

type Webhook struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	URL       string    `json:"url" db:"url"`
	Secret    string    `json:"secret,omitempty" db:"secret"`
	Events    []string  `json:"events" db:"events"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	EventDocumentCreated = "document.created"
	EventAudioGenerated  = "audio.generated"
)
