package synth

import (
	"context"
	"strings"

	"github.com/audifyhq/audify/internal/errs"
)

// Request holds the parameters for one page's speech generation.
type Request struct {
	Text  string
	Voice string
}

// Result holds the fully buffered audio and its content type.
type Result struct {
	Audio       []byte
	ContentType string // "audio/mpeg" (OpenAI) or "audio/wav" (Piper)
}

// Synthesizer is the interface for text-to-speech backends. It must be
// safe for concurrent use across pages.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// validateInput rejects text that would synthesize to silence. This is
// a caller error, never retried.
func validateInput(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return errs.Errorf(errs.KindInvalidInput, "empty text")
	}
	return nil
}

// Ext returns the file extension for a synthesis content type.
func Ext(contentType string) string {
	switch contentType {
	case "audio/wav":
		return "wav"
	default:
		return "mp3"
	}
}
