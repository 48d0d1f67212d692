package queue

import (
	"github.com/hibiken/asynq"
)

// NewMux routes task types to their handlers. Audio generation is the
// only task family today; new types register here.
func NewMux(audio asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeAudioGenerate, audio)
	return mux
}
