package queue

const TypeAudioGenerate = "audio:generate"

type AudioGeneratePayload struct {
	RunID      string   `json:"run_id"`
	DocumentID string   `json:"document_id"`
	PageIDs    []string `json:"page_ids"`
	Voice      string   `json:"voice"`
}
