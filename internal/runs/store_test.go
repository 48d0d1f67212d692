package runs

import (
	"errors"
	"testing"

	"github.com/audifyhq/audify/internal/models"
	"github.com/audifyhq/audify/internal/pipeline"
)

func TestTerminalStatus(t *testing.T) {
	tests := []struct {
		name       string
		results    []pipeline.PageResult
		runErr     error
		wantStatus string
		wantDetail bool
	}{
		{
			name:       "batch never ran",
			runErr:     errors.New("no pages requested"),
			wantStatus: models.JobStatusFailed,
			wantDetail: true,
		},
		{
			name: "every page failed",
			results: []pipeline.PageResult{
				{Status: models.JobStatusFailed, Error: "synthesis_failed: quota"},
				{Status: models.JobStatusFailed, Error: "store_failed: 503"},
			},
			wantStatus: models.JobStatusFailed,
			wantDetail: true,
		},
		{
			name: "partial success",
			results: []pipeline.PageResult{
				{Status: models.JobStatusSucceeded, Locator: "https://store/audio.mp3"},
				{Status: models.JobStatusFailed, Error: "synthesis_failed: quota"},
			},
			wantStatus: models.JobStatusSucceeded,
		},
		{
			name: "every page succeeded",
			results: []pipeline.PageResult{
				{Status: models.JobStatusSucceeded, Locator: "https://store/a.mp3"},
				{Status: models.JobStatusSucceeded, Locator: "https://store/b.mp3"},
			},
			wantStatus: models.JobStatusSucceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := terminal(tt.results, tt.runErr)
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if tt.wantDetail && detail == "" {
				t.Error("failed run must carry error detail")
			}
			if !tt.wantDetail && detail != "" {
				t.Errorf("unexpected error detail %q", detail)
			}
		})
	}
}
