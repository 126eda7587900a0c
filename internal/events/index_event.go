package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const IndexStatus = "events:index:status"

// IndexStatusEvent mirrors the knowledge index lifecycle to the UI.
type IndexStatusEvent struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	FilesTotal int       `json:"filesTotal"`
	FilesDone  int       `json:"filesDone"`
	Commit     string    `json:"commit,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func EmitIndexStatus(ctx context.Context, state string, filesTotal, filesDone int, commit, errMsg string) {
	EmitPayload(ctx, IndexStatus, IndexStatusEvent{
		ID:         uuid.NewString(),
		State:      state,
		FilesTotal: filesTotal,
		FilesDone:  filesDone,
		Commit:     commit,
		Error:      errMsg,
		Timestamp:  time.Now(),
	})
}
