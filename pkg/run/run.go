package run

import (
	"github.com/google/uuid"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/events"
)

type Status string

const (
	StatusCreated  Status = "created"
	StatusStarted  Status = "started"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusErrored  Status = "errored"
)

// Input is the body of a run request.
type Input struct {
	ThreadID string                    `json:"threadId,omitempty"`
	RunID    string                    `json:"runId,omitempty"`
	Messages conversation.Conversation `json:"messages"`
}

// Run is the state of one request. It lives until the response stream is
// closed and is never persisted.
type Run struct {
	RunID    string
	ThreadID string
	Status   Status
	// Err is the error that ended the run, if any.
	Err error
	// Tools are the names of the tools that ran successfully.
	Tools []string
}

func newRun(in *Input) *Run {
	ret := &Run{Status: StatusCreated}
	if in != nil {
		ret.RunID = in.RunID
		ret.ThreadID = in.ThreadID
	}
	if ret.RunID == "" {
		ret.RunID = uuid.NewString()
	}
	if ret.ThreadID == "" {
		ret.ThreadID = uuid.NewString()
	}
	return ret
}

func (r *Run) Metadata() events.EventMetadata {
	return events.EventMetadata{RunID: r.RunID, ThreadID: r.ThreadID}
}
