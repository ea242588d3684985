package llm

import (
	"context"
	"fmt"
)

// GroundedRequest is one patient turn sent to the platform together with the
// fixed system instructions.  The platform answers with access to a file
// search tool scoped to IndexID.
type GroundedRequest struct {
	Instructions   string
	Input          string
	ConversationID string
	IndexID        string
	// Store asks the platform to keep the turn in the conversation so later
	// turns see it without resending history.
	Store bool
	// IncludeRetrieval asks for the file search calls made while answering.
	IncludeRetrieval bool
}

// RetrievalCall records one file search the model performed.
type RetrievalCall struct {
	ID     string `json:"id"`
	StepID string `json:"step_id"`
}

// GroundedResponse is the model output for a GroundedRequest.
type GroundedResponse struct {
	Text           string
	RunID          string
	RetrievalCalls []RetrievalCall
}

// Platform is the subset of the hosted LLM API the relay depends on.
// Identifiers it returns are opaque handles owned by the platform.
type Platform interface {
	CreateIndex(ctx context.Context, name string) (string, error)
	UploadFile(ctx context.Context, path string) (string, error)
	AttachFile(ctx context.Context, indexID, fileID string) error
	CreateConversation(ctx context.Context) (string, error)
	Respond(ctx context.Context, req GroundedRequest) (*GroundedResponse, error)
}

// RunError is returned when a run ends in any state other than completed.
type RunError struct {
	RunID   string
	Status  string
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("run %s %s: %s (%s)", e.RunID, e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("run %s %s", e.RunID, e.Status)
}
