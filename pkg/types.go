package pkg

import "time"

// MessageRole describes who authored a transcript turn.  The relay only ever
// produces two roles: the patient typing in the page and the Lyra persona.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in the on-page transcript.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// SessionView is the JSON representation of a browser session returned by
// the /api/session endpoint.
type SessionView struct {
	SessionID       string    `json:"session_id"`
	FileReady       bool      `json:"file_ready"`
	HandlesReady    bool      `json:"handles_ready"`
	TranscriptReady bool      `json:"transcript_ready"`
	DocumentPath    string    `json:"document_path,omitempty"`
	IndexID         string    `json:"index_id,omitempty"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	Transcript      []Message `json:"transcript"`
}

// SendResponse contains the two turns appended by a chat send.
type SendResponse struct {
	User  Message `json:"user"`
	Reply Message `json:"reply"`
}
