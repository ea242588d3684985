package session

import (
	"sync"
	"time"

	"lyra-care/pkg"
)

// State is everything one browser session knows.  The stages gate each
// other in order: a normalized document, then the platform handles, then the
// transcript.  Controller methods hold mu for their whole duration, so a
// session handles one operator action at a time.
type State struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	NormalizedPath string
	IndexID        string
	ConversationID string
	Transcript     []pkg.Message

	transcriptInit bool
}

// NewState returns an empty session.
func NewState(id string) *State {
	return &State{ID: id, CreatedAt: time.Now()}
}

// FileReady reports whether the uploaded document has been normalized.
func (s *State) FileReady() bool { return s.NormalizedPath != "" }

// HandlesReady reports whether the index and conversation exist.
func (s *State) HandlesReady() bool { return s.IndexID != "" && s.ConversationID != "" }

// TranscriptReady reports whether the greeting has been seeded.
func (s *State) TranscriptReady() bool { return s.transcriptInit }

// View returns a copy of the state safe to render or encode.
func (s *State) View() pkg.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]pkg.Message, len(s.Transcript))
	copy(transcript, s.Transcript)
	return pkg.SessionView{
		SessionID:       s.ID,
		FileReady:       s.FileReady(),
		HandlesReady:    s.HandlesReady(),
		TranscriptReady: s.TranscriptReady(),
		DocumentPath:    s.NormalizedPath,
		IndexID:         s.IndexID,
		ConversationID:  s.ConversationID,
		Transcript:      transcript,
	}
}

func (s *State) appendTurn(role pkg.MessageRole, content string, at time.Time) pkg.Message {
	m := pkg.Message{Role: role, Content: content, CreatedAt: at}
	s.Transcript = append(s.Transcript, m)
	return m
}
