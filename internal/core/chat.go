package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lyra-care/internal/llm"
	"lyra-care/internal/logger"
)

// ChatService relays patient turns to the platform.  Every turn carries the
// same system instructions, the conversation handle and the knowledge index
// the model should search.
type ChatService struct {
	Platform     llm.Platform
	Instructions string
	// Timeout bounds one Reply when positive.  Zero waits for the platform
	// for as long as the caller's context allows.
	Timeout time.Duration
	log     *logrus.Entry
}

// NewChatService constructs a ChatService whose instructions are the Lyra
// script filled in for the given practice.
func NewChatService(platform llm.Platform, practice Practice, timeout time.Duration) *ChatService {
	return &ChatService{
		Platform:     platform,
		Instructions: Script(practice),
		Timeout:      timeout,
		log:          logger.For("chat"),
	}
}

// Reply returns the model's answer to message.  Failures of any kind come
// back as text starting with FailureMarker, which the page shows like a
// normal reply; Reply itself never fails or panics.
func (s *ChatService) Reply(ctx context.Context, message, conversationID, indexID string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("reply panicked")
			reply = failureText(fmt.Errorf("%v", r))
		}
	}()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.Platform.Respond(ctx, llm.GroundedRequest{
		Instructions:     s.Instructions,
		Input:            message,
		ConversationID:   conversationID,
		IndexID:          indexID,
		Store:            true,
		IncludeRetrieval: true,
	})
	entry := s.log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"elapsed_ms":      time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("grounded completion failed")
		return failureText(err)
	}
	if resp == nil {
		return failureText(fmt.Errorf("empty response"))
	}
	entry.WithField("retrievals", len(resp.RetrievalCalls)).Debug("reply received")
	return resp.Text
}

func failureText(err error) string {
	return FailureMarker + " Error: " + err.Error()
}
