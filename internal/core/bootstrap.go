package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"lyra-care/internal/llm"
	"lyra-care/internal/logger"
)

// DefaultIndexName is used for new knowledge indexes when none is configured.
const DefaultIndexName = "MyKnowledgeBase"

// Bootstrapper provisions the platform resources a chat session needs.
type Bootstrapper struct {
	Platform  llm.Platform
	IndexName string
	log       *logrus.Entry
}

// NewBootstrapper constructs a Bootstrapper.  An empty indexName falls back
// to DefaultIndexName.
func NewBootstrapper(platform llm.Platform, indexName string) *Bootstrapper {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Bootstrapper{Platform: platform, IndexName: indexName, log: logger.For("bootstrap")}
}

// Provision returns the index and conversation handles for the document at
// path.  Handles passed in non-empty are reused.  The document is uploaded
// and attached to the index on every call, including when the index is
// reused, so calling twice adds the file twice.  Nothing is rolled back when
// a later step fails.
func (b *Bootstrapper) Provision(ctx context.Context, path, indexID, conversationID string) (string, string, error) {
	if indexID == "" {
		id, err := b.Platform.CreateIndex(ctx, b.IndexName)
		if err != nil {
			return "", "", fmt.Errorf("create index: %w", err)
		}
		indexID = id
	}

	fileID, err := b.Platform.UploadFile(ctx, path)
	if err != nil {
		return indexID, "", fmt.Errorf("upload %s: %w", path, err)
	}
	if err := b.Platform.AttachFile(ctx, indexID, fileID); err != nil {
		return indexID, "", fmt.Errorf("attach file %s to index %s: %w", fileID, indexID, err)
	}

	if conversationID == "" {
		id, err := b.Platform.CreateConversation(ctx)
		if err != nil {
			return indexID, "", fmt.Errorf("create conversation: %w", err)
		}
		conversationID = id
	}

	b.log.WithFields(logrus.Fields{
		"index_id":        indexID,
		"conversation_id": conversationID,
		"file_id":         fileID,
	}).Info("session provisioned")
	return indexID, conversationID, nil
}
