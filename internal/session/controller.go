package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lyra-care/internal/core"
	"lyra-care/internal/logger"
	"lyra-care/pkg"
)

var (
	// ErrUnsupportedUpload is returned for files the upload control does not accept.
	ErrUnsupportedUpload = errors.New("upload must be a .json, .csv or .xlsx file")
	// ErrNoDocument is returned when generating a session before an upload.
	ErrNoDocument = errors.New("upload a patient file first")
	// ErrNotProvisioned is returned when chatting before the session is generated.
	ErrNotProvisioned = errors.New("generate the session first")
	// ErrEmptyMessage is returned for blank chat input.
	ErrEmptyMessage = errors.New("empty message")
)

// AcceptedExtensions are the file types offered by the upload control.
var AcceptedExtensions = []string{".json", ".csv", ".xlsx"}

// Ingestor saves and normalizes an uploaded file.
type Ingestor interface {
	Ingest(name string, r io.Reader) (string, error)
}

// Provisioner creates or reuses the platform handles for a document.
type Provisioner interface {
	Provision(ctx context.Context, path, indexID, conversationID string) (string, string, error)
}

// Replier answers one chat turn.  It never fails; failures come back as text.
type Replier interface {
	Reply(ctx context.Context, message, conversationID, indexID string) string
}

// Controller sequences ingestion, provisioning and the chat relay for a
// session.  Each stage runs at most once per State; Reset is the only way
// back.
type Controller struct {
	Ingestor    Ingestor
	Provisioner Provisioner
	Chat        Replier
	now         func() time.Time
	log         *logrus.Entry
}

// NewController constructs a Controller.
func NewController(in Ingestor, prov Provisioner, chat Replier) *Controller {
	return &Controller{
		Ingestor:    in,
		Provisioner: prov,
		Chat:        chat,
		now:         time.Now,
		log:         logger.For("session"),
	}
}

// Upload ingests the file unless the session already has a document, in
// which case the upload is ignored.
func (c *Controller) Upload(ctx context.Context, st *State, filename string, r io.Reader) error {
	if !accepted(filename) {
		return fmt.Errorf("%w: %q", ErrUnsupportedUpload, filename)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.FileReady() {
		c.log.WithField("session_id", st.ID).Debug("document already ingested, upload ignored")
		return nil
	}
	path, err := c.Ingestor.Ingest(filename, r)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", filename, err)
	}
	st.NormalizedPath = path
	c.log.WithFields(logrus.Fields{"session_id": st.ID, "path": path}).Info("document ready")
	return nil
}

// GenerateSession provisions the index and conversation once.
func (c *Controller) GenerateSession(ctx context.Context, st *State) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.FileReady() {
		return ErrNoDocument
	}
	if st.HandlesReady() {
		return nil
	}
	indexID, convID, err := c.Provisioner.Provision(ctx, st.NormalizedPath, st.IndexID, st.ConversationID)
	if err != nil {
		// Keep an index created before the failure so a retry reuses it.
		if indexID != "" {
			st.IndexID = indexID
		}
		return err
	}
	st.IndexID = indexID
	st.ConversationID = convID
	c.log.WithFields(logrus.Fields{
		"session_id":      st.ID,
		"index_id":        indexID,
		"conversation_id": convID,
	}).Info("session generated")
	return nil
}

// Open seeds the greeting on first entry to the chat stage.  It reports
// whether the chat stage is available.
func (c *Controller) Open(st *State) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return c.open(st)
}

func (c *Controller) open(st *State) bool {
	if !st.HandlesReady() {
		return false
	}
	if !st.transcriptInit {
		st.Transcript = nil
		st.appendTurn(pkg.RoleAssistant, core.Greeting, c.now())
		st.transcriptInit = true
	}
	return true
}

// Send appends the user's text, relays it and appends the reply.  The call
// blocks until the platform answers.
func (c *Controller) Send(ctx context.Context, st *State, text string) (pkg.SendResponse, error) {
	if strings.TrimSpace(text) == "" {
		return pkg.SendResponse{}, ErrEmptyMessage
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if !c.open(st) {
		return pkg.SendResponse{}, ErrNotProvisioned
	}
	user := st.appendTurn(pkg.RoleUser, text, c.now())
	answer := c.Chat.Reply(ctx, text, st.ConversationID, st.IndexID)
	reply := st.appendTurn(pkg.RoleAssistant, answer, c.now())
	c.log.WithFields(logrus.Fields{
		"session_id": st.ID,
		"turns":      len(st.Transcript),
		"failed":     strings.HasPrefix(answer, core.FailureMarker),
	}).Info("turn relayed")
	return pkg.SendResponse{User: user, Reply: reply}, nil
}

// Reset clears every stage so the session starts over.  Platform resources
// created earlier are left in place.
func (c *Controller) Reset(st *State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.NormalizedPath = ""
	st.IndexID = ""
	st.ConversationID = ""
	st.Transcript = nil
	st.transcriptInit = false
	c.log.WithField("session_id", st.ID).Info("session reset")
}

func accepted(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}
