package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"lyra-care/internal/logger"
)

const (
	assistantName = "Lyra"
	// fileSearchTool is the file_search tool type; go-openai only declares
	// it for assistants, runs take the same wire value.
	fileSearchTool = openai.ToolType(openai.AssistantToolTypeFileSearch)
)

// ErrEphemeralTurn is returned for requests with Store unset: thread
// messages are always kept by the platform.
var ErrEphemeralTurn = errors.New("assistants threads always store turns")

// Options configures an OpenAIClient.
type Options struct {
	APIKey       string
	BaseURL      string // empty for api.openai.com
	Model        string
	AssistantID  string // created on first Respond when empty
	PollInterval time.Duration
}

// OpenAIClient implements Platform with vector stores (knowledge indexes),
// threads (conversations) and runs (grounded completions).
type OpenAIClient struct {
	client       *openai.Client
	model        string
	pollInterval time.Duration
	log          *logrus.Entry

	mu          sync.Mutex
	assistantID string
}

// NewOpenAIClient constructs an OpenAI-backed Platform.
func NewOpenAIClient(opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		model:        opts.Model,
		pollInterval: poll,
		assistantID:  opts.AssistantID,
		log:          logger.For("llm"),
	}
}

// CreateIndex creates a vector store and returns its ID.
func (c *OpenAIClient) CreateIndex(ctx context.Context, name string) (string, error) {
	vs, err := c.client.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", err
	}
	c.log.WithFields(logrus.Fields{"index_id": vs.ID, "name": name}).Info("vector store created")
	return vs.ID, nil
}

// UploadFile uploads the file at path for use by assistants.
func (c *OpenAIClient) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := c.client.CreateFile(ctx, openai.FileRequest{
		FilePath: path,
		Purpose:  string(openai.PurposeAssistants),
	})
	if err != nil {
		return "", err
	}
	c.log.WithFields(logrus.Fields{"file_id": f.ID, "path": path, "bytes": f.Bytes}).Info("file uploaded")
	return f.ID, nil
}

// AttachFile adds an uploaded file to a vector store.
func (c *OpenAIClient) AttachFile(ctx context.Context, indexID, fileID string) error {
	_, err := c.client.CreateVectorStoreFile(ctx, indexID, openai.VectorStoreFileRequest{FileID: fileID})
	if err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"index_id": indexID, "file_id": fileID}).Info("file attached")
	return nil
}

// CreateConversation creates an empty thread.
func (c *OpenAIClient) CreateConversation(ctx context.Context) (string, error) {
	th, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", err
	}
	c.log.WithField("conversation_id", th.ID).Info("thread created")
	return th.ID, nil
}

// Respond binds the index to the thread, stores the user turn, runs the
// assistant with the given instructions and waits for the run to finish.
func (c *OpenAIClient) Respond(ctx context.Context, req GroundedRequest) (*GroundedResponse, error) {
	if req.ConversationID == "" || req.IndexID == "" {
		return nil, errors.New("conversation and index IDs are required")
	}
	if !req.Store {
		return nil, ErrEphemeralTurn
	}
	assistantID, err := c.ensureAssistant(ctx)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	_, err = c.client.ModifyThread(ctx, req.ConversationID, openai.ModifyThreadRequest{
		Metadata: map[string]any{"index_id": req.IndexID},
		ToolResources: &openai.ToolResources{
			FileSearch: &openai.FileSearchToolResources{VectorStoreIDs: []string{req.IndexID}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bind index: %w", err)
	}
	if _, err := c.client.CreateMessage(ctx, req.ConversationID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: req.Input,
	}); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}

	run, err := c.client.CreateRun(ctx, req.ConversationID, openai.RunRequest{
		AssistantID:  assistantID,
		Model:        c.model,
		Instructions: req.Instructions,
		Tools:        []openai.Tool{{Type: fileSearchTool}},
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run, err = c.waitForRun(ctx, req.ConversationID, run)
	if err != nil {
		return nil, err
	}

	text, err := c.runOutput(ctx, req.ConversationID, run.ID)
	if err != nil {
		return nil, err
	}
	resp := &GroundedResponse{Text: text, RunID: run.ID}
	if req.IncludeRetrieval {
		resp.RetrievalCalls = c.retrievalCalls(ctx, req.ConversationID, run.ID)
	}
	c.log.WithFields(logrus.Fields{
		"conversation_id": req.ConversationID,
		"run_id":          run.ID,
		"retrievals":      len(resp.RetrievalCalls),
	}).Info("run completed")
	return resp, nil
}

func (c *OpenAIClient) ensureAssistant(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistantID != "" {
		return c.assistantID, nil
	}
	name := assistantName
	a, err := c.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model: c.model,
		Name:  &name,
		Tools: []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
	})
	if err != nil {
		return "", err
	}
	c.log.WithField("assistant_id", a.ID).Info("assistant created")
	c.assistantID = a.ID
	return a.ID, nil
}

// waitForRun polls until the run reaches a terminal status.
func (c *OpenAIClient) waitForRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		default:
			rerr := &RunError{RunID: run.ID, Status: string(run.Status)}
			if run.LastError != nil {
				rerr.Code = string(run.LastError.Code)
				rerr.Message = run.LastError.Message
			}
			return run, rerr
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
		next, err := c.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("retrieve run: %w", err)
		}
		run = next
	}
}

// runOutput joins the text parts of the assistant messages the run produced,
// oldest first.
func (c *OpenAIClient) runOutput(ctx context.Context, threadID, runID string) (string, error) {
	order := "asc"
	list, err := c.client.ListMessage(ctx, threadID, nil, &order, nil, nil, &runID)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	var parts []string
	for _, m := range list.Messages {
		if m.Role != string(openai.ThreadMessageRoleAssistant) {
			continue
		}
		for _, content := range m.Content {
			if content.Text != nil {
				parts = append(parts, content.Text.Value)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// retrievalCalls lists the file_search tool calls of a run.  Failures only
// lose the trace, so they are logged rather than returned.
func (c *OpenAIClient) retrievalCalls(ctx context.Context, threadID, runID string) []RetrievalCall {
	steps, err := c.client.ListRunSteps(ctx, threadID, runID, openai.Pagination{})
	if err != nil {
		c.log.WithError(err).WithField("run_id", runID).Warn("list run steps failed")
		return nil
	}
	var calls []RetrievalCall
	for _, step := range steps.RunSteps {
		if step.StepDetails.Type != openai.RunStepTypeToolCalls {
			continue
		}
		for _, tc := range step.StepDetails.ToolCalls {
			if tc.Type == fileSearchTool {
				calls = append(calls, RetrievalCall{ID: tc.ID, StepID: step.ID})
			}
		}
	}
	return calls
}
