package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

const (
	defaultPageSize = 100
	defaultMaxPages = 50
)

// Client implements assistant.Upstream over the OpenAI Assistants API:
// threads are sessions, messages are turns and runs are runs.
type Client struct {
	client   *go_openai.Client
	pageSize int
	maxPages int
}

var (
	_ assistant.Upstream     = (*Client)(nil)
	_ assistant.RunCanceller = (*Client)(nil)
	_ assistant.FileStore    = (*Client)(nil)
)

type ClientOption func(*Client)

// WithPageSize sets how many messages are requested per transcript page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithMaxPages bounds how many transcript pages are read for one session.
func WithMaxPages(n int) ClientOption {
	return func(c *Client) {
		c.maxPages = n
	}
}

// MakeClient builds the go-openai client described by s.
func MakeClient(s *settings.ClientSettings) (*go_openai.Client, error) {
	if s == nil || strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.Wrap(assistant.ErrConfiguration, "no OpenAI API key")
	}

	config := go_openai.DefaultConfig(s.APIKey)
	if baseURL := strings.TrimSpace(helpers.ValueOr(s.BaseURL, "")); baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	config.OrgID = helpers.ValueOr(s.Organization, "")
	var doer go_openai.HTTPDoer = s.Client()
	if ua := helpers.ValueOr(s.UserAgent, ""); ua != "" {
		doer = &userAgentDoer{doer: doer, userAgent: ua}
	}
	config.HTTPClient = doer

	return go_openai.NewClientWithConfig(config), nil
}

type userAgentDoer struct {
	doer      go_openai.HTTPDoer
	userAgent string
}

func (d *userAgentDoer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", d.userAgent)
	return d.doer.Do(req)
}

func NewClient(s *settings.ClientSettings, options ...ClientOption) (*Client, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	ret := &Client{
		client:   client,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

// OpenAI exposes the underlying client for the non-assistant endpoints.
func (c *Client) OpenAI() *go_openai.Client {
	return c.client
}

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, go_openai.ThreadRequest{})
	if err != nil {
		return "", errors.WithMessage(Classify(err), "could not create thread")
	}
	return thread.ID, nil
}

func (c *Client) AppendUserTurn(ctx context.Context, sessionID string, turn assistant.UserTurn) error {
	req := go_openai.MessageRequest{
		Role:    string(go_openai.ThreadMessageRoleUser),
		Content: turn.Text,
	}
	for _, id := range turn.AttachmentIDs {
		req.Attachments = append(req.Attachments, go_openai.ThreadAttachment{
			FileID: id,
			Tools:  []go_openai.ThreadAttachmentTool{{Type: string(go_openai.AssistantToolTypeFileSearch)}},
		})
	}

	if _, err := c.client.CreateMessage(ctx, sessionID, req); err != nil {
		return errors.WithMessagef(Classify(err), "could not add message to thread %s", sessionID)
	}
	return nil
}

func (c *Client) StartRun(ctx context.Context, sessionID string, assistantID string) (assistant.Run, error) {
	run, err := c.client.CreateRun(ctx, sessionID, go_openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return assistant.Run{}, errors.WithMessagef(Classify(err), "could not start run on thread %s", sessionID)
	}
	return runFromOpenAI(run), nil
}

func (c *Client) GetRun(ctx context.Context, sessionID string, runID string) (assistant.Run, error) {
	run, err := c.client.RetrieveRun(ctx, sessionID, runID)
	if err != nil {
		return assistant.Run{}, errors.WithMessagef(Classify(err), "could not retrieve run %s", runID)
	}
	return runFromOpenAI(run), nil
}

func (c *Client) CancelRun(ctx context.Context, sessionID string, runID string) error {
	if _, err := c.client.CancelRun(ctx, sessionID, runID); err != nil {
		return errors.WithMessagef(Classify(err), "could not cancel run %s", runID)
	}
	return nil
}

// ListTurns reads every message of the thread, oldest first. Pages go through
// the same shape normalization as any other transcript payload.
func (c *Client) ListTurns(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	limit := helpers.ToPtr(c.pageSize)
	order := helpers.ToPtr("asc")
	var after *string

	ret := []conversation.Turn{}
	for page := 0; ; page++ {
		if c.maxPages > 0 && page >= c.maxPages {
			helpers.Logger(ctx).Warn().
				Str("session", sessionID).
				Int("pages", page).
				Int("turns", len(ret)).
				Msg("transcript truncated")
			return ret, nil
		}

		list, err := c.client.ListMessage(ctx, sessionID, limit, order, after, nil, nil)
		if err != nil {
			return nil, errors.WithMessagef(Classify(err), "could not list messages of thread %s", sessionID)
		}

		b, err := json.Marshal(list)
		if err != nil {
			return nil, errors.Wrap(err, "could not encode message page")
		}
		turns, err := conversation.ParseTranscript(b)
		if err != nil {
			return nil, errors.Wrap(err, "could not decode message page")
		}
		ret = append(ret, turns...)

		if !list.HasMore || list.LastID == nil || *list.LastID == "" {
			return ret, nil
		}
		after = list.LastID
	}
}

func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (assistant.File, error) {
	if strings.TrimSpace(name) == "" {
		return assistant.File{}, errors.Wrap(assistant.ErrInvalidRequest, "file name is empty")
	}
	f, err := c.client.CreateFileBytes(ctx, go_openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: go_openai.PurposeAssistants,
	})
	if err != nil {
		return assistant.File{}, errors.WithMessagef(Classify(err), "could not upload %s", name)
	}
	return fileFromOpenAI(f), nil
}

func (c *Client) DownloadFile(ctx context.Context, id string) (assistant.File, io.ReadCloser, error) {
	f, err := c.client.GetFile(ctx, id)
	if err != nil {
		return assistant.File{}, nil, errors.WithMessagef(Classify(err), "could not retrieve file %s", id)
	}
	content, err := c.client.GetFileContent(ctx, id)
	if err != nil {
		return assistant.File{}, nil, errors.WithMessagef(Classify(err), "could not download file %s", id)
	}
	return fileFromOpenAI(f), content, nil
}

func runFromOpenAI(run go_openai.Run) assistant.Run {
	ret := assistant.Run{
		ID:        run.ID,
		SessionID: run.ThreadID,
		Status:    assistant.RunStatus(run.Status),
	}
	if run.LastError != nil {
		switch {
		case run.LastError.Code != "" && run.LastError.Message != "":
			ret.LastError = string(run.LastError.Code) + ": " + run.LastError.Message
		case run.LastError.Message != "":
			ret.LastError = run.LastError.Message
		default:
			ret.LastError = string(run.LastError.Code)
		}
	}
	return ret
}

func fileFromOpenAI(f go_openai.File) assistant.File {
	return assistant.File{ID: f.ID, Name: f.FileName, Bytes: f.Bytes}
}
