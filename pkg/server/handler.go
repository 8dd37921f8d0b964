package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/go-go-golems/grillo/pkg/unittest"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderEchoIdempotencyKey = "X-Idempotency-Key"
)

// Asker is the conversation core as seen by the HTTP layer.
type Asker interface {
	Ask(ctx context.Context, req assistant.AskRequest) (*assistant.Answer, error)
	NewSession(ctx context.Context) (string, error)
}

type TestGenerator interface {
	Generate(ctx context.Context, source string) (string, error)
}

// QuestionRequest is the body of POST /gpt/user-question.
type QuestionRequest struct {
	SessionID string `json:"sessionId,omitempty" jsonschema:"description=Session to continue; a new one is created when empty"`
	// ThreadID is the name earlier clients use for SessionID.
	ThreadID      string   `json:"threadId,omitempty" jsonschema:"description=Alias of sessionId"`
	Question      string   `json:"question" jsonschema:"minLength=1,description=The question to ask"`
	AssistantID   string   `json:"assistantId,omitempty" jsonschema:"description=Overrides the default assistant"`
	AttachmentIDs []string `json:"attachmentIds,omitempty" jsonschema:"description=Uploaded files to search"`
}

func (r *QuestionRequest) sessionID() string {
	if strings.TrimSpace(r.SessionID) != "" {
		return r.SessionID
	}
	return r.ThreadID
}

type QuestionResponse struct {
	SessionID string `json:"sessionId"`
	// ThreadID repeats SessionID for earlier clients.
	ThreadID       string   `json:"threadId"`
	RunID          string   `json:"runId,omitempty"`
	ReplyFragments []string `json:"replyFragments"`
	NoReply        bool     `json:"noReply"`
}

type SessionResponse struct {
	SessionID string `json:"sessionId"`
	ID        string `json:"id"`
}

type Handler struct {
	asker          Asker
	files          assistant.FileStore
	generator      TestGenerator
	guard          *assistant.SubmissionGuard
	idempotency    *assistant.SubmissionGuard
	validator      *bodyValidator
	maxUploadBytes int64
}

type HandlerOption func(*Handler)

func WithFileStore(files assistant.FileStore) HandlerOption {
	return func(h *Handler) {
		h.files = files
	}
}

func WithTestGenerator(g TestGenerator) HandlerOption {
	return func(h *Handler) {
		h.generator = g
	}
}

func WithSubmissionGuard(g *assistant.SubmissionGuard) HandlerOption {
	return func(h *Handler) {
		h.guard = g
	}
}

func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxUploadBytes = n
	}
}

func NewHandler(asker Asker, options ...HandlerOption) (*Handler, error) {
	validator, err := newBodyValidator(&QuestionRequest{})
	if err != nil {
		return nil, err
	}
	ret := &Handler{
		asker:          asker,
		guard:          assistant.NewSubmissionGuard(assistant.DefaultDuplicateWindow, nil),
		idempotency:    assistant.NewSubmissionGuard(0, nil),
		validator:      validator,
		maxUploadBytes: 20 << 20,
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/gpt")
	g.POST("/create-thread", h.CreateThread)
	g.POST("/user-question", h.UserQuestion)
	g.GET("/user-question/schema", h.QuestionSchema)

	if h.files != nil {
		e.POST("/files", h.UploadFile)
		e.GET("/files/:id/content", h.DownloadFile)
	}
	if h.generator != nil {
		e.POST("/unit-test/generate", h.GenerateUnitTest)
	}
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
}

// CreateThread mints a session.
// POST /gpt/create-thread
func (h *Handler) CreateThread(c echo.Context) error {
	id, err := h.asker.NewSession(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SessionResponse{SessionID: id, ID: id})
}

// UserQuestion asks a question and returns the reply produced for it.
// POST /gpt/user-question
func (h *Handler) UserQuestion(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, errors.Wrap(assistant.ErrInvalidRequest, "could not read request body"))
	}
	if err := h.validator.Validate(body); err != nil {
		return writeError(c, err)
	}
	var req QuestionRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return writeError(c, errors.Wrap(assistant.ErrInvalidRequest, "invalid request body"))
	}

	key := c.Request().Header.Get(HeaderIdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	c.Response().Header().Set(HeaderEchoIdempotencyKey, key)
	releaseKey, err := h.idempotency.Acquire(key, "")
	if err != nil {
		return writeError(c, err)
	}
	defer releaseKey()

	sessionID := req.sessionID()
	release, err := h.guard.Acquire(strings.TrimSpace(sessionID), normalizeQuestion(req.Question))
	if err != nil {
		return writeError(c, err)
	}
	defer release()

	answer, err := h.asker.Ask(ctx, assistant.AskRequest{
		SessionID:     sessionID,
		Question:      req.Question,
		AssistantID:   req.AssistantID,
		AttachmentIDs: req.AttachmentIDs,
	})
	if err != nil {
		if answer != nil && answer.SessionID != "" {
			c.Response().Header().Set("X-Session-Id", answer.SessionID)
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, QuestionResponse{
		SessionID:      answer.SessionID,
		ThreadID:       answer.SessionID,
		RunID:          answer.RunID,
		ReplyFragments: answer.ReplyFragments,
		NoReply:        answer.NoReply(),
	})
}

// QuestionSchema serves the JSON schema of the question body.
// GET /gpt/user-question/schema
func (h *Handler) QuestionSchema(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, h.validator.Schema())
}

// UploadFile stores an attachment upstream.
// POST /files
func (h *Handler) UploadFile(c echo.Context) error {
	name, data, err := h.formFile(c)
	if err != nil {
		return writeError(c, err)
	}
	f, err := h.files.UploadFile(c.Request().Context(), name, data)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// DownloadFile streams an attachment back.
// GET /files/:id/content
func (h *Handler) DownloadFile(c echo.Context) error {
	f, content, err := h.files.DownloadFile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	defer content.Close()

	if f.Name != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	}
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, content)
}

// GenerateUnitTest returns unit tests for the uploaded source file.
// POST /unit-test/generate
func (h *Handler) GenerateUnitTest(c echo.Context) error {
	_, data, err := h.formFile(c)
	if err != nil {
		return writeError(c, err)
	}
	tests, err := h.generator.Generate(c.Request().Context(), string(data))
	if err != nil {
		return writeError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": unittest.DefaultFileName}))
	return c.Blob(http.StatusOK, "text/x-java-source; charset=utf-8", []byte(tests))
}

func (h *Handler) formFile(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.Wrap(assistant.ErrInvalidRequest, "no file uploaded in field \"file\"")
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return "", nil, errors.Wrapf(assistant.ErrInvalidRequest, "file is larger than %d bytes", h.maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(assistant.ErrInvalidRequest, "could not open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, errors.Wrap(assistant.ErrInvalidRequest, "could not read uploaded file")
	}
	helpers.Logger(c.Request().Context()).Debug().
		Str("file", fh.Filename).
		Int("bytes", len(data)).
		Msg("received upload")
	return fh.Filename, data, nil
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
