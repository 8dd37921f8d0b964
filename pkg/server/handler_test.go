package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	mu       sync.Mutex
	requests []assistant.AskRequest
	answer   *assistant.Answer
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeAsker) Ask(ctx context.Context, req assistant.AskRequest) (*assistant.Answer, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.answer, f.err
}

func (f *fakeAsker) NewSession(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "thread_new", nil
}

type fakeFiles struct{}

func (fakeFiles) UploadFile(ctx context.Context, name string, data []byte) (assistant.File, error) {
	return assistant.File{ID: "file_1", Name: name, Bytes: len(data)}, nil
}

func (fakeFiles) DownloadFile(ctx context.Context, id string) (assistant.File, io.ReadCloser, error) {
	if id != "file_1" {
		return assistant.File{}, nil, errors.Wrap(assistant.ErrInvalidRequest, "no such file")
	}
	return assistant.File{ID: id, Name: "codigo civil.pdf"}, io.NopCloser(strings.NewReader("%PDF")), nil
}

type fakeGenerator struct {
	source string
}

func (f *fakeGenerator) Generate(ctx context.Context, source string) (string, error) {
	f.source = source
	return "class ATest {}\n", nil
}

func newTestServer(t *testing.T, asker Asker, options ...HandlerOption) *echo.Echo {
	h, err := NewHandler(asker, options...)
	require.NoError(t, err)
	return New(h, settings.NewServerSettings())
}

func postJSON(e *echo.Echo, path string, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateThread(t *testing.T) {
	e := newTestServer(t, &fakeAsker{})

	rec := postJSON(e, "/gpt/create-thread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SessionResponse{SessionID: "thread_new", ID: "thread_new"}, decode[SessionResponse](t, rec))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestUserQuestion(t *testing.T) {
	asker := &fakeAsker{answer: &assistant.Answer{SessionID: "thread_1", RunID: "run_1", ReplyFragments: []string{"A2"}}}
	e := newTestServer(t, asker)

	rec := postJSON(e, "/gpt/user-question", `{"threadId":"thread_1","question":"Q2","attachmentIds":["file_1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[QuestionResponse](t, rec)
	assert.Equal(t, "thread_1", resp.SessionID)
	assert.Equal(t, "thread_1", resp.ThreadID)
	assert.Equal(t, []string{"A2"}, resp.ReplyFragments)
	assert.False(t, resp.NoReply)
	assert.NotEmpty(t, rec.Header().Get(HeaderEchoIdempotencyKey))

	require.Len(t, asker.requests, 1)
	assert.Equal(t, assistant.AskRequest{SessionID: "thread_1", Question: "Q2", AttachmentIDs: []string{"file_1"}}, asker.requests[0])
}

func TestUserQuestionNoReply(t *testing.T) {
	asker := &fakeAsker{answer: &assistant.Answer{SessionID: "thread_1", ReplyFragments: []string{}}}
	e := newTestServer(t, asker)

	rec := postJSON(e, "/gpt/user-question", `{"question":"Q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"replyFragments":[]`)
	assert.True(t, decode[QuestionResponse](t, rec).NoReply)
}

func TestUserQuestionValidation(t *testing.T) {
	asker := &fakeAsker{}
	e := newTestServer(t, asker)

	for name, body := range map[string]string{
		"missing question": `{"sessionId":"thread_1"}`,
		"empty question":   `{"question":""}`,
		"wrong type":       `{"question":42}`,
		"not json":         `question=hi`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(e, "/gpt/user-question", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, string(assistant.KindInvalidRequest), resp.Kind)
		})
	}
	assert.Empty(t, asker.requests)
}

func TestUserQuestionErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&assistant.StageError{Stage: assistant.StageRun, Err: &assistant.RunFailedError{RunID: "run_1", Status: assistant.RunStatusFailed, Reason: "boom"}}, http.StatusBadGateway},
		{errors.Wrap(assistant.ErrRunTimeout, "slow"), http.StatusGatewayTimeout},
		{errors.Wrap(assistant.ErrUpstreamUnavailable, "eof"), http.StatusServiceUnavailable},
		{errors.Wrap(assistant.ErrConfiguration, "no assistant"), http.StatusInternalServerError},
		{errors.Wrap(assistant.ErrRunCancelled, "run_1"), http.StatusConflict},
		{context.Canceled, StatusClientClosedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			asker := &fakeAsker{answer: &assistant.Answer{SessionID: "thread_9"}, err: tt.err}
			e := newTestServer(t, asker)

			rec := postJSON(e, "/gpt/user-question", `{"question":"Q"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "thread_9", rec.Header().Get("X-Session-Id"))
		})
	}

	asker := &fakeAsker{err: &assistant.StageError{Stage: assistant.StageRun, Err: errors.Wrap(assistant.ErrRunTimeout, "slow")}}
	rec := postJSON(newTestServer(t, asker), "/gpt/user-question", `{"question":"Q"}`)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "run_timeout", resp.Kind)
	assert.Equal(t, "run", resp.Stage)
}

func TestUserQuestionSingleFlight(t *testing.T) {
	asker := &fakeAsker{
		answer:  &assistant.Answer{SessionID: "thread_1", ReplyFragments: []string{"A"}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	e := newTestServer(t, asker)

	first := make(chan *httptest.ResponseRecorder)
	go func() {
		first <- postJSON(e, "/gpt/user-question", `{"sessionId":"thread_1","question":"Q1"}`, HeaderIdempotencyKey, "key-1")
	}()
	<-asker.started

	rec := postJSON(e, "/gpt/user-question", `{"sessionId":"thread_1","question":"Q2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(assistant.KindBusy), decode[ErrorResponse](t, rec).Kind)

	rec = postJSON(e, "/gpt/user-question", `{"sessionId":"thread_2","question":"Q1"}`, HeaderIdempotencyKey, "key-1")
	assert.Equal(t, http.StatusConflict, rec.Code, "the idempotency key is still in flight")

	close(asker.block)
	rec = <-first
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key-1", rec.Header().Get(HeaderEchoIdempotencyKey))

	rec = postJSON(e, "/gpt/user-question", `{"sessionId":"thread_1","question":"  q1 "}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "same question within the duplicate window")
}

func multipartRequest(t *testing.T, path string, field string, name string, content string) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestFiles(t *testing.T) {
	e := newTestServer(t, &fakeAsker{}, WithFileStore(fakeFiles{}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/files", "file", "codigo.pdf", "%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"fileId":"file_1","filename":"codigo.pdf","bytes":8}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/file_1/content", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename="codigo civil.pdf"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/missing/content", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/files", "", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateUnitTest(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestServer(t, &fakeAsker{}, WithTestGenerator(gen))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/unit-test/generate", "file", "A.java", "class A {}"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "class ATest {}\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "GeneratedUnitTest.java")
	assert.Equal(t, "class A {}", gen.source)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/unit-test/generate", "", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadLimit(t *testing.T) {
	e := newTestServer(t, &fakeAsker{}, WithFileStore(fakeFiles{}), WithMaxUploadBytes(4))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/files", "file", "big.txt", "0123456789"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	e := newTestServer(t, &fakeAsker{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(assistant.KindInvalidRequest), decode[ErrorResponse](t, rec).Kind)
}

func TestQuestionSchema(t *testing.T) {
	e := newTestServer(t, &fakeAsker{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gpt/user-question/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	schema := decode[map[string]any](t, rec)
	assert.Equal(t, []any{"question"}, schema["required"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "threadId")
}
