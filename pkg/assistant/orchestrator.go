package assistant

import (
	"context"

	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/helpers"
)

type AskRequest struct {
	// SessionID is reused when non-blank, otherwise a session is created.
	SessionID string
	Question  string
	// AssistantID overrides the default assistant for this ask.
	AssistantID   string
	AttachmentIDs []string
}

type Answer struct {
	// SessionID is the session the question was submitted to, to be kept by the
	// caller for the next ask.
	SessionID      string
	CreatedSession bool
	RunID          string
	ReplyFragments []string
	Resolution     conversation.Resolution
}

// NoReply is the defined empty outcome: the run completed but the transcript
// holds no assistant text for the question.
func (a *Answer) NoReply() bool {
	return len(a.ReplyFragments) == 0
}

// Orchestrator composes session identity, submission, run driving, transcript
// fetching and reply resolution into a single ask.
//
// Callers must not ask twice for the same session concurrently; see
// SubmissionGuard. Asks on different sessions share nothing but read-only
// configuration and may run in parallel.
type Orchestrator struct {
	upstream           Upstream
	submitter          *TurnSubmitter
	driver             *RunDriver
	fetcher            *TranscriptFetcher
	defaultAssistantID string
	strictReply        bool
	driverOptions      []RunDriverOption
}

type Option func(*Orchestrator)

func WithDefaultAssistantID(id string) Option {
	return func(o *Orchestrator) {
		o.defaultAssistantID = id
	}
}

// WithStrictReply requires the reply anchor to match the question by content.
func WithStrictReply(strict bool) Option {
	return func(o *Orchestrator) {
		o.strictReply = strict
	}
}

func WithRunDriverOptions(options ...RunDriverOption) Option {
	return func(o *Orchestrator) {
		o.driverOptions = append(o.driverOptions, options...)
	}
}

func NewOrchestrator(upstream Upstream, options ...Option) *Orchestrator {
	ret := &Orchestrator{
		upstream:  upstream,
		submitter: NewTurnSubmitter(upstream),
		fetcher:   NewTranscriptFetcher(upstream),
	}
	for _, o := range options {
		o(ret)
	}
	ret.driver = NewRunDriver(upstream, ret.driverOptions...)
	return ret
}

// NewSession mints a session without asking anything.
func (o *Orchestrator) NewSession(ctx context.Context) (string, error) {
	return EnsureSession(ctx, o.upstream, "")
}

// SubmitAndRun appends the question to the session and drives a run of the
// resolved assistant to completion. The assistant identity is checked before
// any network call.
func (o *Orchestrator) SubmitAndRun(ctx context.Context, sessionID string, turn UserTurn, assistantOverride string) (*RunHandle, error) {
	assistantID, err := ResolveAssistantID(assistantOverride, o.defaultAssistantID)
	if err != nil {
		return nil, stageError(StageRun, err)
	}
	if err := validateSubmission(sessionID, turn.Text); err != nil {
		return nil, err
	}

	if err := o.submitter.Submit(ctx, sessionID, turn); err != nil {
		return nil, err
	}
	return o.driver.Run(ctx, sessionID, assistantID)
}

// Ask submits a question and returns the reply produced for it. When a failure
// happens after the session is known, the returned Answer still carries
// SessionID so a freshly created session is not lost.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	logger := helpers.Logger(ctx)

	if _, err := ResolveAssistantID(req.AssistantID, o.defaultAssistantID); err != nil {
		return nil, stageError(StageRun, err)
	}
	if err := validateQuestion(req.Question); err != nil {
		return nil, err
	}

	sessionID, err := EnsureSession(ctx, o.upstream, req.SessionID)
	if err != nil {
		return nil, err
	}
	answer := &Answer{
		SessionID:      sessionID,
		CreatedSession: sessionID != req.SessionID,
		ReplyFragments: []string{},
	}

	handle, err := o.SubmitAndRun(ctx, sessionID, UserTurn{
		Text:          req.Question,
		AttachmentIDs: req.AttachmentIDs,
	}, req.AssistantID)
	if handle != nil {
		answer.RunID = handle.RunID
	}
	if err != nil {
		o.logFailure(ctx, sessionID, err)
		return answer, err
	}

	turns, err := o.fetcher.Fetch(ctx, sessionID)
	if err != nil {
		o.logFailure(ctx, sessionID, err)
		return answer, err
	}

	answer.Resolution = conversation.Resolve(turns, req.Question, conversation.WithStrictAnchor(o.strictReply))
	answer.ReplyFragments = answer.Resolution.Fragments

	logger.Info().
		Str("session", sessionID).
		Str("run", answer.RunID).
		Int("polls", handle.Polls).
		Int("turns", len(turns)).
		Bool("anchor_matched", answer.Resolution.AnchorMatched).
		Bool("fallback", answer.Resolution.Fallback).
		Bool("no_reply", answer.NoReply()).
		Msg("answered question")

	return answer, nil
}

func (o *Orchestrator) logFailure(ctx context.Context, sessionID string, err error) {
	stage, _ := StageOf(err)
	e := helpers.Logger(ctx).Warn()
	if KindOf(err) == KindCancelled {
		e = helpers.Logger(ctx).Info()
	}
	e.Err(err).
		Str("session", sessionID).
		Str("stage", string(stage)).
		Str("kind", string(KindOf(err))).
		Msg("ask failed")
}
