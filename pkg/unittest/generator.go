package unittest

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/assistant/openai"
	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// DefaultFileName is the name under which generated tests are offered.
const DefaultFileName = "GeneratedUnitTest.java"

const systemPrompt = `Write unit tests from scratch in Java using JUnit 5 and Mockito.
Each test must cover every possible case and check both correct and incorrect behavior.
Tests must be clear and well documented, for ALL the methods of the following source:

%s
`

const userPrompt = `Please include detailed assertions for all the code and mock external dependencies where needed.
Do not skip any method. Aim for 80% coverage.`

// ChatCompleter is the part of the go-openai client used by the generator.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request go_openai.ChatCompletionRequest) (go_openai.ChatCompletionResponse, error)
}

// Generator asks a chat model for unit tests of a source file.
type Generator struct {
	client   ChatCompleter
	settings *settings.UnitTestSettings
}

func NewGenerator(client ChatCompleter, s *settings.UnitTestSettings) *Generator {
	if s == nil {
		s = settings.NewUnitTestSettings()
	}
	return &Generator{client: client, settings: s}
}

// Generate returns the test source for source. Nothing is written to disk.
func (g *Generator) Generate(ctx context.Context, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.Wrap(assistant.ErrInvalidRequest, "no source code provided")
	}

	req := go_openai.ChatCompletionRequest{
		Model:       g.settings.Model,
		Temperature: g.settings.Temperature,
		MaxTokens:   g.settings.MaxTokens,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, source)},
			{Role: go_openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.WithMessage(openai.Classify(err), "could not generate unit tests")
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(assistant.ErrUpstreamUnavailable, "completion has no choices")
	}

	helpers.Logger(ctx).Info().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("generated unit tests")

	return unwrapCodeFence(resp.Choices[0].Message.Content), nil
}

// unwrapCodeFence returns the body of the first fenced code block of s, or s
// itself when there is none.
func unwrapCodeFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	nl := strings.Index(body, "\n")
	if nl < 0 {
		return s
	}
	body = body[nl+1:]
	end := strings.Index(body, "```")
	if end < 0 {
		return strings.TrimRight(body, "\n") + "\n"
	}
	return strings.TrimRight(body[:end], "\n") + "\n"
}
