package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// Classify maps an error returned by go-openai onto the assistant error
// taxonomy. Context errors are returned untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr *go_openai.APIError
	var reqErr *go_openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", assistant.ErrInvalidRequest, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", assistant.ErrConfiguration, err)
	default:
		return fmt.Errorf("%w: %w", assistant.ErrUpstreamUnavailable, err)
	}
}
