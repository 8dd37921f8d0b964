package helpers

import (
	"context"

	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type correlationIDKeyType string

const correlationIDKey correlationIDKeyType = "correlation_id"

// NewCorrelationID mints an id for a request that did not bring one. The "gen_"
// prefix tells generated ids apart from ids passed by clients.
func NewCorrelationID() string {
	return "gen_" + shortuuid.New()
}

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(correlationIDKey).(string)
	return v, ok && v != ""
}

// Logger returns the global logger, annotated with the correlation id of ctx
// when there is one.
func Logger(ctx context.Context) *zerolog.Logger {
	id, ok := CorrelationIDFromContext(ctx)
	if !ok {
		return &log.Logger
	}
	l := log.Logger.With().Str("correlation_id", id).Logger()
	return &l
}
