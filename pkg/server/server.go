package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// New builds the echo instance serving h.
func New(h *Handler, s *settings.ServerSettings) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(requestID())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  s.CORSOrigins,
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderXRequestID, HeaderIdempotencyKey},
		ExposeHeaders: []string{echo.HeaderXRequestID, HeaderEchoIdempotencyKey, echo.HeaderContentDisposition},
	}))

	h.RegisterRoutes(e)
	return e
}

// Serve runs e on address until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, address string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", address).Msg("starting server")
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "could not shut down server")
	}
	return <-errCh
}
