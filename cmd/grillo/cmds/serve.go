package cmds

import (
	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/server"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/go-go-golems/grillo/pkg/unittest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the question, attachment and unit-test endpoints over HTTP",
		Args:    cobra.NoArgs,
		PreRunE: bindLocalFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			s := a.settings

			h, err := server.NewHandler(a.orchestrator,
				server.WithFileStore(a.client),
				server.WithTestGenerator(unittest.NewGenerator(a.client.OpenAI(), s.UnitTest)),
				server.WithSubmissionGuard(assistant.NewSubmissionGuard(s.Server.DuplicateWindow, nil)),
				server.WithMaxUploadBytes(s.Server.MaxUploadBytes),
			)
			if err != nil {
				return err
			}
			e := server.New(h, s.Server)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return server.Serve(ctx, e, s.Server.Address, s.Server.ShutdownTimeout)
			})
			eg.Go(func() error {
				<-ctx.Done()
				log.Info().Msg("received shutdown signal")
				return nil
			})
			return eg.Wait()
		},
	}

	defaults := settings.NewServerSettings()
	cmd.Flags().String(settings.KeyAddress, defaults.Address, "Address to listen on")
	cmd.Flags().Duration(settings.KeyDuplicateWindow, defaults.DuplicateWindow, "Window in which an identical question on a session is rejected")
	cmd.Flags().StringSlice(settings.KeyCORSOrigins, defaults.CORSOrigins, "Allowed CORS origins")
	cmd.Flags().Int64(settings.KeyMaxUploadBytes, defaults.MaxUploadBytes, "Largest accepted upload")
	cmd.Flags().Duration(settings.KeyShutdownTimeout, defaults.ShutdownTimeout, "Grace period for in-flight requests on shutdown")
	addUnitTestFlags(cmd)

	return cmd
}
