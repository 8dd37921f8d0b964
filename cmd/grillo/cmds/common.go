package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/assistant/openai"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadSettings reads the effective settings. With validate set, a missing
// credential or invalid polling bounds stop the command before any network
// call.
func loadSettings(validate bool) (*settings.Settings, error) {
	s := settings.FromViper(viper.GetViper())
	if !validate {
		return s, nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	for _, w := range s.Warnings() {
		log.Warn().Msg(w)
	}
	return s, nil
}

// bindLocalFlags makes the flags of cmd visible to viper.
func bindLocalFlags(cmd *cobra.Command, args []string) error {
	return viper.BindPFlags(cmd.Flags())
}

type app struct {
	settings     *settings.Settings
	client       *openai.Client
	orchestrator *assistant.Orchestrator
}

func newApp() (*app, error) {
	s, err := loadSettings(true)
	if err != nil {
		return nil, err
	}
	client, err := openai.NewClient(s.Client)
	if err != nil {
		return nil, err
	}
	return &app{
		settings:     s,
		client:       client,
		orchestrator: assistant.NewOrchestrator(client, s.Assistant.OrchestratorOptions()...),
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch assistant.KindOf(err) {
	case "":
		return 0
	case assistant.KindInvalidRequest:
		return 2
	case assistant.KindConfiguration:
		return 78
	case assistant.KindUpstreamUnavailable:
		return 69
	case assistant.KindCancelled:
		return 130
	case assistant.KindRunFailed, assistant.KindRunCancelled, assistant.KindRunTimeout, assistant.KindBusy, assistant.KindUnknown:
		return 1
	}
	return 1
}
