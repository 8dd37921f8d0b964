package settings

import (
	"time"

	"github.com/go-go-golems/grillo/pkg/assistant"
)

// AssistantSettings holds the default assistant identity and how runs are
// observed.
type AssistantSettings struct {
	DefaultAssistantID string        `yaml:"default_assistant_id,omitempty"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	MaxPollInterval    time.Duration `yaml:"max_poll_interval"`
	PollMultiplier     float64       `yaml:"poll_multiplier"`
	RunTimeout         time.Duration `yaml:"run_timeout"`
	// CancelOnAbandon asks the upstream to cancel runs that time out or
	// whose ask was cancelled.
	CancelOnAbandon bool `yaml:"cancel_on_abandon"`
	StrictReply     bool `yaml:"strict_reply"`
}

func NewAssistantSettings() *AssistantSettings {
	p := assistant.DefaultPollPolicy()
	return &AssistantSettings{
		PollInterval:    p.Interval,
		MaxPollInterval: p.MaxInterval,
		PollMultiplier:  p.Multiplier,
		RunTimeout:      p.Timeout,
		CancelOnAbandon: true,
	}
}

func (s *AssistantSettings) PollPolicy() assistant.PollPolicy {
	return assistant.PollPolicy{
		Interval:    s.PollInterval,
		MaxInterval: s.MaxPollInterval,
		Multiplier:  s.PollMultiplier,
		Timeout:     s.RunTimeout,
	}
}

// OrchestratorOptions turns the settings into options for
// assistant.NewOrchestrator.
func (s *AssistantSettings) OrchestratorOptions(runOptions ...assistant.RunDriverOption) []assistant.Option {
	runOptions = append([]assistant.RunDriverOption{
		assistant.WithPollPolicy(s.PollPolicy()),
		assistant.WithCancelOnAbandon(s.CancelOnAbandon),
	}, runOptions...)
	return []assistant.Option{
		assistant.WithDefaultAssistantID(s.DefaultAssistantID),
		assistant.WithStrictReply(s.StrictReply),
		assistant.WithRunDriverOptions(runOptions...),
	}
}
