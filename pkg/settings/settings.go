package settings

import (
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings is the process-wide configuration, read once at startup and
// read-only afterwards.
type Settings struct {
	Client    *ClientSettings    `yaml:"client"`
	Assistant *AssistantSettings `yaml:"assistant"`
	Server    *ServerSettings    `yaml:"server"`
	UnitTest  *UnitTestSettings  `yaml:"unit_test"`
}

func NewSettings() *Settings {
	return &Settings{
		Client:    NewClientSettings(),
		Assistant: NewAssistantSettings(),
		Server:    NewServerSettings(),
		UnitTest:  NewUnitTestSettings(),
	}
}

// Viper keys. They double as flag names.
const (
	KeyAPIKey          = "openai-api-key"
	KeyBaseURL         = "openai-base-url"
	KeyAllowLocalURL   = "openai-allow-local-base-url"
	KeyOrganization    = "openai-organization"
	KeyClientTimeout   = "client-timeout"
	KeyAssistantID     = "assistant-id"
	KeyPollInterval    = "poll-interval"
	KeyMaxPollInterval = "poll-max-interval"
	KeyPollMultiplier  = "poll-multiplier"
	KeyRunTimeout      = "run-timeout"
	KeyCancelOnAbandon = "cancel-on-abandon"
	KeyStrictReply     = "strict-reply"
	KeyAddress         = "address"
	KeyDuplicateWindow = "duplicate-window"
	KeyCORSOrigins     = "cors-origins"
	KeyMaxUploadBytes  = "max-upload-bytes"
	KeyShutdownTimeout = "shutdown-timeout"
	KeyUnitTestModel   = "unit-test-model"
	KeyUnitTestTemp    = "unit-test-temperature"
	KeyUnitTestTokens  = "unit-test-max-tokens"
)

// SetDefaults registers the defaults of NewSettings on v, and binds the
// environment names used by earlier deployments.
func SetDefaults(v *viper.Viper) error {
	s := NewSettings()
	v.SetDefault(KeyClientTimeout, *s.Client.Timeout)
	v.SetDefault(KeyPollInterval, s.Assistant.PollInterval)
	v.SetDefault(KeyMaxPollInterval, s.Assistant.MaxPollInterval)
	v.SetDefault(KeyPollMultiplier, s.Assistant.PollMultiplier)
	v.SetDefault(KeyRunTimeout, s.Assistant.RunTimeout)
	v.SetDefault(KeyCancelOnAbandon, s.Assistant.CancelOnAbandon)
	v.SetDefault(KeyStrictReply, s.Assistant.StrictReply)
	v.SetDefault(KeyAddress, s.Server.Address)
	v.SetDefault(KeyDuplicateWindow, s.Server.DuplicateWindow)
	v.SetDefault(KeyCORSOrigins, s.Server.CORSOrigins)
	v.SetDefault(KeyMaxUploadBytes, s.Server.MaxUploadBytes)
	v.SetDefault(KeyShutdownTimeout, s.Server.ShutdownTimeout)
	v.SetDefault(KeyUnitTestModel, s.UnitTest.Model)
	v.SetDefault(KeyUnitTestTemp, s.UnitTest.Temperature)
	v.SetDefault(KeyUnitTestTokens, s.UnitTest.MaxTokens)

	if err := v.BindEnv(KeyAPIKey, "GRILLO_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return err
	}
	if err := v.BindEnv(KeyAssistantID, "GRILLO_ASSISTANT_ID", "ASSISTANCE_ID"); err != nil {
		return err
	}
	return nil
}

// FromViper builds the settings from v. It does not validate them.
func FromViper(v *viper.Viper) *Settings {
	s := NewSettings()

	s.Client.APIKey = strings.TrimSpace(v.GetString(KeyAPIKey))
	if u := v.GetString(KeyBaseURL); u != "" {
		s.Client.BaseURL = &u
	}
	s.Client.AllowLocalBaseURL = v.GetBool(KeyAllowLocalURL)
	if o := v.GetString(KeyOrganization); o != "" {
		s.Client.Organization = &o
	}
	if v.IsSet(KeyClientTimeout) {
		t := v.GetDuration(KeyClientTimeout)
		s.Client.Timeout = &t
	}

	s.Assistant.DefaultAssistantID = strings.TrimSpace(v.GetString(KeyAssistantID))
	if v.IsSet(KeyPollInterval) {
		s.Assistant.PollInterval = v.GetDuration(KeyPollInterval)
	}
	if v.IsSet(KeyMaxPollInterval) {
		s.Assistant.MaxPollInterval = v.GetDuration(KeyMaxPollInterval)
	}
	if v.IsSet(KeyPollMultiplier) {
		s.Assistant.PollMultiplier = v.GetFloat64(KeyPollMultiplier)
	}
	if v.IsSet(KeyRunTimeout) {
		s.Assistant.RunTimeout = v.GetDuration(KeyRunTimeout)
	}
	if v.IsSet(KeyCancelOnAbandon) {
		s.Assistant.CancelOnAbandon = v.GetBool(KeyCancelOnAbandon)
	}
	s.Assistant.StrictReply = v.GetBool(KeyStrictReply)

	if v.IsSet(KeyAddress) {
		s.Server.Address = v.GetString(KeyAddress)
	}
	if v.IsSet(KeyDuplicateWindow) {
		s.Server.DuplicateWindow = v.GetDuration(KeyDuplicateWindow)
	}
	if v.IsSet(KeyCORSOrigins) {
		s.Server.CORSOrigins = v.GetStringSlice(KeyCORSOrigins)
	}
	if v.IsSet(KeyMaxUploadBytes) {
		s.Server.MaxUploadBytes = v.GetInt64(KeyMaxUploadBytes)
	}
	if v.IsSet(KeyShutdownTimeout) {
		s.Server.ShutdownTimeout = v.GetDuration(KeyShutdownTimeout)
	}

	if m := v.GetString(KeyUnitTestModel); m != "" {
		s.UnitTest.Model = m
	}
	if v.IsSet(KeyUnitTestTemp) {
		s.UnitTest.Temperature = float32(v.GetFloat64(KeyUnitTestTemp))
	}
	if v.IsSet(KeyUnitTestTokens) {
		s.UnitTest.MaxTokens = v.GetInt(KeyUnitTestTokens)
	}

	return s
}

// Validate reports configuration problems that must stop the process.
func (s *Settings) Validate() error {
	if s.Client == nil || s.Client.APIKey == "" {
		return errors.Wrap(assistant.ErrConfiguration, "no OpenAI API key: set OPENAI_API_KEY or --openai-api-key")
	}
	if err := s.Client.ValidateBaseURL(); err != nil {
		return err
	}
	if err := s.Assistant.PollPolicy().Validate(); err != nil {
		return err
	}
	if s.Server.DuplicateWindow < 0 {
		return errors.Wrap(assistant.ErrConfiguration, "duplicate window must not be negative")
	}
	if s.UnitTest.MaxTokens <= 0 {
		return errors.Wrap(assistant.ErrConfiguration, "unit test max tokens must be positive")
	}
	return nil
}

// Warnings lists problems that only surface on some calls.
func (s *Settings) Warnings() []string {
	ret := []string{}
	if s.Assistant.DefaultAssistantID == "" {
		ret = append(ret, "no default assistant id (ASSISTANCE_ID): every question must name an assistant")
	}
	return ret
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// Redacted returns a copy safe to print.
func (s *Settings) Redacted() *Settings {
	ret := s.Clone()
	ret.Client.APIKey = redact(ret.Client.APIKey)
	return ret
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "****" + key[len(key)-4:]
}

func (s *Settings) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

func FromYAML(b []byte) (*Settings, error) {
	s := NewSettings()
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "could not parse settings")
	}
	return s, nil
}
