package settings

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/security"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ClientSettings configures the connection to the OpenAI API.
type ClientSettings struct {
	APIKey       string         `yaml:"api_key,omitempty"`
	BaseURL      *string        `yaml:"base_url,omitempty"`
	Organization *string        `yaml:"organization,omitempty"`
	UserAgent    *string        `yaml:"user_agent,omitempty"`
	Timeout      *time.Duration `yaml:"timeout,omitempty"`
	// AllowLocalBaseURL accepts a plain http or local network BaseURL, for
	// gateways running next to the process.
	AllowLocalBaseURL bool         `yaml:"allow_local_base_url,omitempty"`
	HTTPClient        *http.Client `yaml:"-" json:"-"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
	}
}

// UnmarshalYAML accepts the timeout either as a number of seconds or as a
// duration string.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		APIKey       string      `yaml:"api_key,omitempty"`
		BaseURL      *string     `yaml:"base_url,omitempty"`
		Organization *string     `yaml:"organization,omitempty"`
		UserAgent    *string     `yaml:"user_agent,omitempty"`
		Timeout      interface{} `yaml:"timeout,omitempty"`
		AllowLocal   bool        `yaml:"allow_local_base_url,omitempty"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	cs.APIKey = aux.APIKey
	cs.AllowLocalBaseURL = aux.AllowLocal
	if aux.BaseURL != nil {
		cs.BaseURL = aux.BaseURL
	}
	if aux.Organization != nil {
		cs.Organization = aux.Organization
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}

	switch t := aux.Timeout.(type) {
	case nil:
	case int:
		d := time.Duration(t) * time.Second
		cs.Timeout = &d
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return &yaml.TypeError{Errors: []string{fmt.Sprintf("invalid timeout %q: %v", t, err)}}
		}
		cs.Timeout = &d
	default:
		return &yaml.TypeError{Errors: []string{fmt.Sprintf("invalid timeout %v", t)}}
	}
	return nil
}

// ValidateBaseURL rejects a BaseURL the credential must not be sent to.
func (cs *ClientSettings) ValidateBaseURL() error {
	if cs.BaseURL == nil || strings.TrimSpace(*cs.BaseURL) == "" {
		return nil
	}
	err := security.ValidateOutboundURL(strings.TrimSpace(*cs.BaseURL), security.OutboundURLOptions{
		AllowHTTP:          cs.AllowLocalBaseURL,
		AllowLocalNetworks: cs.AllowLocalBaseURL,
	})
	if err != nil {
		return errors.Wrapf(assistant.ErrConfiguration, "base url %s: %v", *cs.BaseURL, err)
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// Client returns the HTTP client to use for API calls.
func (cs *ClientSettings) Client() *http.Client {
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	c := &http.Client{}
	if cs.Timeout != nil {
		c.Timeout = *cs.Timeout
	}
	return c
}
