package settings

import (
	"time"

	"github.com/go-go-golems/grillo/pkg/assistant"
)

type ServerSettings struct {
	Address string `yaml:"address"`
	// DuplicateWindow suppresses an identical question on the same session.
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
	CORSOrigins     []string      `yaml:"cors_origins,omitempty"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func NewServerSettings() *ServerSettings {
	return &ServerSettings{
		Address:         ":3000",
		DuplicateWindow: assistant.DefaultDuplicateWindow,
		CORSOrigins:     []string{"*"},
		MaxUploadBytes:  20 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}
