package settings

// UnitTestSettings configures the unit-test generator.
type UnitTestSettings struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

func NewUnitTestSettings() *UnitTestSettings {
	return &UnitTestSettings{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.5,
		MaxTokens:   2048,
	}
}
