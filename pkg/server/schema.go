package server

import (
	"encoding/json"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// bodyValidator checks request bodies against a schema reflected from the
// request type.
type bodyValidator struct {
	schema *gojsonschema.Schema
	raw    []byte
}

func newBodyValidator(v interface{}) (*bodyValidator, error) {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(v)
	s.Version = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode request schema")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "could not compile request schema")
	}
	return &bodyValidator{schema: compiled, raw: raw}, nil
}

// Validate returns an ErrInvalidRequest listing every violation.
func (b *bodyValidator) Validate(body []byte) error {
	result, err := b.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.Wrap(assistant.ErrInvalidRequest, "request body is not valid JSON")
	}
	if result.Valid() {
		return nil
	}

	descriptions := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		descriptions = append(descriptions, desc.String())
	}
	return errors.Wrap(assistant.ErrInvalidRequest, strings.Join(descriptions, "; "))
}

// Schema returns the JSON schema document.
func (b *bodyValidator) Schema() json.RawMessage {
	return b.raw
}
