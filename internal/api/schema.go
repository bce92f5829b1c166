package api

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema versions of the response envelopes the client understands.
const (
	AuthEnvelopeSchema = "auth_envelope.v1"
	MessageSchema      = "message.v1"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type schemaSet map[string]*gojsonschema.Schema

func loadSchemas() (schemaSet, error) {
	set := schemaSet{}
	for _, name := range []string{AuthEnvelopeSchema, MessageSchema} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set[name] = schema
	}
	return set, nil
}

// validate checks body against the named schema and reports every
// violation in one error wrapping ErrMalformedResponse.
func (s schemaSet) validate(name string, body []byte) error {
	schema, ok := s[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if res.Valid() {
		return nil
	}
	details := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		details = append(details, e.String())
	}
	return fmt.Errorf("%w (%s): %s", ErrMalformedResponse, name, strings.Join(details, "; "))
}
