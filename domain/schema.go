package domain

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request body schemas, by name.
const (
	SchemaTaskCreate  = "task-create"
	SchemaTaskUpdate  = "task-update"
	SchemaMove        = "move"
	SchemaBulk        = "bulk"
	SchemaPreferences = "preferences"
	SchemaUser        = "user"
)

const schemaBaseURL = "https://taskboard.local/schema/"

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	schemas = make(map[string]*jsonschema.Schema)
	compiler := jsonschema.NewCompiler()
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		schemasErr = err
		return
	}
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schema/" + e.Name())
		if err != nil {
			schemasErr = err
			return
		}
		if err := compiler.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			schemasErr = fmt.Errorf("add schema %s: %w", e.Name(), err)
			return
		}
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		s, err := compiler.Compile(schemaBaseURL + e.Name())
		if err != nil {
			schemasErr = fmt.Errorf("compile schema %s: %w", e.Name(), err)
			return
		}
		schemas[name] = s
	}
}

// ValidateJSON checks a raw request body against the named schema. Schema
// violations are reported wrapped in ErrInvalidTask with the first failing
// location.
func ValidateJSON(name string, raw []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: malformed json: %v", ErrInvalidTask, err)
	}
	if err := s.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		return fmt.Errorf("%w: %s", ErrInvalidTask, firstCause(ve))
	}
	return nil
}

func firstCause(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return loc + ": " + ve.Message
}
