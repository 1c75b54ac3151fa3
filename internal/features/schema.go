package features

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed feature_names.schema.json
var featureNamesSchema []byte

const featureNamesSchemaURL = "schema://feature_names.json"

// Schema is the ordered set of feature columns the classifier expects.
// A Schema is immutable once constructed and safe to share.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a Schema from names in classifier order. Names must be
// unique and non-empty.
func NewSchema(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, errors.New("schema has no features")
	}
	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("feature %d has an empty name", i)
		}
		if _, dup := s.index[n]; dup {
			return nil, fmt.Errorf("feature %q is listed twice", n)
		}
		s.names[i] = n
		s.index[n] = i
	}
	return s, nil
}

// Len returns the number of feature columns.
func (s *Schema) Len() int { return len(s.names) }

// Names returns a copy of the feature names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether name is a column of the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Index returns the column position of name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Registry owns the feature schema for the lifetime of the process. The
// backing artifact is read on the first Load; every later call returns the
// same Schema, or the same error if that first read failed.
//
// The Registry holds no open resources. Dropping the last reference is the
// whole teardown.
type Registry struct {
	path string
	load func() (*Schema, error)
}

// NewRegistry returns a Registry backed by the feature-name artifact at path.
// Nothing is read until Load is called.
func NewRegistry(path string) *Registry {
	r := &Registry{path: path}
	r.load = sync.OnceValues(func() (*Schema, error) {
		return LoadSchemaFile(path)
	})
	return r
}

// Path returns the artifact location backing the registry.
func (r *Registry) Path() string { return r.path }

// Load returns the cached schema, reading the artifact on first use.
// Failures are *SchemaLoadError.
func (r *Registry) Load() (*Schema, error) {
	return r.load()
}

// LoadSchemaFile reads and validates a feature-name artifact: a JSON array
// of unique, non-empty strings in classifier column order.
func LoadSchemaFile(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Err: err}
	}
	s, err := ParseSchema(raw)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Err: err}
	}
	return s, nil
}

// ParseSchema decodes and validates feature-name artifact content.
func ParseSchema(raw []byte) (*Schema, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	compiled, err := compiledArtifactSchema()
	if err != nil {
		return nil, err
	}
	if err := compiled.Validate(parsed); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode feature names: %w", err)
	}
	return NewSchema(names)
}

var compiledArtifactSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	var def any
	if err := json.Unmarshal(featureNamesSchema, &def); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(featureNamesSchemaURL, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(featureNamesSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return compiled, nil
})
