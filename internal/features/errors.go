package features

import "fmt"

// SchemaLoadError indicates the feature-name artifact could not be read or
// is malformed. The pipeline cannot run without it.
type SchemaLoadError struct {
	Path string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load feature schema %s: %v", e.Path, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// InvalidInputError indicates a raw input value outside its declared domain.
type InvalidInputError struct {
	Field string
	Value any
	Err   error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// SchemaMismatchError indicates the builder tried to write a feature the
// schema does not define. It is a programming defect, never a user error.
type SchemaMismatchError struct {
	Feature string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature %q is not defined by the schema", e.Feature)
}
