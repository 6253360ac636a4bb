package provisioning

import (
	"fmt"
)

type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MissingValueError is returned when a value is sourced from a key the lookup does not know.
type MissingValueError struct {
	Key string
}

func (e MissingValueError) Error() string {
	return fmt.Sprintf("%s is not set", e.Key)
}

type EmptyValueError struct {
	Key string
}

func (e EmptyValueError) Error() string {
	return fmt.Sprintf("%s is set but empty", e.Key)
}

type UnknownTemplateError struct {
	Name string
}

func (e UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q", e.Name)
}
