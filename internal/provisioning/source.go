package provisioning

import (
	"os"
)

const (
	EnvDatabaseName = "MONGO_DB_NAME"
	EnvAppUsername  = "MONGO_APP_USERNAME"
	EnvAppPassword  = "MONGO_APP_PASSWORD"
)

type Lookup func(key string) (string, bool)

func EnvLookup() Lookup {
	return os.LookupEnv
}

func MapLookup(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// ChainLookup returns the first lookup hit. Nil lookups are skipped.
func ChainLookup(lookups ...Lookup) Lookup {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}

			if v, ok := lookup(key); ok {
				return v, true
			}
		}

		return "", false
	}
}

// Value is either a literal or the name of a key resolved through a Lookup.
type Value struct {
	Literal string
	Key     string
}

func Literal(s string) Value {
	return Value{Literal: s}
}

func FromEnv(key string) Value {
	return Value{Key: key}
}

func (v Value) IsLiteral() bool {
	return v.Key == ""
}

func (v Value) Resolve(lookup Lookup) (string, error) {
	if v.IsLiteral() {
		return v.Literal, nil
	}

	if lookup == nil {
		return "", MissingValueError{Key: v.Key}
	}

	s, ok := lookup(v.Key)
	if !ok {
		return "", MissingValueError{Key: v.Key}
	}

	if s == "" {
		return "", EmptyValueError{Key: v.Key}
	}

	return s, nil
}

func (v Value) String() string {
	if v.IsLiteral() {
		return v.Literal
	}

	return "$" + v.Key
}
