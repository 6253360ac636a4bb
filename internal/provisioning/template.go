package provisioning

import (
	"errors"
	"fmt"
	"sort"
)

const (
	RoleRead      = "read"
	RoleReadWrite = "readWrite"
	RoleDBAdmin   = "dbAdmin"
)

type Template struct {
	Name        string
	Description string

	Database Value
	Username Value
	Password Value
	Roles    []string
}

var builtinTemplates = map[string]Template{
	"app": {
		Name:        "app",
		Description: "application user with readWrite on $" + EnvDatabaseName,
		Database:    FromEnv(EnvDatabaseName),
		Username:    FromEnv(EnvAppUsername),
		Password:    FromEnv(EnvAppPassword),
		Roles:       []string{RoleReadWrite},
	},
	"app-admin": {
		Name:        "app-admin",
		Description: "application user with readWrite and dbAdmin on url_shortener; username and password are read from $" + EnvAppUsername + " and $" + EnvAppPassword + ", not used as literal values",
		Database:    Literal("url_shortener"),
		Username:    FromEnv(EnvAppUsername),
		Password:    FromEnv(EnvAppPassword),
		Roles:       []string{RoleReadWrite, RoleDBAdmin},
	},
	"example": {
		Name:        "example",
		Description: "example user with readWrite on example-db",
		Database:    Literal("example-db"),
		Username:    Literal("example-user"),
		Password:    Literal("example-password"),
		Roles:       []string{RoleReadWrite},
	},
}

func Templates() []Template {
	out := make([]Template, 0, len(builtinTemplates))
	for _, t := range builtinTemplates {
		out = append(out, t.clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func TemplateByName(name string) (Template, error) {
	t, ok := builtinTemplates[name]
	if !ok {
		return Template{}, UnknownTemplateError{Name: name}
	}

	return t.clone(), nil
}

// Build resolves every value through lookup and grants each role on the resolved database.
func (t Template) Build(lookup Lookup) (*Record, error) {
	var errs []error

	resolve := func(field string, v Value) string {
		s, err := v.Resolve(lookup)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}

		return s
	}

	database := resolve("database", t.Database)
	username := resolve("username", t.Username)
	password := resolve("password", t.Password)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("template %s: %w", t.Name, err)
	}

	record, err := NewRecord(database, username, password, t.Roles...)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.Name, err)
	}

	return record, nil
}

func (t Template) clone() Template {
	t.Roles = append([]string(nil), t.Roles...)
	return t
}
