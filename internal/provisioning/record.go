// Package provisioning builds the user records submitted to MongoDB's createUser command.
package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

const redactedPassword = "******"

type RoleGrant struct {
	Role     string
	Database string
}

func (g RoleGrant) String() string {
	return g.Role + "@" + g.Database
}

// Record is built once per invocation and consumed by a single provisioning call.
type Record struct {
	TargetDatabase string
	Username       string
	Password       string
	Grants         []RoleGrant
}

// NewRecord grants every role on database and validates the result.
func NewRecord(database, username, password string, roles ...string) (*Record, error) {
	record := &Record{
		TargetDatabase: database,
		Username:       username,
		Password:       password,
		Grants:         make([]RoleGrant, 0, len(roles)),
	}

	for _, role := range roles {
		record.Grants = append(record.Grants, RoleGrant{Role: role, Database: database})
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *Record) Validate() error {
	var errs []error

	if strings.TrimSpace(r.TargetDatabase) == "" {
		errs = append(errs, InvalidRecordError{Field: "database", Reason: "must not be empty"})
	}

	if strings.TrimSpace(r.Username) == "" {
		errs = append(errs, InvalidRecordError{Field: "username", Reason: "must not be empty"})
	}

	if strings.TrimSpace(r.Password) == "" {
		errs = append(errs, InvalidRecordError{Field: "password", Reason: "must not be empty"})
	}

	if len(r.Grants) == 0 {
		errs = append(errs, InvalidRecordError{Field: "roles", Reason: "at least one role grant is required"})
	}

	seen := make(map[RoleGrant]struct{}, len(r.Grants))

	for i, grant := range r.Grants {
		field := fmt.Sprintf("roles[%d]", i)

		if strings.TrimSpace(grant.Role) == "" {
			errs = append(errs, InvalidRecordError{Field: field, Reason: "role name must not be empty"})
		}

		if grant.Database != r.TargetDatabase {
			errs = append(errs, InvalidRecordError{
				Field:  field,
				Reason: fmt.Sprintf("granted on %q, expected %q", grant.Database, r.TargetDatabase),
			})
		}

		if _, ok := seen[grant]; ok {
			errs = append(errs, InvalidRecordError{Field: field, Reason: "duplicate grant " + grant.String()})
		}

		seen[grant] = struct{}{}
	}

	return errors.Join(errs...)
}

func (r *Record) RoleNames() []string {
	names := make([]string, 0, len(r.Grants))
	for _, grant := range r.Grants {
		names = append(names, grant.Role)
	}

	return names
}

// Redacted returns a copy that is safe to log.
func (r *Record) Redacted() Record {
	out := *r
	out.Grants = append([]RoleGrant(nil), r.Grants...)

	if out.Password != "" {
		out.Password = redactedPassword
	}

	return out
}

func (r *Record) String() string {
	grants := make([]string, 0, len(r.Grants))
	for _, grant := range r.Grants {
		grants = append(grants, grant.String())
	}

	return fmt.Sprintf("user %q on %q roles [%s]", r.Username, r.TargetDatabase, strings.Join(grants, ", "))
}
