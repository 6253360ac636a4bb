package mongodb

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

type User struct {
	Username string `bson:"user"`
	Password string `bson:"-"`

	Database   string     `bson:"db"`
	Roles      ShortRoles `bson:"roles"`
	Mechanisms []string   `bson:"mechanisms,omitempty"`
}

// UserFromRecord maps a provisioning record to a user created on its target database.
func UserFromRecord(record *provisioning.Record) *User {
	roles := make(ShortRoles, 0, len(record.Grants))
	for _, grant := range record.Grants {
		roles = append(roles, ShortRole{Role: grant.Role, DB: grant.Database})
	}

	return &User{
		Username: record.Username,
		Password: record.Password,
		Database: record.TargetDatabase,
		Roles:    roles,
	}
}

type ShortRole struct {
	Role string `bson:"role"`
	DB   string `bson:"db"`
}

type ShortRoles []ShortRole

func (r ShortRoles) Names() []string {
	names := make([]string, 0, len(r))
	for _, role := range r {
		names = append(names, role.Role)
	}

	return names
}

func (r ShortRoles) toBson() bson.A {
	out := bson.A{}

	for _, role := range r {
		out = append(out, bson.D{{Key: "role", Value: role.Role}, {Key: "db", Value: role.DB}})
	}

	return out
}

type Role struct {
	Name      string     `bson:"role"`
	Database  string     `bson:"db"`
	IsBuiltin bool       `bson:"isBuiltin"`
	Roles     ShortRoles `bson:"roles"`
}

type Result struct {
	Ok int `bson:"ok"`
}
