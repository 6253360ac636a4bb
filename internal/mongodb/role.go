package mongodb

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const getRoleCmd = "rolesInfo"

type GetRoleOptions struct {
	Name     string
	Database string
}

// GetRole looks up a role on options.Database. Built-in roles are reported too.
func (c *Client) GetRole(ctx context.Context, options *GetRoleOptions) (*Role, error) {
	tflog.Debug(ctx, "GetRole", map[string]interface{}{
		"role": options.Name,
		"db":   options.Database,
	})

	command := bson.D{
		{Key: getRoleCmd, Value: options.Name},
	}

	result := struct {
		Result `bson:",inline"`
		Roles  []Role `bson:"roles"`
	}{}

	err := c.runCommand(ctx, options.Database, command, &result)
	if err != nil {
		return nil, err
	}

	if result.Ok != 1 {
		return nil, FailedCommandError{getRoleCmd}
	}

	roleCount := len(result.Roles)

	switch {
	case roleCount == 0:
		return nil, NewNotFoundError("role", options.Name)
	case roleCount > 1:
		return nil, TooManyError{"role"}
	}

	return &result.Roles[0], nil
}
