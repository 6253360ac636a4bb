package mongodb

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

type ProvisionOptions struct {
	// Upsert updates an existing user instead of failing on it.
	Upsert bool
	// VerifyRoles checks every granted role with rolesInfo before creating the user.
	VerifyRoles bool
}

// Provision creates the user described by record on its target database.
func (c *Client) Provision(ctx context.Context, record *provisioning.Record, opts ProvisionOptions) (*User, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provisioning record: %w", err)
	}

	tflog.Info(ctx, "Provisioning user", map[string]interface{}{
		"username": record.Username,
		"db":       record.TargetDatabase,
		"roles":    record.RoleNames(),
		"upsert":   opts.Upsert,
	})

	if opts.VerifyRoles {
		for _, grant := range record.Grants {
			_, err := c.GetRole(ctx, &GetRoleOptions{
				Name:     grant.Role,
				Database: grant.Database,
			})
			if err != nil {
				return nil, fmt.Errorf("verifying role %s: %w", grant, err)
			}
		}
	}

	user := UserFromRecord(record)

	if opts.Upsert {
		return c.UpsertUser(ctx, user)
	}

	if err := c.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	created := *user
	created.Password = ""

	return &created, nil
}
