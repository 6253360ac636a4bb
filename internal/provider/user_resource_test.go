package provider

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
)

func userConfig(t *testing.T, database, password tftypes.Value) tfsdk.Config {
	t.Helper()

	ctx := context.Background()

	resp := &resource.SchemaResponse{}
	NewUserResource().Schema(ctx, resource.SchemaRequest{}, resp)
	require.False(t, resp.Diagnostics.HasError())

	raw := tftypes.NewValue(resp.Schema.Type().TerraformType(ctx), map[string]tftypes.Value{
		"id":       tftypes.NewValue(tftypes.String, nil),
		"database": database,
		"username": tftypes.NewValue(tftypes.String, "app"),
		"password": password,
		"roles": tftypes.NewValue(tftypes.List{ElementType: tftypes.String}, []tftypes.Value{
			tftypes.NewValue(tftypes.String, "readWrite"),
		}),
		"verify_roles": tftypes.NewValue(tftypes.Bool, nil),
	})

	return tfsdk.Config{Raw: raw, Schema: resp.Schema}
}

func TestUserPasswordValidator(t *testing.T) {
	str := func(s string) tftypes.Value { return tftypes.NewValue(tftypes.String, s) }
	null := tftypes.NewValue(tftypes.String, nil)
	unknown := tftypes.NewValue(tftypes.String, tftypes.UnknownValue)

	tests := []struct {
		name     string
		database tftypes.Value
		password tftypes.Value
		wantErr  bool
	}{
		{name: "password set", database: str("url_shortener"), password: str("secret")},
		{name: "password missing", database: str("url_shortener"), password: null, wantErr: true},
		{name: "password empty", database: str("url_shortener"), password: str(""), wantErr: true},
		{name: "external without password", database: str(externalDatabase), password: null},
		{name: "external with password", database: str(externalDatabase), password: str("secret"), wantErr: true},
		{name: "unknown password", database: str("url_shortener"), password: unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := resource.ValidateConfigRequest{Config: userConfig(t, tt.database, tt.password)}
			resp := &resource.ValidateConfigResponse{}

			userPasswordValidator{}.ValidateResource(context.Background(), req, resp)

			assert.Equal(t, tt.wantErr, resp.Diagnostics.HasError(), resp.Diagnostics)
		})
	}
}

func TestParseUserID(t *testing.T) {
	database, username, err := parseUserID("url_shortener.app.v2")
	require.NoError(t, err)
	assert.Equal(t, "url_shortener", database)
	assert.Equal(t, "app.v2", username)
	assert.Equal(t, "url_shortener.app.v2", userID(database, username))

	for _, id := range []string{"", "app", ".app", "db."} {
		_, _, err := parseUserID(id)
		assert.Error(t, err, id)
	}
}

func rolesList(roles ...string) types.List {
	values := make([]attr.Value, 0, len(roles))
	for _, role := range roles {
		values = append(values, types.StringValue(role))
	}

	return types.ListValueMust(types.StringType, values)
}

func TestUserModelToUser(t *testing.T) {
	ctx := context.Background()

	model := UserResourceModel{
		Database: types.StringValue("url_shortener"),
		Username: types.StringValue("app"),
		Password: types.StringValue("secret"),
		Roles:    rolesList("readWrite", "dbAdmin"),
	}

	user, record, diags := model.toUser(ctx)
	require.False(t, diags.HasError())
	require.NotNil(t, record)

	assert.Equal(t, "url_shortener", record.TargetDatabase)
	assert.Equal(t, []string{"readWrite", "dbAdmin"}, record.RoleNames())
	assert.Equal(t, mongodb.ShortRoles{
		{Role: "readWrite", DB: "url_shortener"},
		{Role: "dbAdmin", DB: "url_shortener"},
	}, user.Roles)
}

func TestUserModelToUserExternal(t *testing.T) {
	model := UserResourceModel{
		Database: types.StringValue(externalDatabase),
		Username: types.StringValue("CN=app"),
		Password: types.StringNull(),
		Roles:    rolesList("readWrite"),
	}

	user, record, diags := model.toUser(context.Background())
	require.False(t, diags.HasError())

	assert.Nil(t, record)
	assert.Empty(t, user.Password)
	assert.Equal(t, mongodb.ShortRoles{{Role: "readWrite", DB: externalDatabase}}, user.Roles)
}

func TestUserModelToUserInvalid(t *testing.T) {
	model := UserResourceModel{
		Database: types.StringValue("db"),
		Username: types.StringValue("app"),
		Password: types.StringValue(""),
		Roles:    rolesList("readWrite"),
	}

	_, _, diags := model.toUser(context.Background())
	assert.True(t, diags.HasError())
}

func TestUserModelUpdateStateKeepsOrder(t *testing.T) {
	ctx := context.Background()

	model := UserResourceModel{Roles: rolesList("readWrite", "dbAdmin")}

	diags := model.updateState(ctx, &mongodb.User{
		Username: "app",
		Database: "db",
		Roles:    mongodb.ShortRoles{{Role: "dbAdmin", DB: "db"}, {Role: "readWrite", DB: "db"}},
	})
	require.False(t, diags.HasError())

	assert.Equal(t, "db.app", model.ID.ValueString())
	assert.True(t, model.Roles.Equal(rolesList("readWrite", "dbAdmin")))

	diags = model.updateState(ctx, &mongodb.User{
		Username: "app",
		Database: "db",
		Roles:    mongodb.ShortRoles{{Role: "read", DB: "db"}},
	})
	require.False(t, diags.HasError())
	assert.True(t, model.Roles.Equal(rolesList("read")))
}
