package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
)

var _ datasource.DataSource = &UserDataSource{}
var _ datasource.DataSourceWithConfigure = &UserDataSource{}

func NewUserDataSource() datasource.DataSource {
	return &UserDataSource{}
}

type UserDataSource struct {
	client userClient
}

type UserDataSourceModel struct {
	ID         types.String `tfsdk:"id"`
	Database   types.String `tfsdk:"database"`
	Username   types.String `tfsdk:"username"`
	Roles      types.List   `tfsdk:"roles"`
	Mechanisms types.List   `tfsdk:"mechanisms"`
}

func (d *UserDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (d *UserDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads an existing database user",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed: true,
			},
			"database": schema.StringAttribute{
				MarkdownDescription: "Database the user was created on",
				Required:            true,
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "Username",
				Required:            true,
			},
			"roles": schema.ListAttribute{
				MarkdownDescription: "Names of the roles granted to the user",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"mechanisms": schema.ListAttribute{
				MarkdownDescription: "SCRAM mechanisms enabled for the user",
				ElementType:         types.StringType,
				Computed:            true,
			},
		},
	}
}

func (d *UserDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}

	client, ok := req.ProviderData.(userClient)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *mongodb.Client, got: %T. "+
				"Please report this issue to the provider developers.", req.ProviderData),
		)

		return
	}

	d.client = client
}

func (d *UserDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if d.client == nil {
		resp.Diagnostics.AddError(
			"MongoDB client is not configured",
			"Expected configured MongoDB client. Please report this issue to the provider developers.",
		)

		return
	}

	var config UserDataSourceModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	user, err := d.client.GetUser(ctx, &mongodb.GetUserOptions{
		Username: config.Username.ValueString(),
		Database: config.Database.ValueString(),
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"failed to get user",
			err.Error(),
		)

		return
	}

	config.ID = types.StringValue(userID(user.Database, user.Username))

	roles, diags := types.ListValueFrom(ctx, types.StringType, user.Roles.Names())
	resp.Diagnostics.Append(diags...)

	mechanisms, diags := types.ListValueFrom(ctx, types.StringType, user.Mechanisms)
	resp.Diagnostics.Append(diags...)

	if resp.Diagnostics.HasError() {
		return
	}

	config.Roles = roles
	config.Mechanisms = mechanisms

	resp.Diagnostics.Append(resp.State.Set(ctx, &config)...)
}
