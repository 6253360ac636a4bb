package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

var _ resource.Resource = &UserResource{}
var _ resource.ResourceWithConfigure = &UserResource{}
var _ resource.ResourceWithImportState = &UserResource{}
var _ resource.ResourceWithConfigValidators = &UserResource{}

func NewUserResource() resource.Resource {
	return &UserResource{}
}

// userClient is the part of *mongodb.Client the user resource and data source use.
type userClient interface {
	Provision(ctx context.Context, record *provisioning.Record, opts mongodb.ProvisionOptions) (*mongodb.User, error)
	UpsertUser(ctx context.Context, user *mongodb.User) (*mongodb.User, error)
	GetUser(ctx context.Context, options *mongodb.GetUserOptions) (*mongodb.User, error)
	DeleteUser(ctx context.Context, options *mongodb.DeleteUserOptions) error
}

var _ userClient = &mongodb.Client{}

type UserResource struct {
	client userClient
}

type UserResourceModel struct {
	ID          types.String `tfsdk:"id"`
	Database    types.String `tfsdk:"database"`
	Username    types.String `tfsdk:"username"`
	Password    types.String `tfsdk:"password"`
	Roles       types.List   `tfsdk:"roles"`
	VerifyRoles types.Bool   `tfsdk:"verify_roles"`
}

func userID(database, username string) string {
	return database + "." + username
}

// parseUserID splits on the first dot: database names cannot contain one, usernames can.
func parseUserID(id string) (string, string, error) {
	database, username, ok := strings.Cut(id, ".")
	if !ok || database == "" || username == "" {
		return "", "", fmt.Errorf("expected import identifier with format: <database>.<username>. Got: %q", id)
	}

	return database, username, nil
}

func (m *UserResourceModel) roleNames(ctx context.Context) ([]string, diag.Diagnostics) {
	var roles []string
	d := m.Roles.ElementsAs(ctx, &roles, false)

	return roles, d
}

// toUser returns the record to provision, or nil for $external users which carry no password.
func (m *UserResourceModel) toUser(ctx context.Context) (*mongodb.User, *provisioning.Record, diag.Diagnostics) {
	roles, diags := m.roleNames(ctx)
	if diags.HasError() {
		return nil, nil, diags
	}

	database := m.Database.ValueString()

	if database == externalDatabase {
		user := &mongodb.User{
			Username: m.Username.ValueString(),
			Database: database,
		}

		for _, role := range roles {
			user.Roles = append(user.Roles, mongodb.ShortRole{Role: role, DB: database})
		}

		return user, nil, diags
	}

	record, err := provisioning.NewRecord(database, m.Username.ValueString(), m.Password.ValueString(), roles...)
	if err != nil {
		diags.AddError("Invalid user configuration", err.Error())
		return nil, nil, diags
	}

	return mongodb.UserFromRecord(record), record, diags
}

// updateState keeps the configured role order when the server reports the same roles.
func (m *UserResourceModel) updateState(ctx context.Context, user *mongodb.User) diag.Diagnostics {
	m.ID = types.StringValue(userID(user.Database, user.Username))
	m.Database = types.StringValue(user.Database)
	m.Username = types.StringValue(user.Username)

	names := user.Roles.Names()

	if !m.Roles.IsNull() && !m.Roles.IsUnknown() {
		prior, d := m.roleNames(ctx)
		if d.HasError() {
			return d
		}

		if sameRoles(prior, names) {
			return nil
		}
	}

	roles, d := types.ListValueFrom(ctx, types.StringType, names)
	m.Roles = roles

	return d
}

func sameRoles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[string]int, len(a))
	for _, role := range a {
		counts[role]++
	}

	for _, role := range b {
		if counts[role] == 0 {
			return false
		}

		counts[role]--
	}

	return true
}

func (r *UserResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (r *UserResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Database user created on `database` with every role in `roles` granted on that database",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"database": schema.StringAttribute{
				MarkdownDescription: "Target database. The user is created here and every role is granted on it",
				Required:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
					stringvalidator.NoneOfCaseInsensitive("local", "config"),
				},
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "Username",
				Required:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"password": schema.StringAttribute{
				MarkdownDescription: fmt.Sprintf("Password. Must be empty for %q users", externalDatabase),
				Optional:            true,
				Sensitive:           true,
			},
			"roles": schema.ListAttribute{
				MarkdownDescription: "Roles granted on `database`, in order",
				ElementType:         types.StringType,
				Required:            true,
				Validators: []validator.List{
					listvalidator.SizeAtLeast(1),
					listvalidator.UniqueValues(),
					listvalidator.ValueStringsAre(stringvalidator.LengthAtLeast(1)),
				},
			},
			"verify_roles": schema.BoolAttribute{
				MarkdownDescription: "Check that every role exists with rolesInfo before creating the user",
				Optional:            true,
			},
		},
	}
}

func (r *UserResource) ConfigValidators(_ context.Context) []resource.ConfigValidator {
	return []resource.ConfigValidator{
		userPasswordValidator{},
	}
}

func (r *UserResource) Configure(_ context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}

	client, ok := req.ProviderData.(userClient)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Resource Configure Type",
			fmt.Sprintf("Expected *mongodb.Client, got: %T. "+
				"Please report this issue to the provider developers.", req.ProviderData),
		)

		return
	}

	r.client = client
}

func (r *UserResource) provision(ctx context.Context, plan *UserResourceModel) diag.Diagnostics {
	user, record, diags := plan.toUser(ctx)
	if diags.HasError() {
		return diags
	}

	var err error

	if record != nil {
		user, err = r.client.Provision(ctx, record, mongodb.ProvisionOptions{
			Upsert:      true,
			VerifyRoles: plan.VerifyRoles.ValueBool(),
		})
	} else {
		user, err = r.client.UpsertUser(ctx, user)
	}

	if err != nil {
		diags.AddError(
			"failed to upsert user",
			err.Error(),
		)

		return diags
	}

	diags.Append(plan.updateState(ctx, user)...)

	return diags
}

func (r *UserResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	if !r.checkClient(&resp.Diagnostics) {
		return
	}

	var plan UserResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(r.provision(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Trace(ctx, "user created")
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *UserResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	if !r.checkClient(&resp.Diagnostics) {
		return
	}

	var state UserResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	user, err := r.client.GetUser(ctx, &mongodb.GetUserOptions{
		Username: state.Username.ValueString(),
		Database: state.Database.ValueString(),
	})
	if err != nil {
		if !mongodb.IsNotFound(err) {
			resp.Diagnostics.AddError(
				"failed to get user",
				err.Error(),
			)

			return
		}

		tflog.Debug(ctx, "user not found, removing from state")
		resp.State.RemoveResource(ctx)

		return
	}

	resp.Diagnostics.Append(state.updateState(ctx, user)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

func (r *UserResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	if !r.checkClient(&resp.Diagnostics) {
		return
	}

	var plan UserResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(r.provision(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Trace(ctx, "user updated")
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *UserResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	if !r.checkClient(&resp.Diagnostics) {
		return
	}

	var state UserResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	err := r.client.DeleteUser(ctx, &mongodb.DeleteUserOptions{
		Username: state.Username.ValueString(),
		Database: state.Database.ValueString(),
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"failed to delete user",
			err.Error(),
		)

		return
	}

	tflog.Trace(ctx, "user deleted")
	resp.State.RemoveResource(ctx)
}

func (r *UserResource) ImportState(
	ctx context.Context,
	req resource.ImportStateRequest,
	resp *resource.ImportStateResponse,
) {
	database, username, err := parseUserID(req.ID)
	if err != nil {
		resp.Diagnostics.AddError(
			"Unexpected Import Identifier",
			err.Error(),
		)

		return
	}

	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), req.ID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("database"), database)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("username"), username)...)
}

func (r *UserResource) checkClient(diags *diag.Diagnostics) bool {
	if r.client == nil {
		diags.AddError(
			"MongoDB client is not configured",
			"Expected configured MongoDB client. Please report this issue to the provider developers.",
		)

		return false
	}

	return true
}
