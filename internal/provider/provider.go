package provider

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
)

var (
	_ provider.Provider = &MongodbProvider{}
)

const (
	defaultDatabase = mongodb.DefaultAuthSource

	envHosts         = "MONGO_HOSTS"
	envAdminUsername = "MONGO_INITDB_ROOT_USERNAME"
	envAdminPassword = "MONGO_INITDB_ROOT_PASSWORD"
)

type MongodbProvider struct {
	Version string
	client  *mongodb.Client
}

type MongodbProviderModel struct {
	Hosts              types.List   `tfsdk:"hosts"`
	Username           types.String `tfsdk:"username"`
	Password           types.String `tfsdk:"password"`
	AuthSource         types.String `tfsdk:"auth_source"`
	ReplicaSet         types.String `tfsdk:"replica_set"`
	TLS                types.Bool   `tfsdk:"tls"`
	Certificate        types.String `tfsdk:"certificate"`
	InsecureSkipVerify types.Bool   `tfsdk:"insecure_skip_verify"`
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &MongodbProvider{
			Version: version,
		}
	}
}

func (p *MongodbProvider) Metadata(_ context.Context, _ provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "mongodb"
	resp.Version = p.Version
}

func (p *MongodbProvider) Schema(_ context.Context, _ provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Provisions MongoDB application users",

		Attributes: map[string]schema.Attribute{
			"hosts": schema.ListAttribute{
				MarkdownDescription: "MongoDB hosts. Defaults to the comma separated `" + envHosts + "`",
				ElementType:         types.StringType,
				Optional:            true,
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "Administrative username. Defaults to `" + envAdminUsername + "`",
				Optional:            true,
				Sensitive:           true,
			},
			"password": schema.StringAttribute{
				MarkdownDescription: "Administrative password. Defaults to `" + envAdminPassword + "`",
				Optional:            true,
				Sensitive:           true,
			},
			"auth_source": schema.StringAttribute{
				MarkdownDescription: "AuthSource database",
				Optional:            true,
			},
			"replica_set": schema.StringAttribute{
				MarkdownDescription: "Replica set name",
				Optional:            true,
			},
			"tls": schema.BoolAttribute{
				MarkdownDescription: "Enable TLS",
				Optional:            true,
			},
			"certificate": schema.StringAttribute{
				MarkdownDescription: "Certificate PEM string",
				Optional:            true,
			},
			"insecure_skip_verify": schema.BoolAttribute{
				MarkdownDescription: "Insecure TLS",
				Optional:            true,
			},
		},
	}
}

// clientOptions fills unset connection attributes from getenv.
func (m *MongodbProviderModel) clientOptions(ctx context.Context, getenv func(string) string) (*mongodb.ClientOptions, diag.Diagnostics) {
	var diags diag.Diagnostics

	var hosts []string

	if !m.Hosts.IsNull() && !m.Hosts.IsUnknown() {
		diags.Append(m.Hosts.ElementsAs(ctx, &hosts, false)...)
		if diags.HasError() {
			return nil, diags
		}
	}

	if len(hosts) == 0 {
		for _, host := range strings.Split(getenv(envHosts), ",") {
			if host = strings.TrimSpace(host); host != "" {
				hosts = append(hosts, host)
			}
		}
	}

	if len(hosts) == 0 {
		diags.AddAttributeError(
			path.Root("hosts"),
			"Missing MongoDB hosts",
			"Set the hosts attribute or the "+envHosts+" environment variable.",
		)
	}

	username := stringOrEnv(m.Username, envAdminUsername, getenv)
	if username == "" {
		diags.AddAttributeError(
			path.Root("username"),
			"Missing MongoDB username",
			"Set the username attribute or the "+envAdminUsername+" environment variable.",
		)
	}

	password := stringOrEnv(m.Password, envAdminPassword, getenv)
	if password == "" {
		diags.AddAttributeError(
			path.Root("password"),
			"Missing MongoDB password",
			"Set the password attribute or the "+envAdminPassword+" environment variable.",
		)
	}

	if diags.HasError() {
		return nil, diags
	}

	authSource := m.AuthSource.ValueString()
	if authSource == "" {
		authSource = defaultDatabase
	}

	return &mongodb.ClientOptions{
		Hosts:              hosts,
		Username:           username,
		Password:           password,
		AuthSource:         authSource,
		ReplicaSet:         m.ReplicaSet.ValueString(),
		TLS:                m.TLS.ValueBool(),
		Certificate:        m.Certificate.ValueString(),
		InsecureSkipVerify: m.InsecureSkipVerify.ValueBool(),
	}, diags
}

func stringOrEnv(v types.String, key string, getenv func(string) string) string {
	if !v.IsNull() && !v.IsUnknown() && v.ValueString() != "" {
		return v.ValueString()
	}

	return getenv(key)
}

func (p *MongodbProvider) Configure(
	ctx context.Context,
	req provider.ConfigureRequest,
	resp *provider.ConfigureResponse,
) {
	var data MongodbProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)

	if resp.Diagnostics.HasError() {
		return
	}

	options, diags := data.clientOptions(ctx, os.Getenv)
	resp.Diagnostics.Append(diags...)

	if resp.Diagnostics.HasError() {
		return
	}

	ctx = tflog.SetField(ctx, "mongodb_hosts", options.Hosts)
	ctx = tflog.MaskFieldValuesWithFieldKeys(ctx, "password")

	var err error

	p.client, err = mongodb.New(ctx, options)
	if err != nil {
		resp.Diagnostics.AddError(
			"Failed to connect to MongoDB",
			err.Error(),
		)

		return
	}

	tflog.Info(ctx, "Connected to MongoDB")

	resp.ResourceData = p.client
	resp.DataSourceData = p.client
}

func (p *MongodbProvider) DataSources(_ context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewUserDataSource,
	}
}

func (p *MongodbProvider) Resources(_ context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewUserResource,
	}
}
