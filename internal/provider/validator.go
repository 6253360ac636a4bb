package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

const (
	externalDatabase = "$external"
)

var _ resource.ConfigValidator = userPasswordValidator{}

type userPasswordValidator struct{}

func (v userPasswordValidator) Description(ctx context.Context) string {
	return v.MarkdownDescription(ctx)
}

func (v userPasswordValidator) MarkdownDescription(_ context.Context) string {
	return fmt.Sprintf("Password must be empty for %q database. "+
		"For other databases password must be set.", externalDatabase)
}

func (v userPasswordValidator) ValidateResource(
	ctx context.Context,
	req resource.ValidateConfigRequest,
	resp *resource.ValidateConfigResponse,
) {
	var database, password types.String

	resp.Diagnostics.Append(req.Config.GetAttribute(ctx, path.Root("database"), &database)...)
	resp.Diagnostics.Append(req.Config.GetAttribute(ctx, path.Root("password"), &password)...)

	if resp.Diagnostics.HasError() {
		return
	}

	// Values coming from other resources are checked at apply time.
	if database.IsUnknown() || password.IsUnknown() {
		return
	}

	external := database.ValueString() == externalDatabase

	if !external && password.ValueString() == "" {
		resp.Diagnostics.Append(diag.NewAttributeErrorDiagnostic(
			path.Root("password"),
			"Invalid user configuration",
			v.Description(ctx),
		))

		return
	}

	if external && password.ValueString() != "" {
		resp.Diagnostics.Append(diag.NewAttributeErrorDiagnostic(
			path.Root("password"),
			"Invalid user configuration",
			v.Description(ctx),
		))

		return
	}
}
