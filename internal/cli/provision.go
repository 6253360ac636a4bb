package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

type provisionFlags struct {
	template    string
	database    string
	username    string
	password    string
	roles       []string
	upsert      bool
	verifyRoles bool
	dryRun      bool
}

func newProvisionCommand(a *app) *cobra.Command {
	f := &provisionFlags{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a user on the target database with its role grants",
		Long: `Create a user on the target database with its role grants.

The template supplies the database, credentials and roles. Template values that
name a variable are read from the environment first, then from the "values"
section of the config file. --database, --username, --password and --role
replace the template's values.`,
		Example: `  MONGO_DB_NAME=url_shortener MONGO_APP_USERNAME=app MONGO_APP_PASSWORD=secret \
    mongo-init provision --template app
  mongo-init provision --template app-admin --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := f.record(cmd, a.lookup)
			if err != nil {
				return err
			}

			a.logger.Info("provisioning record built",
				"template", f.template,
				"username", record.Username,
				"db", record.TargetDatabase,
				"roles", record.RoleNames(),
			)

			if f.dryRun {
				return printCommand(cmd, record)
			}

			return a.withClient(cmd.Context(), func(ctx context.Context, client userProvisioner) error {
				user, err := client.Provision(ctx, record, mongodb.ProvisionOptions{
					Upsert:      f.upsert,
					VerifyRoles: f.verifyRoles,
				})
				if err != nil {
					return fmt.Errorf("provisioning %s: %w", record, err)
				}

				a.logger.Info("user provisioned", "username", user.Username, "db", user.Database, "roles", user.Roles.Names())

				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.template, "template", "t", "app", "provisioning template, see 'mongo-init templates'")
	flags.StringVar(&f.database, "database", "", "target database, overrides the template")
	flags.StringVar(&f.username, "username", "", "username, overrides the template")
	flags.StringVar(&f.password, "password", "", "password, overrides the template")
	flags.StringSliceVar(&f.roles, "role", nil, "role granted on the target database, repeatable, overrides the template")
	flags.BoolVar(&f.upsert, "upsert", false, "update the user when it already exists")
	flags.BoolVar(&f.verifyRoles, "verify-roles", false, "check every role exists before creating the user")
	flags.BoolVar(&f.dryRun, "dry-run", false, "print the createUser command without running it")

	return cmd
}

func (f *provisionFlags) record(cmd *cobra.Command, lookup provisioning.Lookup) (*provisioning.Record, error) {
	tmpl, err := provisioning.TemplateByName(f.template)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("database") {
		tmpl.Database = provisioning.Literal(f.database)
	}

	if flags.Changed("username") {
		tmpl.Username = provisioning.Literal(f.username)
	}

	if flags.Changed("password") {
		tmpl.Password = provisioning.Literal(f.password)
	}

	if flags.Changed("role") {
		tmpl.Roles = f.roles
	}

	return tmpl.Build(lookup)
}

func printCommand(cmd *cobra.Command, record *provisioning.Record) error {
	redacted := record.Redacted()
	command := mongodb.CreateUserCommand(mongodb.UserFromRecord(&redacted))

	out, err := bson.MarshalExtJSONIndent(command, false, false, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "use %s\n%s\n", record.TargetDatabase, out)

	return err
}

func newDeprovisionCommand(a *app) *cobra.Command {
	var database, username string

	cmd := &cobra.Command{
		Use:   "deprovision",
		Short: "Drop a user from its database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(ctx context.Context, client userProvisioner) error {
				err := client.DeleteUser(ctx, &mongodb.DeleteUserOptions{
					Username: username,
					Database: database,
				})
				if err != nil {
					return fmt.Errorf("dropping user %s on %s: %w", username, database, err)
				}

				a.logger.Info("user dropped", "username", username, "db", database)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&database, "database", "", "database the user was created on")
	cmd.Flags().StringVar(&username, "username", "", "username")
	_ = cmd.MarkFlagRequired("database")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List provisioning templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "NAME\tDATABASE\tUSERNAME\tROLES\tDESCRIPTION")

			for _, t := range provisioning.Templates() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", t.Name, t.Database, t.Username, t.Roles, t.Description)
			}

			return w.Flush()
		},
	}
}
