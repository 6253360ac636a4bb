package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

type fakeProvisioner struct {
	options *mongodb.ClientOptions
	records []*provisioning.Record
	opts    []mongodb.ProvisionOptions
	deleted []*mongodb.DeleteUserOptions
	closed  bool
	err     error

	// waitForDeadline makes Provision block until the command context expires.
	waitForDeadline bool
	closeCtxErr     error
}

func (f *fakeProvisioner) Provision(ctx context.Context, record *provisioning.Record, opts mongodb.ProvisionOptions) (*mongodb.User, error) {
	if f.waitForDeadline {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if f.err != nil {
		return nil, f.err
	}

	f.records = append(f.records, record)
	f.opts = append(f.opts, opts)

	user := mongodb.UserFromRecord(record)
	user.Password = ""

	return user, nil
}

func (f *fakeProvisioner) DeleteUser(_ context.Context, options *mongodb.DeleteUserOptions) error {
	f.deleted = append(f.deleted, options)
	return f.err
}

func (f *fakeProvisioner) Close(ctx context.Context) error {
	f.closed = true
	f.closeCtxErr = ctx.Err()
	return nil
}

func (f *fakeProvisioner) connect(_ context.Context, options *mongodb.ClientOptions) (userProvisioner, error) {
	f.options = options
	return f, nil
}

var appEnv = map[string]string{
	provisioning.EnvDatabaseName: "url_shortener",
	provisioning.EnvAppUsername:  "shortener",
	provisioning.EnvAppPassword:  "s3cret",
}

func run(t *testing.T, fake *fakeProvisioner, env map[string]string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(fake.connect, provisioning.MapLookup(env))

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), err
}

func TestProvisionFromEnvironment(t *testing.T) {
	t.Setenv("MONGO_HOSTS", "mongo-0:27017,mongo-1:27017")
	t.Setenv("MONGO_INITDB_ROOT_USERNAME", "root")
	t.Setenv("MONGO_INITDB_ROOT_PASSWORD", "example")

	fake := &fakeProvisioner{}

	_, err := run(t, fake, appEnv, "provision")
	require.NoError(t, err)

	require.Len(t, fake.records, 1)
	record := fake.records[0]

	assert.Equal(t, "url_shortener", record.TargetDatabase)
	assert.Equal(t, "shortener", record.Username)
	assert.Equal(t, "s3cret", record.Password)
	assert.Equal(t, []provisioning.RoleGrant{{Role: "readWrite", Database: "url_shortener"}}, record.Grants)
	assert.Equal(t, mongodb.ProvisionOptions{}, fake.opts[0])

	assert.Equal(t, []string{"mongo-0:27017", "mongo-1:27017"}, fake.options.Hosts)
	assert.Equal(t, "root", fake.options.Username)
	assert.Equal(t, "example", fake.options.Password)
	assert.Equal(t, mongodb.DefaultAuthSource, fake.options.AuthSource)
	assert.True(t, fake.closed)
}

func TestProvisionAppAdminTemplate(t *testing.T) {
	fake := &fakeProvisioner{}

	_, err := run(t, fake, appEnv, "provision", "--template", "app-admin", "--upsert", "--verify-roles")
	require.NoError(t, err)

	require.Len(t, fake.records, 1)
	assert.Equal(t, []provisioning.RoleGrant{
		{Role: "readWrite", Database: "url_shortener"},
		{Role: "dbAdmin", Database: "url_shortener"},
	}, fake.records[0].Grants)
	assert.Equal(t, mongodb.ProvisionOptions{Upsert: true, VerifyRoles: true}, fake.opts[0])
}

func TestProvisionFlagsOverrideTemplate(t *testing.T) {
	fake := &fakeProvisioner{}

	_, err := run(t, fake, nil,
		"provision",
		"--template", "example",
		"--database", "reports",
		"--username", "reporter",
		"--role", "read",
		"--role", "dbAdmin",
		"--hosts", "localhost:27017",
	)
	require.NoError(t, err)

	record := fake.records[0]
	assert.Equal(t, "reports", record.TargetDatabase)
	assert.Equal(t, "reporter", record.Username)
	assert.Equal(t, "example-password", record.Password)
	assert.Equal(t, []string{"read", "dbAdmin"}, record.RoleNames())
	assert.Equal(t, []string{"localhost:27017"}, fake.options.Hosts)
}

func TestProvisionMissingEnvironment(t *testing.T) {
	fake := &fakeProvisioner{}

	_, err := run(t, fake, map[string]string{provisioning.EnvDatabaseName: "db"}, "provision")
	require.Error(t, err)

	assert.Contains(t, err.Error(), provisioning.EnvAppUsername)
	assert.Contains(t, err.Error(), provisioning.EnvAppPassword)
	assert.Nil(t, fake.options)
}

func TestProvisionSurfacesServerError(t *testing.T) {
	fake := &fakeProvisioner{err: mongodb.AlreadyExistsError{Username: "shortener", Database: "url_shortener"}}

	_, err := run(t, fake, appEnv, "provision")
	require.Error(t, err)

	assert.ErrorAs(t, err, &mongodb.AlreadyExistsError{})
	assert.True(t, fake.closed)
}

func TestProvisionDryRun(t *testing.T) {
	fake := &fakeProvisioner{}

	out, err := run(t, fake, appEnv, "provision", "--template", "app-admin", "--dry-run")
	require.NoError(t, err)

	assert.Nil(t, fake.options)
	assert.Contains(t, out, "use url_shortener")
	assert.Contains(t, out, `"createUser": "shortener"`)
	assert.Contains(t, out, `"role": "dbAdmin"`)
	assert.NotContains(t, out, "s3cret")
}

func TestProvisionValuesFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mongo-init.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
hosts:
  - db.internal:27017
replica-set: rs0
values:
  MONGO_DB_NAME: inventory
  MONGO_APP_USERNAME: inventory-svc
  MONGO_APP_PASSWORD: from-file
`), 0o600))

	fake := &fakeProvisioner{}

	_, err := run(t, fake, map[string]string{provisioning.EnvAppPassword: "from-env"}, "provision", "--config", path)
	require.NoError(t, err)

	record := fake.records[0]
	assert.Equal(t, "inventory", record.TargetDatabase)
	assert.Equal(t, "inventory-svc", record.Username)
	assert.Equal(t, "from-env", record.Password)
	assert.Equal(t, []string{"db.internal:27017"}, fake.options.Hosts)
	assert.Equal(t, "rs0", fake.options.ReplicaSet)
}

func TestProvisionMissingConfigFile(t *testing.T) {
	_, err := run(t, &fakeProvisioner{}, appEnv, "provision", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProvisionDisconnectsAfterTimeout(t *testing.T) {
	fake := &fakeProvisioner{waitForDeadline: true}

	_, err := run(t, fake, appEnv, "provision", "--timeout", "10ms")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.True(t, fake.closed)
	assert.NoError(t, fake.closeCtxErr)
}

func TestTimeoutMustBePositive(t *testing.T) {
	for _, timeout := range []string{"0s", "-1s"} {
		fake := &fakeProvisioner{}

		_, err := run(t, fake, appEnv, "provision", "--timeout="+timeout)
		require.Error(t, err)

		assert.Contains(t, err.Error(), "timeout must be positive")
		assert.Nil(t, fake.options)
	}
}

func TestExecuteLogsFailure(t *testing.T) {
	fake := &fakeProvisioner{err: mongodb.AlreadyExistsError{Username: "shortener", Database: "url_shortener"}}
	a := newApp(fake.connect, provisioning.MapLookup(appEnv))

	var stderr bytes.Buffer
	code := a.execute(context.Background(), []string{"provision", "--log-json"}, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), `"@level":"error"`)
	assert.Contains(t, stderr.String(), `"@message":"command failed"`)
	assert.Contains(t, stderr.String(), "user shortener already exists on url_shortener")
	assert.NotContains(t, stderr.String(), "Error:")
}

func TestExecuteReportsEarlyFailure(t *testing.T) {
	fake := &fakeProvisioner{}
	a := newApp(fake.connect, provisioning.MapLookup(appEnv))

	var stderr bytes.Buffer
	code := a.execute(context.Background(), []string{"provision", "--no-such-flag"}, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error: unknown flag: --no-such-flag")
}

func TestExecuteSuccess(t *testing.T) {
	fake := &fakeProvisioner{}
	a := newApp(fake.connect, provisioning.MapLookup(appEnv))

	var stderr bytes.Buffer
	assert.Equal(t, 0, a.execute(context.Background(), []string{"provision"}, &stderr))
	assert.Len(t, fake.records, 1)
}

func TestDeprovision(t *testing.T) {
	fake := &fakeProvisioner{}

	_, err := run(t, fake, nil, "deprovision", "--database", "url_shortener", "--username", "shortener")
	require.NoError(t, err)

	require.Len(t, fake.deleted, 1)
	assert.Equal(t, &mongodb.DeleteUserOptions{Username: "shortener", Database: "url_shortener"}, fake.deleted[0])
}

func TestTemplates(t *testing.T) {
	out, err := run(t, &fakeProvisioner{}, nil, "templates")
	require.NoError(t, err)

	assert.Contains(t, out, "app-admin")
	assert.Contains(t, out, "$MONGO_DB_NAME")
	assert.Contains(t, out, "example-db")
	assert.Contains(t, out, "not used as literal values")
}

func TestSplitHosts(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, splitHosts([]string{"a:1, b:2", "", "c:3"}))
	assert.Nil(t, splitHosts(nil))
}
