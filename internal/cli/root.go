// Package cli implements mongo-init, a one-shot command that provisions MongoDB
// application users from environment variables, a config file or flags.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

type userProvisioner interface {
	Provision(ctx context.Context, record *provisioning.Record, opts mongodb.ProvisionOptions) (*mongodb.User, error)
	DeleteUser(ctx context.Context, options *mongodb.DeleteUserOptions) error
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context, options *mongodb.ClientOptions) (userProvisioner, error)

func connectMongo(ctx context.Context, options *mongodb.ClientOptions) (userProvisioner, error) {
	client, err := mongodb.New(ctx, options)
	if err != nil {
		return nil, err
	}

	return client, nil
}

type app struct {
	v       *viper.Viper
	cfg     *Config
	logger  hclog.Logger
	connect connectFunc
	env     provisioning.Lookup
	lookup  provisioning.Lookup
}

func NewRootCommand() *cobra.Command {
	return newApp(connectMongo, provisioning.EnvLookup()).rootCommand()
}

func newRootCommand(connect connectFunc, env provisioning.Lookup) *cobra.Command {
	return newApp(connect, env).rootCommand()
}

func newApp(connect connectFunc, env provisioning.Lookup) *app {
	return &app{
		v:       viper.New(),
		connect: connect,
		env:     env,
	}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mongo-init",
		Short:         "Provision MongoDB application users",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindConfig(a.v, cmd.Flags()); err != nil {
				return err
			}

			configFile, _ := cmd.Flags().GetString(keyConfig)
			if err := readConfigFile(a.v, configFile); err != nil {
				return err
			}

			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = newLogger(a.cfg, cmd.ErrOrStderr())
			a.lookup = provisioning.ChainLookup(a.env, valuesLookup(a.v))

			if used := a.v.ConfigFileUsed(); used != "" {
				a.logger.Debug("using config file", "path", used)
			}

			return nil
		},
	}

	registerConnectionFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newProvisionCommand(a),
		newDeprovisionCommand(a),
		newTemplatesCommand(),
	)

	return cmd
}

func newLogger(cfg *Config, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "mongo-init",
		Level:      level,
		Output:     out,
		JSONFormat: cfg.LogJSON,
	})
}

// withClient connects, runs fn and disconnects, all within the configured timeout.
func (a *app) withClient(ctx context.Context, fn func(context.Context, userProvisioner) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	options, err := a.cfg.clientOptions()
	if err != nil {
		return err
	}

	a.logger.Debug("connecting", "hosts", options.Hosts, "uri_set", options.URI != "", "auth_source", options.AuthSource)

	client, err := a.connect(ctx, options)
	if err != nil {
		return fmt.Errorf("connecting to MongoDB: %w", err)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		defer cancel()

		if err := client.Close(closeCtx); err != nil {
			a.logger.Warn("error disconnecting", "error", err)
		}
	}()

	return fn(ctx, client)
}

func Execute(ctx context.Context) int {
	return newApp(connectMongo, provisioning.EnvLookup()).execute(ctx, os.Args[1:], os.Stderr)
}

// execute runs the command line and reports a failure through the configured
// logger, or plainly on stderr when it failed before the logger was set up.
func (a *app) execute(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if a.logger == nil {
			fmt.Fprintln(stderr, "Error:", err)
		} else {
			a.logger.Error("command failed", "error", err)
		}

		return 1
	}

	return 0
}
