package mongodb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

const DefaultAuthSource = "admin"

type ClientOptions struct {
	URI                string
	Hosts              []string
	Username           string
	Password           string
	AuthSource         string
	ReplicaSet         string
	TLS                bool
	InsecureSkipVerify bool
	Certificate        string
}

// commander runs a single database command and returns the raw reply.
type commander interface {
	RunCommand(ctx context.Context, database string, command bson.D) (bson.Raw, error)
}

type driverCommander struct {
	client *mongo.Client
}

func (d driverCommander) RunCommand(ctx context.Context, database string, command bson.D) (bson.Raw, error) {
	return d.client.Database(database).RunCommand(ctx, command).Raw()
}

type Client struct {
	mongo *mongo.Client
	cmd   commander

	ClientOptions
}

func New(ctx context.Context, options *ClientOptions) (*Client, error) {
	opt, err := options.driverOptions()
	if err != nil {
		return nil, err
	}

	tflog.Debug(ctx, "Connecting to MongoDB", map[string]interface{}{
		"hosts":       options.Hosts,
		"auth_source": options.AuthSource,
		"replica_set": options.ReplicaSet,
		"tls":         options.TLS,
	})

	mongoClient, err := mongo.Connect(opt)
	if err != nil {
		return nil, err
	}

	err = mongoClient.Ping(ctx, nil)
	if err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, err
	}

	client := &Client{
		mongo:         mongoClient,
		cmd:           driverCommander{client: mongoClient},
		ClientOptions: *options,
	}

	return client, nil
}

func newWithCommander(cmd commander) *Client {
	return &Client{cmd: cmd}
}

func (c *Client) Close(ctx context.Context) error {
	if c.mongo == nil {
		return nil
	}

	return c.mongo.Disconnect(ctx)
}

func (o *ClientOptions) driverOptions() (*mongooptions.ClientOptions, error) {
	opt := mongooptions.Client()

	if o.URI != "" {
		opt.ApplyURI(o.URI)
	}

	if len(o.Hosts) > 0 {
		opt.SetHosts(o.Hosts)
	}

	if o.URI == "" && len(o.Hosts) == 0 {
		return nil, errors.New("either a connection URI or at least one host is required")
	}

	if o.Username != "" {
		authSource := o.AuthSource
		if authSource == "" {
			authSource = DefaultAuthSource
		}

		opt.SetAuth(mongooptions.Credential{
			Username:   o.Username,
			Password:   o.Password,
			AuthSource: authSource,
		})
	}

	if o.ReplicaSet != "" {
		opt.SetReplicaSet(o.ReplicaSet)
	}

	if o.TLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: o.InsecureSkipVerify, //nolint:gosec
		}

		if o.Certificate != "" {
			certPool := x509.NewCertPool()

			ok := certPool.AppendCertsFromPEM([]byte(o.Certificate))
			if !ok {
				return nil, errors.New("failed to parse certificate")
			}

			tlsConfig.RootCAs = certPool
		}

		opt.SetTLSConfig(tlsConfig)
	}

	return opt, nil
}

func (c *Client) runCommand(ctx context.Context, database string, command bson.D, result interface{}) error {
	raw, err := c.cmd.RunCommand(ctx, database, command)
	if err != nil {
		return err
	}

	return bson.Unmarshal(raw, result)
}
