package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/megum1n/mongo-bootstrap/internal/mongodb"
	"github.com/megum1n/mongo-bootstrap/internal/provisioning"
)

const (
	configName = "mongo-init"

	defaultHosts   = "mongo:27017"
	defaultTimeout = 30 * time.Second

	disconnectTimeout = 5 * time.Second
)

const (
	keyConfig        = "config"
	keyHosts         = "hosts"
	keyURI           = "uri"
	keyAdminUsername = "admin-username"
	keyAdminPassword = "admin-password"
	keyAuthSource    = "auth-source"
	keyReplicaSet    = "replica-set"
	keyTLS           = "tls"
	keyTLSCAFile     = "tls-ca-file"
	keyTLSInsecure   = "tls-insecure"
	keyLogLevel      = "log-level"
	keyLogJSON       = "log-json"
	keyTimeout       = "timeout"

	// keyValues holds template values in the config file, keyed by variable name.
	keyValues = "values"
)

// Flags win over the environment, the environment over the config file.
var envBindings = map[string]string{
	keyHosts:         "MONGO_HOSTS",
	keyURI:           "MONGO_URI",
	keyAdminUsername: "MONGO_INITDB_ROOT_USERNAME",
	keyAdminPassword: "MONGO_INITDB_ROOT_PASSWORD",
	keyAuthSource:    "MONGO_AUTH_SOURCE",
	keyReplicaSet:    "MONGO_REPLICA_SET",
	keyTLS:           "MONGO_TLS",
	keyTLSCAFile:     "MONGO_TLS_CA_FILE",
	keyTLSInsecure:   "MONGO_TLS_INSECURE",
	keyLogLevel:      "MONGO_INIT_LOG_LEVEL",
	keyLogJSON:       "MONGO_INIT_LOG_JSON",
	keyTimeout:       "MONGO_INIT_TIMEOUT",
}

type Config struct {
	Hosts         []string
	URI           string
	AdminUsername string
	AdminPassword string
	AuthSource    string
	ReplicaSet    string
	TLS           bool
	TLSCAFile     string
	TLSInsecure   bool

	LogLevel string
	LogJSON  bool
	Timeout  time.Duration
}

func registerConnectionFlags(flags *pflag.FlagSet) {
	flags.String(keyConfig, "", "config file (default: ./mongo-init.yaml or /etc/mongo-init/mongo-init.yaml)")
	flags.StringSlice(keyHosts, []string{defaultHosts}, "MongoDB hosts")
	flags.String(keyURI, "", "MongoDB connection string, used instead of --hosts")
	flags.String(keyAdminUsername, "", "administrative username")
	flags.String(keyAdminPassword, "", "administrative password")
	flags.String(keyAuthSource, mongodb.DefaultAuthSource, "authentication database")
	flags.String(keyReplicaSet, "", "replica set name")
	flags.Bool(keyTLS, false, "enable TLS")
	flags.String(keyTLSCAFile, "", "PEM file with the CA certificate")
	flags.Bool(keyTLSInsecure, false, "skip TLS certificate verification")
	flags.String(keyLogLevel, "info", "log level (trace, debug, info, warn, error)")
	flags.Bool(keyLogJSON, false, "log in JSON format")
	flags.Duration(keyTimeout, defaultTimeout, "timeout for the whole operation")
}

func bindConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}

		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return err
		}
	}

	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mongo-init")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func loadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Hosts:         splitHosts(v.GetStringSlice(keyHosts)),
		URI:           v.GetString(keyURI),
		AdminUsername: v.GetString(keyAdminUsername),
		AdminPassword: v.GetString(keyAdminPassword),
		AuthSource:    v.GetString(keyAuthSource),
		ReplicaSet:    v.GetString(keyReplicaSet),
		TLS:           v.GetBool(keyTLS),
		TLSCAFile:     v.GetString(keyTLSCAFile),
		TLSInsecure:   v.GetBool(keyTLSInsecure),
		LogLevel:      v.GetString(keyLogLevel),
		LogJSON:       v.GetBool(keyLogJSON),
		Timeout:       v.GetDuration(keyTimeout),
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", keyTimeout, cfg.Timeout)
	}

	return cfg, nil
}

// splitHosts accepts both repeated values and comma separated lists, as MONGO_HOSTS is.
func splitHosts(values []string) []string {
	var hosts []string

	for _, value := range values {
		for _, host := range strings.Split(value, ",") {
			if host = strings.TrimSpace(host); host != "" {
				hosts = append(hosts, host)
			}
		}
	}

	return hosts
}

func (c *Config) clientOptions() (*mongodb.ClientOptions, error) {
	options := &mongodb.ClientOptions{
		URI:                c.URI,
		Username:           c.AdminUsername,
		Password:           c.AdminPassword,
		AuthSource:         c.AuthSource,
		ReplicaSet:         c.ReplicaSet,
		TLS:                c.TLS,
		InsecureSkipVerify: c.TLSInsecure,
	}

	if c.URI == "" {
		options.Hosts = c.Hosts
	}

	if c.TLSCAFile != "" {
		pem, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}

		options.Certificate = string(pem)
	}

	return options, nil
}

// valuesLookup resolves template variables from the config file's values section.
func valuesLookup(v *viper.Viper) provisioning.Lookup {
	return func(key string) (string, bool) {
		path := keyValues + "." + strings.ToLower(key)
		if !v.IsSet(path) {
			return "", false
		}

		return v.GetString(path), true
	}
}
