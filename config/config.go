// Package config loads client settings from a YAML file and the environment.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/maxpoletaev/esclient/discovery"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/nodeclient"
)

// DefaultEnvPrefix is the prefix of the environment variables read by Load.
const DefaultEnvPrefix = "ESCLIENT_"

// Settings describe how the client reaches the cluster. Exactly one of Endpoint
// and GossipSeeds must be set: Endpoint connects to a single node, GossipSeeds
// enables discovery.
type Settings struct {
	Endpoint            string        `koanf:"endpoint" validate:"required_without=GossipSeeds,excluded_with=GossipSeeds"`
	GossipSeeds         []string      `koanf:"gossip_seeds" validate:"required_without=Endpoint,dive,hostname_port"`
	MaxDiscoverAttempts int           `koanf:"max_discover_attempts" validate:"min=1"`
	DiscoveryInterval   time.Duration `koanf:"discovery_interval" validate:"min=0"`
	GossipTimeout       time.Duration `koanf:"gossip_timeout" validate:"gt=0"`
	NodePreference      string        `koanf:"node_preference" validate:"omitempty,oneof=random leader follower readonlyreplica read_only_replica"`
	TLS                 bool          `koanf:"tls"`
	TLSCAFile           string        `koanf:"tls_ca_file"`
	DialTimeout         time.Duration `koanf:"dial_timeout" validate:"gt=0"`
	KeepAliveInterval   time.Duration `koanf:"keepalive_interval" validate:"min=0"`
	KeepAliveTimeout    time.Duration `koanf:"keepalive_timeout" validate:"min=0"`
}

func DefaultSettings() Settings {
	conf := discovery.DefaultConfig()
	dial := nodeclient.DefaultDialOptions()

	return Settings{
		MaxDiscoverAttempts: conf.MaxDiscoverAttempts,
		DiscoveryInterval:   conf.DiscoveryInterval,
		GossipTimeout:       conf.GossipTimeout,
		NodePreference:      conf.Preference.String(),
		TLS:                 dial.TLS,
		DialTimeout:         5 * time.Second,
		KeepAliveInterval:   dial.KeepAliveInterval,
		KeepAliveTimeout:    dial.KeepAliveTimeout,
	}
}

// Load reads the settings from the YAML file at path (skipped when empty) and
// then from the environment variables starting with envPrefix, which take
// precedence. ESCLIENT_GOSSIP_SEEDS=a:2113,b:2113 sets gossip_seeds. Keys not
// present in any source keep their default values.
func Load(path, envPrefix string) (Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Settings{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	provider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

		if strings.Contains(value, ",") {
			return key, splitList(value)
		}

		return key, value
	})

	if err := k.Load(provider, nil); err != nil {
		return Settings{}, fmt.Errorf("load env: %w", err)
	}

	settings := DefaultSettings()
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return settings, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))

	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}

	return items
}

var validate = validator.New()

// Validate checks the settings and returns an error naming every invalid field.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))

	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required_without":
			msgs = append(msgs, fmt.Sprintf("%s: required when %s is not set", fe.Field(), fe.Param()))
		case "excluded_with":
			msgs = append(msgs, fmt.Sprintf("%s: cannot be combined with %s", fe.Field(), fe.Param()))
		case "hostname_port":
			msgs = append(msgs, fmt.Sprintf("%s: %q is not a host:port address", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed on %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}

	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

// UsesDiscovery reports whether the client discovers the cluster via gossip.
func (s Settings) UsesDiscovery() bool {
	return len(s.GossipSeeds) > 0
}

func (s Settings) Preference() (membership.Preference, error) {
	return membership.ParsePreference(s.NodePreference)
}

// DiscoveryConfig converts the settings into the discoverer configuration.
// Logger, Metrics and SelectionSeed are left for the caller.
func (s Settings) DiscoveryConfig() (discovery.Config, error) {
	pref, err := s.Preference()
	if err != nil {
		return discovery.Config{}, err
	}

	conf := discovery.DefaultConfig()
	conf.Seeds = s.GossipSeeds
	conf.MaxDiscoverAttempts = s.MaxDiscoverAttempts
	conf.DiscoveryInterval = s.DiscoveryInterval
	conf.GossipTimeout = s.GossipTimeout
	conf.Preference = pref

	return conf, nil
}

// DialOptions converts the settings into the options of the gRPC dialer.
func (s Settings) DialOptions() (nodeclient.DialOptions, error) {
	opts := nodeclient.DefaultDialOptions()
	opts.TLS = s.TLS
	opts.KeepAliveInterval = s.KeepAliveInterval
	opts.KeepAliveTimeout = s.KeepAliveTimeout

	if s.TLS && s.TLSCAFile != "" {
		pem, err := os.ReadFile(s.TLSCAFile)
		if err != nil {
			return nodeclient.DialOptions{}, fmt.Errorf("read ca file: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nodeclient.DialOptions{}, fmt.Errorf("no certificates found in %s", s.TLSCAFile)
		}

		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    pool,
		}
	}

	return opts, nil
}
