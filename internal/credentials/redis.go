package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/carrierbridge/pkg/shipper"
)

// DefaultConfigKey is the hash holding the site configuration.
const DefaultConfigKey = "site:config"

const defaultTimeout = 5 * time.Second

// Site configuration fields, one per secret.
const (
	FieldLaPosteAPIKey           = "carriers.laposteApiKey"
	FieldColissimoContractNumber = "carriers.colissimoContractNumber"
	FieldColissimoPassword       = "carriers.colissimoPassword"
	FieldMondialRelayEnseigne    = "carriers.mondialRelayEnseigne"
	FieldMondialRelayPrivateKey  = "carriers.mondialRelayPrivateKey"
)

var carrierFields = map[shipper.Carrier][]string{
	shipper.CarrierColissimo:    {FieldColissimoContractNumber, FieldColissimoPassword},
	shipper.CarrierMondialRelay: {FieldMondialRelayEnseigne, FieldMondialRelayPrivateKey},
	shipper.CarrierLaPoste:      {FieldLaPosteAPIKey},
}

// RedisConfig captures the settings of the Redis connection.
type RedisConfig struct {
	URL     string
	Prefix  string // prepended to Key, for shared instances
	Key     string
	Timeout time.Duration
}

// Connect opens a traced Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Redis reads carrier secrets from the site configuration hash. Values are
// read on every call so changes made from the back office apply at once.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a resolver over the configuration hash described by cfg.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	key := cfg.Key
	if key == "" {
		key = DefaultConfigKey
	}
	return &Redis{client: client, key: cfg.Prefix + key}
}

// Resolve implements shipper.CredentialResolver.
func (r *Redis) Resolve(ctx context.Context, c shipper.Carrier) (shipper.Credentials, error) {
	fields, ok := carrierFields[c]
	if !ok {
		return nil, notFound(c)
	}

	raw, err := r.client.HMGet(ctx, r.key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", c, r.key, err)
	}

	got := make(map[string]string, len(fields))
	for i, field := range fields {
		if s, ok := raw[i].(string); ok {
			got[field] = s
		}
	}
	v := Values{
		ColissimoContractNumber: got[FieldColissimoContractNumber],
		ColissimoPassword:       got[FieldColissimoPassword],
		MondialRelayEnseigne:    got[FieldMondialRelayEnseigne],
		MondialRelayPrivateKey:  got[FieldMondialRelayPrivateKey],
		LaPosteAPIKey:           got[FieldLaPosteAPIKey],
	}
	if creds, ok := v.For(c); ok {
		return creds, nil
	}
	return nil, notFound(c)
}

var _ shipper.CredentialResolver = (*Redis)(nil)
