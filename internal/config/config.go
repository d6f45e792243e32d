package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/carrierbridge/internal/credentials"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CallTimeout bounds every carrier call.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`

	// Colissimo
	ColissimoBaseURL  string `envconfig:"COLISSIMO_BASE_URL" default:"https://ws.colissimo.fr/sls-ws/SlsServiceWSRest/2.0"`
	ColissimoEnabled  bool   `envconfig:"COLISSIMO_ENABLED" default:"true"`
	ColissimoUseMock  bool   `envconfig:"COLISSIMO_USE_MOCK" default:"false"`
	ColissimoContract string `envconfig:"COLISSIMO_CONTRACT"`
	ColissimoPassword string `envconfig:"COLISSIMO_PASSWORD"`

	// Mondial Relay
	MondialRelayEndpoint     string `envconfig:"MONDIAL_RELAY_ENDPOINT" default:"https://api.mondialrelay.com/Web_Services.asmx"`
	MondialRelayLabelBaseURL string `envconfig:"MONDIAL_RELAY_LABEL_BASE_URL" default:"https://www.mondialrelay.com"`
	MondialRelayEnabled      bool   `envconfig:"MONDIAL_RELAY_ENABLED" default:"true"`
	MondialRelayUseMock      bool   `envconfig:"MONDIAL_RELAY_USE_MOCK" default:"false"`
	MondialRelayEnseigne     string `envconfig:"MONDIAL_RELAY_ENSEIGNE"`
	MondialRelayKey          string `envconfig:"MONDIAL_RELAY_KEY"`

	// La Poste
	LaPosteBaseURL string `envconfig:"LAPOSTE_BASE_URL" default:"https://api.laposte.fr"`
	LaPosteEnabled bool   `envconfig:"LAPOSTE_ENABLED" default:"true"`
	LaPosteUseMock bool   `envconfig:"LAPOSTE_USE_MOCK" default:"false"`
	LaPosteAPIKey  string `envconfig:"LAPOSTE_API_KEY"`

	// Site configuration store. When RedisURL is set, credentials stored
	// there take precedence over the ones above.
	RedisURL       string `envconfig:"REDIS_URL"`
	RedisPrefix    string `envconfig:"REDIS_PREFIX"`
	RedisConfigKey string `envconfig:"REDIS_CONFIG_KEY" default:"site:config"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"carrierbridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables. When envFile is set,
// it is loaded first; variables already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Credentials returns the carrier secrets set in the environment.
func (c *Config) Credentials() credentials.Values {
	return credentials.Values{
		ColissimoContractNumber: c.ColissimoContract,
		ColissimoPassword:       c.ColissimoPassword,
		MondialRelayEnseigne:    c.MondialRelayEnseigne,
		MondialRelayPrivateKey:  c.MondialRelayKey,
		LaPosteAPIKey:           c.LaPosteAPIKey,
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("colissimo.enabled", c.ColissimoEnabled),
		attribute.Bool("mondialrelay.enabled", c.MondialRelayEnabled),
		attribute.Bool("laposte.enabled", c.LaPosteEnabled),
		attribute.Bool("redis.enabled", c.RedisURL != ""),
	}
}
