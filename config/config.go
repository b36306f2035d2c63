package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultMoMoEndpoint is the MoMo sandbox create-payment endpoint.
const DefaultMoMoEndpoint = "https://test-payment.momo.vn/v2/gateway/api/create"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	MoMo     MoMoConfig     `mapstructure:"momo"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Lock     LockConfig     `mapstructure:"lock"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
	// PublicURL is the externally reachable origin used for MoMo
	// redirect and IPN URLs when those are not configured.
	PublicURL string `mapstructure:"public_url"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// Timeout bounds dial, read and write on every lease and cache call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// MoMoConfig holds the merchant credentials and transport settings for the MoMo gateway.
type MoMoConfig struct {
	PartnerCode  string        `mapstructure:"partner_code"`
	PartnerName  string        `mapstructure:"partner_name"`
	StoreID      string        `mapstructure:"store_id"`
	AccessKey    string        `mapstructure:"access_key"`
	SecretKey    string        `mapstructure:"secret_key"`
	Endpoint     string        `mapstructure:"endpoint"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	IPNURL       string        `mapstructure:"ipn_url"`
	RequestType  string        `mapstructure:"request_type"`
	Lang         string        `mapstructure:"lang"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type CheckoutConfig struct {
	FrontendURL string `mapstructure:"frontend_url"`
	ShippingFee int64  `mapstructure:"shipping_fee"`
}

// LockConfig controls the per-order lease held while an order is mutated.
type LockConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SFP_ (StoreFront Payments).
// Nested keys use underscore: SFP_MOMO_SECRET_KEY, SFP_DATABASE_HOST, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.public_url", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "storefront")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", "2s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "storefront-payments")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("momo.partner_code", "")
	v.SetDefault("momo.partner_name", "Storefront")
	v.SetDefault("momo.store_id", "")
	v.SetDefault("momo.access_key", "")
	v.SetDefault("momo.secret_key", "")
	v.SetDefault("momo.endpoint", DefaultMoMoEndpoint)
	v.SetDefault("momo.redirect_url", "")
	v.SetDefault("momo.ipn_url", "")
	v.SetDefault("momo.request_type", "payWithATM")
	v.SetDefault("momo.lang", "vi")
	v.SetDefault("momo.timeout", "15s")
	v.SetDefault("momo.max_retries", 2)
	v.SetDefault("momo.retry_backoff", "1s")
	v.SetDefault("checkout.frontend_url", "http://localhost:3000")
	v.SetDefault("checkout.shipping_fee", 0)
	v.SetDefault("lock.ttl", "30s")
	v.SetDefault("lock.wait_timeout", "5s")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SFP_MOMO_SECRET_KEY -> momo.secret_key
	v.SetEnvPrefix("SFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every missing setting the service cannot start without.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		key   string
		value string
	}{
		{"momo.partner_code", c.MoMo.PartnerCode},
		{"momo.access_key", c.MoMo.AccessKey},
		{"momo.secret_key", c.MoMo.SecretKey},
		{"momo.endpoint", c.MoMo.Endpoint},
		{"jwt.secret", c.JWT.Secret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}

	if c.MoMo.Timeout <= 0 {
		errs = append(errs, errors.New("momo.timeout must be positive"))
	}
	if c.MoMo.MaxRetries < 0 {
		errs = append(errs, errors.New("momo.max_retries must not be negative"))
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	return errors.Join(errs...)
}
