package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "STOREFRONT_CONFIG_FILE"
	envPrefix         = "STOREFRONT"
	defaultConfigFile = "/config.yaml"
)

type breaker struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type upstream struct {
	BaseURL      string        `mapstructure:"base_url"`
	ProductsPath string        `mapstructure:"products_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ReadAttempts int           `mapstructure:"read_attempts"`
	Breaker      breaker       `mapstructure:"breaker"`
}

type session struct {
	Backend       string        `mapstructure:"backend"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisURL      string        `mapstructure:"redis_url"`
	SQLDB         string        `mapstructure:"sql_db"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type tlsFiles struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

func (t tlsFiles) Enabled() bool {
	return t.CA != "" && t.Cert != "" && t.Key != ""
}

type broker struct {
	SeedBrokers        []string `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string `mapstructure:"schema_registry_urls"`
	ClientEventsTopic  string   `mapstructure:"client_events_topic"`
	TLS                tlsFiles `mapstructure:"tls"`
}

type Config struct {
	LogLevel           string        `mapstructure:"log_level"`
	HTTPServerAddr     string        `mapstructure:"http_server_addr"`
	HTTPHandlerTimeout time.Duration `mapstructure:"http_handler_timeout"`
	DefaultLocale      string        `mapstructure:"default_locale"`
	HTMXSrc            string        `mapstructure:"htmx_src"`
	Upstream           upstream      `mapstructure:"upstream"`
	Session            session       `mapstructure:"session"`
	Broker             broker        `mapstructure:"broker"`
}

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8080")
	v.SetDefault("http_handler_timeout", 15*time.Second)
	v.SetDefault("default_locale", "ar")
	v.SetDefault("htmx_src", "https://unpkg.com/htmx.org@2.0.4")

	v.SetDefault("upstream.base_url", "http://localhost:5000")
	v.SetDefault("upstream.products_path", "/api/products")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.read_attempts", 1)
	v.SetDefault("upstream.breaker.enabled", true)
	v.SetDefault("upstream.breaker.max_failures", 5)
	v.SetDefault("upstream.breaker.open_timeout", 30*time.Second)

	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.cookie_name", "storefront_sid")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.sql_db", "")
	v.SetDefault("session.purge_interval", 10*time.Minute)

	v.SetDefault("broker.seed_brokers", []string{})
	v.SetDefault("broker.schema_registry_urls", []string{})
	v.SetDefault("broker.client_events_topic", "storefront-client-events")
	v.SetDefault("broker.tls.ca", "")
	v.SetDefault("broker.tls.cert", "")
	v.SetDefault("broker.tls.key", "")
}

// Load reads the configuration for the command line of the process and
// exits on failure.
func Load() Config {
	cfg, err := LoadArgs(os.Args[1:])
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadArgs reads the config file named by the --config flag or by
// STOREFRONT_CONFIG_FILE. Variables from an optional .env file and the
// environment (STOREFRONT_ prefix, dots as underscores) override the file.
// A missing default config file leaves defaults and environment only.
func LoadArgs(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	path, explicit, err := configFilepath(args)
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configFilepath(args []string) (path string, explicit bool, err error) {
	cmdLine := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	arg := cmdLine.String("config", defaultConfigFile, "config file")
	if err := cmdLine.Parse(args); err != nil {
		return "", false, err
	}
	if env, ok := os.LookupEnv(configFileEnvName); ok {
		return env, true, nil
	}
	return *arg, cmdLine.Changed("config"), nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	HTTPHandlerTimeout=%s
	DefaultLocale=%q

	Upstream:
	BaseURL=%q
	ProductsPath=%q
	Timeout=%s
	ReadAttempts=%d
	Breaker:
		Enabled=%t
		MaxFailures=%d
		OpenTimeout=%s

	Session:
	Backend=%q
	CookieName=%q
	TTL=%s

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	ClientEventsTopic=%q
	TLS=%t

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		c.HTTPHandlerTimeout,
		c.DefaultLocale,
		c.Upstream.BaseURL,
		c.Upstream.ProductsPath,
		c.Upstream.Timeout,
		c.Upstream.ReadAttempts,
		c.Upstream.Breaker.Enabled,
		c.Upstream.Breaker.MaxFailures,
		c.Upstream.Breaker.OpenTimeout,
		c.Session.Backend,
		c.Session.CookieName,
		c.Session.TTL,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.ClientEventsTopic,
		c.Broker.TLS.Enabled(),
	)
}
