package pod

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/peertube-pod/internal/adapters/http/api"
	"github.com/peertube-pod/internal/adapters/http/remote"
	"github.com/peertube-pod/internal/logging"
)

// ConfigPathEnvVar names an optional YAML file loaded on top of the defaults.
const ConfigPathEnvVar = "POD_CONFIG"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Federation FederationConfig `koanf:"federation"`
	Auth       AuthConfig       `koanf:"auth"`
	API        APIConfig        `koanf:"api"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
	// Host is the public host[:port] other pods reach this one at.
	Host            string        `koanf:"host"`
	Scheme          string        `koanf:"scheme"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type DatabaseConfig struct {
	// Backend is memory or mysql.
	Backend  string `koanf:"backend"`
	MySQLDSN string `koanf:"mysql_dsn"`
	Migrate  bool   `koanf:"migrate"`
}

// RedisConfig enables the Redis activity log when Addr is set.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Prefix   string        `koanf:"prefix"`
	TTL      time.Duration `koanf:"ttl"`
}

type FederationConfig struct {
	KeyPath             string        `koanf:"key_path"`
	QueueTickInterval   time.Duration `koanf:"queue_tick_interval"`
	FollowScanInterval  time.Duration `koanf:"follow_scan_interval"`
	DeliveryMaxAttempts int           `koanf:"delivery_max_attempts"`
	DeliveryBaseBackoff time.Duration `koanf:"delivery_base_backoff"`
	RemoteTimeout       time.Duration `koanf:"remote_timeout"`
	RemoteRatePerSecond float64       `koanf:"remote_rate_per_second"`
	RemoteBurst         int           `koanf:"remote_burst"`
	BreakerFailures     uint32        `koanf:"breaker_failures"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	AdminName     string        `koanf:"admin_name"`
	AdminPassword string        `koanf:"admin_password"`
	BcryptCost    int           `koanf:"bcrypt_cost"`
}

type APIConfig struct {
	RateLimitRequests  int           `koanf:"rate_limit_requests"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
	InboxRateLimit     int           `koanf:"inbox_rate_limit"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
}

func defaultConfig() Config {
	remoteCfg := remote.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port:            "9000",
			Host:            "localhost:9000",
			Scheme:          "http",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Backend: "memory",
			Migrate: true,
		},
		Redis: RedisConfig{
			Prefix: "pod:activities",
			TTL:    24 * time.Hour,
		},
		Federation: FederationConfig{
			KeyPath:             "./data/keys",
			QueueTickInterval:   100 * time.Millisecond,
			FollowScanInterval:  time.Minute,
			DeliveryMaxAttempts: 5,
			DeliveryBaseBackoff: time.Second,
			RemoteTimeout:       remoteCfg.Timeout,
			RemoteRatePerSecond: remoteCfg.RatePerSecond,
			RemoteBurst:         remoteCfg.Burst,
			BreakerFailures:     remoteCfg.BreakerFailures,
			BreakerTimeout:      remoteCfg.BreakerTimeout,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		API: APIConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			InboxRateLimit:    600,
		},
	}
}

// envKeys maps the supported environment variables to config paths.
var envKeys = map[string]string{
	"POD_PORT":             "server.port",
	"POD_HOST":             "server.host",
	"POD_SCHEME":           "server.scheme",
	"POD_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",

	"REPO_BACKEND":     "database.backend",
	"MYSQL_DSN":        "database.mysql_dsn",
	"MYSQL_MIGRATE":    "database.migrate",
	"REDIS_ADDR":       "redis.addr",
	"REDIS_PASSWORD":   "redis.password",
	"REDIS_DB":         "redis.db",
	"REDIS_PREFIX":     "redis.prefix",
	"ACTIVITY_LOG_TTL": "redis.ttl",

	"KEY_PATH":               "federation.key_path",
	"QUEUE_TICK_INTERVAL":    "federation.queue_tick_interval",
	"FOLLOW_SCAN_INTERVAL":   "federation.follow_scan_interval",
	"DELIVERY_MAX_ATTEMPTS":  "federation.delivery_max_attempts",
	"DELIVERY_BASE_BACKOFF":  "federation.delivery_base_backoff",
	"REMOTE_TIMEOUT":         "federation.remote_timeout",
	"REMOTE_RATE_PER_SECOND": "federation.remote_rate_per_second",
	"REMOTE_BURST":           "federation.remote_burst",
	"BREAKER_FAILURES":       "federation.breaker_failures",
	"BREAKER_TIMEOUT":        "federation.breaker_timeout",

	"JWT_SECRET":     "auth.jwt_secret",
	"TOKEN_TTL":      "auth.token_ttl",
	"ADMIN_NAME":     "auth.admin_name",
	"ADMIN_PASSWORD": "auth.admin_password",
	"BCRYPT_COST":    "auth.bcrypt_cost",

	"API_RATE_LIMIT":        "api.rate_limit_requests",
	"API_RATE_LIMIT_WINDOW": "api.rate_limit_window",
	"INBOX_RATE_LIMIT":      "api.inbox_rate_limit",
	"CORS_ALLOWED_ORIGINS":  "api.cors_allowed_origins",
}

// envTransformFunc skips unknown and empty variables by returning an empty key.
func envTransformFunc(key, value string) (string, interface{}) {
	path, ok := envKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	return path, value
}

var sliceConfigPaths = []string{
	"api.cors_allowed_origins",
}

// LoadConfig layers defaults, the optional file named by POD_CONFIG and the environment.
func LoadConfig() (Config, error) {
	return LoadConfigFile(os.Getenv(ConfigPathEnvVar))
}

func LoadConfigFile(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// processSliceFields splits comma-separated strings coming from the environment.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("setting %s: %w", path, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Scheme != "http" && c.Server.Scheme != "https" {
		errs = append(errs, fmt.Errorf("server.scheme must be http or https, got %q", c.Server.Scheme))
	}

	switch c.Database.Backend {
	case "memory":
	case "mysql":
		if c.Database.MySQLDSN == "" {
			errs = append(errs, errors.New("database.mysql_dsn is required with the mysql backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.backend %q", c.Database.Backend))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if (c.Auth.AdminName == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("auth.admin_name and auth.admin_password go together"))
	}
	if c.Federation.QueueTickInterval <= 0 {
		errs = append(errs, errors.New("federation.queue_tick_interval must be positive"))
	}
	if c.Federation.FollowScanInterval <= 0 {
		errs = append(errs, errors.New("federation.follow_scan_interval must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) LogConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Caller: c.Logging.Caller,
	}
}

func (c Config) RemoteClientConfig() remote.Config {
	return remote.Config{
		Timeout:         c.Federation.RemoteTimeout,
		RatePerSecond:   c.Federation.RemoteRatePerSecond,
		Burst:           c.Federation.RemoteBurst,
		BreakerFailures: c.Federation.BreakerFailures,
		BreakerTimeout:  c.Federation.BreakerTimeout,
	}
}

func (c Config) HTTPConfig() api.Config {
	return api.Config{
		RateLimitRequests:  c.API.RateLimitRequests,
		RateLimitWindow:    c.API.RateLimitWindow,
		InboxRateLimit:     c.API.InboxRateLimit,
		CORSAllowedOrigins: c.API.CORSAllowedOrigins,
	}
}
