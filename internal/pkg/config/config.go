package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"

	minSecretLength = 32
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Token     TokenConfig
	Store     StoreConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Bootstrap BootstrapConfig
	Security  SecurityConfig
	Audit     AuditConfig
}

type TokenConfig struct {
	Secret string        `env:"JWT_SECRET, required"`
	TTL    time.Duration `env:"TOKEN_TTL,    default=1h"`
	Issuer string        `env:"TOKEN_ISSUER, default=identity-service"`
}

// StoreConfig selects the account and session backends.
type StoreConfig struct {
	Users    string `env:"STORE_BACKEND,   default=memory"`
	Sessions string `env:"SESSION_BACKEND, default=memory"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// BootstrapConfig names the first admin account. Both fields empty disables
// bootstrapping.
type BootstrapConfig struct {
	Username string `env:"BOOTSTRAP_ADMIN_USERNAME"`
	Password string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

type SecurityConfig struct {
	PasswordMinLength  int           `env:"PASSWORD_MIN_LENGTH,  default=10"`
	LoginMaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS,   default=5"`
	LoginAttemptWindow time.Duration `env:"LOGIN_ATTEMPT_WINDOW, default=15m"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return &cfg
}

// LoadFrom reads configuration through lookuper instead of the process
// environment.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the rules envconfig tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Token.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	switch c.Store.Users {
	case BackendMemory, BackendMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %s or %s, got %q", BackendMemory, BackendMongo, c.Store.Users))
	}
	switch c.Store.Sessions {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be %s or %s, got %q", BackendMemory, BackendRedis, c.Store.Sessions))
	}

	if (c.Bootstrap.Username == "") != (c.Bootstrap.Password == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	if c.Security.PasswordMinLength < 8 || c.Security.PasswordMinLength > 128 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be between 8 and 128"))
	}
	if c.Security.LoginMaxAttempts <= 0 || c.Security.LoginAttemptWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS and LOGIN_ATTEMPT_WINDOW must be positive"))
	}
	if c.Audit.Workers <= 0 {
		errs = append(errs, errors.New("AUDIT_WORKERS must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
