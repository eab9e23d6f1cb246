package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

// Config is the full service configuration, read from SWEETSHOP_* variables.
type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Auth          AuthConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Pagination    PaginationConfig
}

// Load reads the environment, fills derived values and reports every
// invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	if c.Pagination.DefaultLimit < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvPaginationDefaultLimit))
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		err = multierr.Append(err, fmt.Errorf("%s cannot exceed %s", EnvPaginationDefaultLimit, EnvPaginationMaxLimit))
	}
	if c.JWT.RefreshTokenTTL() <= c.JWT.AccessTokenTTL() {
		err = multierr.Append(err, fmt.Errorf("%s must exceed %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins))
	}
	if _, perr := strconv.ParseUint(c.App.Port, 10, 16); perr != nil {
		err = multierr.Append(err, fmt.Errorf("%s must be a TCP port, got %q", EnvPort, c.App.Port))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"SWEETSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SWEETSHOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SWEETSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SWEETSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

// Addr is the listen address for the HTTP server.
func (a AppConfig) Addr() string { return ":" + a.Port }

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"SWEETSHOP_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SWEETSHOP_HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"SWEETSHOP_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SWEETSHOP_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"SWEETSHOP_CORS_ORIGINS" default:"http://localhost:3000"`
}

// DBConfig accepts either a full DSN or the discrete SWEETSHOP_DB_HOST,
// SWEETSHOP_DB_USER and SWEETSHOP_DB_NAME settings used by older deployments.
type DBConfig struct {
	DSN    string `envconfig:"SWEETSHOP_DB_DSN"`
	Driver string `envconfig:"SWEETSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SWEETSHOP_DB_HOST"`
	Port     int    `envconfig:"SWEETSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"SWEETSHOP_DB_USER"`
	Password string `envconfig:"SWEETSHOP_DB_PASSWORD"`
	Name     string `envconfig:"SWEETSHOP_DB_NAME"`
	SSLMode  string `envconfig:"SWEETSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SWEETSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SWEETSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SWEETSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SWEETSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

func (db *DBConfig) resolveDSN() error {
	switch {
	case db.DSN != "":
		return nil
	case db.IsSQLite():
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s is unset and %s are missing", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.Password != "" {
		dsn.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SWEETSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SWEETSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SWEETSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SWEETSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SWEETSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SWEETSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SWEETSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SWEETSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SWEETSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SWEETSHOP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SWEETSHOP_JWT_ISSUER" default:"sweetshop"`
	ExpirationMinutes      int    `envconfig:"SWEETSHOP_JWT_EXPIRATION_MINUTES" default:"10080"`
	RefreshTokenTTLMinutes int    `envconfig:"SWEETSHOP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL is zero when the setting is not positive.
func (j JWTConfig) AccessTokenTTL() time.Duration { return minutes(j.ExpirationMinutes) }

// RefreshTokenTTL is zero when the setting is not positive.
func (j JWTConfig) RefreshTokenTTL() time.Duration { return minutes(j.RefreshTokenTTLMinutes) }

func minutes(n int) time.Duration {
	return time.Duration(max(n, 0)) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SWEETSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SWEETSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SWEETSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SWEETSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SWEETSHOP_ARGON_KEY_LEN" default:"32"`
}

type AuthConfig struct {
	AdminEmail       string `envconfig:"SWEETSHOP_ADMIN_EMAIL" default:"admin@sweetshop.com"`
	AllowAdminSignup bool   `envconfig:"SWEETSHOP_AUTH_ALLOW_ADMIN_SIGNUP" default:"false"`
}

// AuthRateLimitConfig sets the fixed-window limits for login and register.
// A limit of 0 disables that dimension.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SWEETSHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SWEETSHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SWEETSHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SWEETSHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SWEETSHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SWEETSHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SWEETSHOP_AUTO_MIGRATE" default:"false"`
}

type PaginationConfig struct {
	DefaultLimit int `envconfig:"SWEETSHOP_PAGINATION_DEFAULT_LIMIT" default:"10"`
	MaxLimit     int `envconfig:"SWEETSHOP_PAGINATION_MAX_LIMIT" default:"100"`
}
