// Package config loads the service settings: built in defaults, then an
// optional YAML file, then environment variables, then command line flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DefaultUserSecret  = "change-me-user-secret"
	DefaultAdminSecret = "change-me-admin-secret"
)

type Config struct {
	App       App       `koanf:"app" json:"app"`
	Server    Server    `koanf:"server" json:"server"`
	JWT       JWT       `koanf:"jwt" json:"jwt"`
	Database  Database  `koanf:"database" json:"database"`
	Admin     Admin     `koanf:"admin" json:"admin"`
	Log       Log       `koanf:"log" json:"log"`
	Security  Security  `koanf:"security" json:"security"`
	RateLimit RateLimit `koanf:"rate_limit" json:"rate_limit"`
	Realtime  Realtime  `koanf:"realtime" json:"realtime"`
}

type App struct {
	Name string `koanf:"name" json:"name"`
	Env  string `koanf:"env" json:"env"`
}

type Server struct {
	Port            int           `koanf:"port" json:"port"`
	Host            string        `koanf:"host" json:"host"`
	FrontendURL     string        `koanf:"frontend_url" json:"frontend_url"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type JWT struct {
	UserSecret  string `koanf:"user_secret" json:"-"`
	AdminSecret string `koanf:"admin_secret" json:"-"`
	// ExpiresIn accepts Go durations plus a day suffix, e.g. "7d".
	ExpiresIn string `koanf:"expires_in" json:"expires_in"`
	Issuer    string `koanf:"issuer" json:"issuer"`
}

type Database struct {
	Driver       string        `koanf:"driver" json:"driver"`
	DSN          string        `koanf:"dsn" json:"-"`
	MaxOpenConns int           `koanf:"max_open_conns" json:"max_open_conns"`
	PingTimeout  time.Duration `koanf:"ping_timeout" json:"ping_timeout"`
	Debug        bool          `koanf:"debug" json:"debug"`
}

type Admin struct {
	Email    string `koanf:"email" json:"email"`
	Password string `koanf:"password" json:"-"`
	Name     string `koanf:"name" json:"name"`
}

type Log struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

type Security struct {
	BcryptCost int `koanf:"bcrypt_cost" json:"bcrypt_cost"`
}

type RateLimit struct {
	Max    int           `koanf:"max" json:"max"`
	Window time.Duration `koanf:"window" json:"window"`
}

type Realtime struct {
	SendBuffer   int           `koanf:"send_buffer" json:"send_buffer"`
	PingInterval time.Duration `koanf:"ping_interval" json:"ping_interval"`
	PongWait     time.Duration `koanf:"pong_wait" json:"pong_wait"`
}

// Defaults returns the built in settings.
func Defaults() map[string]any {
	return map[string]any{
		"app.name":                "go-accounts",
		"app.env":                 EnvDevelopment,
		"server.port":             5000,
		"server.host":             "",
		"server.frontend_url":     "http://localhost:3000",
		"server.read_timeout":     "15s",
		"server.shutdown_timeout": "10s",
		"jwt.user_secret":         DefaultUserSecret,
		"jwt.admin_secret":        DefaultAdminSecret,
		"jwt.expires_in":          "168h",
		"jwt.issuer":              "go-accounts",
		"database.driver":         "sqlite",
		"database.dsn":            "file:accounts.db?cache=shared",
		"database.max_open_conns": 10,
		"database.ping_timeout":   "5s",
		"database.debug":          false,
		"admin.email":             "admin@admin.com",
		"admin.password":          "admin123",
		"admin.name":              "Administrator",
		"log.level":               "info",
		"log.format":              "json",
		"security.bcrypt_cost":    12,
		"rate_limit.max":          100,
		"rate_limit.window":       "15m",
		"realtime.send_buffer":    256,
		"realtime.ping_interval":  "25s",
		"realtime.pong_wait":      "60s",
	}
}

// envKeys maps the environment variables the service has always read to
// their configuration keys. Any other variable is ignored.
var envKeys = map[string]string{
	"PORT":             "server.port",
	"HOST":             "server.host",
	"FRONTEND_URL":     "server.frontend_url",
	"NODE_ENV":         "app.env",
	"APP_ENV":          "app.env",
	"JWT_USER_SECRET":  "jwt.user_secret",
	"JWT_ADMIN_SECRET": "jwt.admin_secret",
	"JWT_EXPIRES_IN":   "jwt.expires_in",
	"JWT_ISSUER":       "jwt.issuer",
	"DATABASE_DRIVER":  "database.driver",
	"DATABASE_URL":     "database.dsn",
	"ADMIN_EMAIL":      "admin.email",
	"ADMIN_PASSWORD":   "admin.password",
	"ADMIN_NAME":       "admin.name",
	"LOG_LEVEL":        "log.level",
	"LOG_FORMAT":       "log.format",
	"BCRYPT_COST":      "security.bcrypt_cost",
	"RATE_LIMIT_MAX":   "rate_limit.max",
}

// EnvKey returns the configuration key of an environment variable, or ""
// when the variable is not a setting.
func EnvKey(name string) string {
	return envKeys[strings.ToUpper(strings.TrimSpace(name))]
}

// Flags returns the command line flags Load understands.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML configuration file")
	fs.Int("server.port", 5000, "HTTP listen port")
	fs.String("server.host", "", "HTTP listen host")
	fs.String("app.env", EnvDevelopment, "environment: development, test or production")
	fs.String("database.driver", "sqlite", "database driver: sqlite or postgres")
	fs.String("database.dsn", "", "database connection string")
	fs.String("log.level", "info", "log level")
	fs.String("log.format", "json", "log format: json or console")
	return fs
}

// Load builds the configuration. flags may be nil. When flags carries a
// --config value it overrides path.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", EnvKey), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("config: flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	err := validation.Errors{
		"app": validation.ValidateStruct(&c.App,
			validation.Field(&c.App.Env, validation.Required, validation.In(EnvDevelopment, EnvProduction, EnvTest)),
		),
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
			validation.Field(&c.Server.FrontendURL, is.URL),
		),
		"jwt": validation.ValidateStruct(&c.JWT,
			validation.Field(&c.JWT.UserSecret, validation.Required, validation.Length(8, 0)),
			validation.Field(&c.JWT.AdminSecret, validation.Required, validation.Length(8, 0),
				validation.By(differentFrom(c.JWT.UserSecret, "must differ from the user secret"))),
			validation.Field(&c.JWT.ExpiresIn, validation.Required, validation.By(validExpiry)),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
			validation.Field(&c.Database.DSN, validation.Required),
		),
		"admin": validation.ValidateStruct(&c.Admin,
			validation.Field(&c.Admin.Email, is.Email),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Format, validation.In("json", "console")),
		),
		"security": validation.ValidateStruct(&c.Security,
			validation.Field(&c.Security.BcryptCost, validation.Min(4), validation.Max(31)),
		),
	}.Filter()
	if err != nil {
		return err
	}

	if c.IsProduction() {
		if c.JWT.UserSecret == DefaultUserSecret || c.JWT.AdminSecret == DefaultAdminSecret {
			return errors.New("config: production requires JWT_USER_SECRET and JWT_ADMIN_SECRET")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool  { return c.App.Env == EnvProduction }
func (c *Config) IsDevelopment() bool { return c.App.Env == EnvDevelopment }

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetUserSigningKey() string  { return c.JWT.UserSecret }
func (c *Config) GetAdminSigningKey() string { return c.JWT.AdminSecret }
func (c *Config) GetIssuer() string          { return c.JWT.Issuer }
func (c *Config) GetBcryptCost() int         { return c.Security.BcryptCost }

// GetTokenExpiration returns the token lifetime. Validate guarantees the
// value parses.
func (c *Config) GetTokenExpiration() time.Duration {
	d, _ := ParseExpiry(c.JWT.ExpiresIn)
	return d
}

// ParseExpiry parses a Go duration or a whole number of days such as "7d".
func ParseExpiry(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid expiry %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid expiry %q", value)
	}
	return d, nil
}

func validExpiry(value any) error {
	s, _ := value.(string)
	_, err := ParseExpiry(s)
	return err
}

func differentFrom(other, message string) validation.RuleFunc {
	return func(value any) error {
		if s, _ := value.(string); s != "" && s == other {
			return errors.New(message)
		}
		return nil
	}
}
