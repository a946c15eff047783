package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultConfigPath = "./config/config.yaml"
)

type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer     `yaml:"http_server"`
	Storage        `yaml:"storage"`
	Postgres       `yaml:"postgres"`
	SQLite         `yaml:"sqlite"`
	Tokens         `yaml:"tokens"`
	Sweeper        `yaml:"sweeper"`
	Redis          `yaml:"redis"`
	RabbitMQ       `yaml:"rabbitmq"`
	SMTP           `yaml:"smtp"`
	RateLimit      `yaml:"rate_limit"`
	BootstrapAdmin `yaml:"bootstrap_admin"`
}

type HTTPServer struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout        time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"5s"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env-default:"10"`
	MinConns int32  `yaml:"min_conns" env-default:"2"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"user_service.db"`
}

type Tokens struct {
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"JWT_ACCESS_SECRET"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"JWT_REFRESH_SECRET"`
}

type Sweeper struct {
	Schedule string `yaml:"schedule" env-default:"@every 1h"`
}

// Redis is optional. An empty address disables refresh reuse detection.
type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// RabbitMQ is optional for the API server. An empty url disables events.
type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env-default:"auth_events"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:"no-reply@localhost"`
}

type RateLimit struct {
	Enabled bool `yaml:"enabled" env-default:"true"`
}

type BootstrapAdmin struct {
	Name     string `yaml:"name" env-default:"Administrator"`
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

// * MustLoad reads the optional .env file, then the yaml config at path
// (CONFIG_PATH wins when set). Panics if the file is missing or invalid.
func MustLoad(path string) *Config {
	cfg, err := Load(resolvePath(path))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	return cfg
}

// Notifier is the part of the config file the mail consumer reads.
type Notifier struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	RabbitMQ `yaml:"rabbitmq"`
	SMTP     `yaml:"smtp"`
}

func MustLoadNotifier(path string) *Notifier {
	cfg, err := LoadNotifier(resolvePath(path))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	return cfg
}

func LoadNotifier(path string) (*Notifier, error) {
	const op = "config.LoadNotifier"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, path)
	}

	var cfg Notifier

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is required", op)
	}

	return &cfg, nil
}

func resolvePath(path string) string {
	_ = godotenv.Load()

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}
	if path == "" {
		path = defaultConfigPath
	}

	return path
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			errs = append(errs, errors.New("postgres user and dbname are required"))
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Tokens.AccessTokenSecret == "" || c.Tokens.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("both token secrets are required"))
	} else if c.Tokens.AccessTokenSecret == c.Tokens.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}

	if c.Tokens.AccessTokenTTL <= 0 || c.Tokens.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Tokens.AccessTokenTTL >= c.Tokens.RefreshTokenTTL {
		errs = append(errs, errors.New("access token ttl must be shorter than refresh token ttl"))
	}

	if (c.BootstrapAdmin.Email == "") != (c.BootstrapAdmin.Password == "") {
		errs = append(errs, errors.New("bootstrap admin needs both email and password"))
	}

	return errors.Join(errs...)
}
