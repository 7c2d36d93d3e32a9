package app

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the single configuration surface of the vidra process. It is
// loaded once at startup from an optional YAML file plus VIDRA_* environment
// overrides, then broken into sub-configs for the packages that need them.
type Config struct {
	Env       string `yaml:"env" env:"VIDRA_ENV" env-default:"dev"`
	HTTPAddr  string `yaml:"http_addr" env:"VIDRA_HTTP_ADDR" env-default:":8080"`
	LogLevel  string `yaml:"log_level" env:"VIDRA_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"VIDRA_LOG_FORMAT" env-default:"json"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"VIDRA_READ_HEADER_TIMEOUT" env-default:"5s"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"VIDRA_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"VIDRA_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"VIDRA_IDLE_TIMEOUT" env-default:"60s"`

	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Session SessionConfig `yaml:"session"`
	Media   MediaConfig   `yaml:"media"`
	Auth    AuthConfig    `yaml:"auth"`
}

// DBConfig selects the credential store. An empty URL switches the process
// to the in-memory store (development mode).
type DBConfig struct {
	URL      string `yaml:"url" env:"VIDRA_DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"VIDRA_DB_MAX_CONNS" env-default:"8"`
	MinConns int32  `yaml:"min_conns" env:"VIDRA_DB_MIN_CONNS" env-default:"0"`
}

// RedisConfig enables the login throttle. Empty address disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"VIDRA_REDIS_ADDR"`
	Password string `yaml:"password" env:"VIDRA_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"VIDRA_REDIS_DB" env-default:"0"`
}

// SessionConfig holds the token secrets and lifetimes. All three secrets are
// required outside dev.
type SessionConfig struct {
	AccessSecret   string        `yaml:"access_secret" env:"VIDRA_ACCESS_TOKEN_SECRET"`
	RefreshSecret  string        `yaml:"refresh_secret" env:"VIDRA_REFRESH_TOKEN_SECRET"`
	RefreshHashKey string        `yaml:"refresh_hash_key" env:"VIDRA_REFRESH_HASH_KEY"`
	AccessTTL      time.Duration `yaml:"access_ttl" env:"VIDRA_ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl" env:"VIDRA_REFRESH_TOKEN_TTL" env-default:"168h"`
}

// MediaConfig points at the S3-compatible object store. Empty endpoint or
// bucket disables media uploads.
type MediaConfig struct {
	Endpoint  string `yaml:"endpoint" env:"VIDRA_MEDIA_ENDPOINT"`
	Region    string `yaml:"region" env:"VIDRA_MEDIA_REGION" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"VIDRA_MEDIA_BUCKET"`
	AccessKey string `yaml:"access_key" env:"VIDRA_MEDIA_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"VIDRA_MEDIA_SECRET_KEY"`
}

// AuthConfig tunes the HTTP auth surface.
type AuthConfig struct {
	TrustProxy   bool   `yaml:"trust_proxy" env:"VIDRA_AUTH_TRUST_PROXY" env-default:"false"`
	CookieSecure bool   `yaml:"cookie_secure" env:"VIDRA_AUTH_COOKIE_SECURE" env-default:"true"`
	CookieDomain string `yaml:"cookie_domain" env:"VIDRA_AUTH_COOKIE_DOMAIN"`
	UploadDir    string `yaml:"upload_dir" env:"VIDRA_AUTH_UPLOAD_DIR"`

	MaxBodyBytes   int64 `yaml:"max_body_bytes" env:"VIDRA_AUTH_MAX_BODY_BYTES" env-default:"1048576"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"VIDRA_AUTH_MAX_UPLOAD_BYTES" env-default:"16777216"`

	LoginIPMax    int           `yaml:"login_ip_max" env:"VIDRA_AUTH_LOGIN_IP_MAX" env-default:"20"`
	LoginIPWindow time.Duration `yaml:"login_ip_window" env:"VIDRA_AUTH_LOGIN_IP_WINDOW" env-default:"5m"`
	LoginIDMax    int           `yaml:"login_id_max" env:"VIDRA_AUTH_LOGIN_ID_MAX" env-default:"5"`
	LoginIDWindow time.Duration `yaml:"login_id_window" env:"VIDRA_AUTH_LOGIN_ID_WINDOW" env-default:"15m"`
}

// Load reads the config file named by -config / VIDRA_CONFIG_PATH if one is
// set, then applies environment overrides. Without a file it reads the
// environment alone.
func Load() (Config, error) {
	return loadFrom(configPath())
}

func loadFrom(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, cfg.validate()
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.IsDev() {
		return nil
	}
	// Outside dev the token secrets must be explicit.
	if c.Session.AccessSecret == "" || c.Session.RefreshSecret == "" || c.Session.RefreshHashKey == "" {
		return fmt.Errorf("env %q requires VIDRA_ACCESS_TOKEN_SECRET, VIDRA_REFRESH_TOKEN_SECRET and VIDRA_REFRESH_HASH_KEY", c.Env)
	}
	return nil
}

// IsDev reports whether the process runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "local" || c.Env == ""
}

func configPath() string {
	var path string
	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("VIDRA_CONFIG_PATH")
	}
	return path
}
