// Package config loads the server configuration.
//
// PRECEDENCE (lowest to highest):
//  1. Defaults()
//  2. the TOML file passed with --config, if any
//  3. variables from a .env file in the working directory, if present
//  4. the process environment
//
// godotenv never overrides variables that are already set, so a real
// environment variable always beats the same key in .env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	DB      DBConfig      `toml:"db"`
	Auth    AuthConfig    `toml:"auth"`
	GitHub  GitHubConfig  `toml:"github"`
	Storage StorageConfig `toml:"storage"`
	S3      S3Config      `toml:"s3"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Leave it off unless a proxy in front rewrites them.
	TrustProxy bool `toml:"trust_proxy"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	// SecureCookie marks the token cookie Secure; enable behind HTTPS.
	SecureCookie bool `toml:"secure_cookie"`
}

type GitHubConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackURL  string `toml:"callback_url"`
}

// Enabled reports whether GitHub login is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type StorageConfig struct {
	Backend           string `toml:"backend"` // "local" or "s3"
	MediaDir          string `toml:"media_dir"`
	MediaURL          string `toml:"media_url"`
	MaxUploadMB       int    `toml:"max_upload_mb"`
	MaxImageDimension int    `toml:"max_image_dimension"`
}

type S3Config struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	PublicURL string `toml:"public_url"`
}

type LogConfig struct {
	Level  slog.Level `toml:"level"`
	Format string     `toml:"format"` // "text" or "json"
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      8080,
			RateLimit: 20,
			RateBurst: 40,
		},
		DB: DBConfig{Path: "data/recipes.db"},
		Storage: StorageConfig{
			Backend:           "local",
			MediaDir:          "data/media",
			MediaURL:          "/media",
			MaxUploadMB:       10,
			MaxImageDimension: 2048,
		},
		Log: LogConfig{Level: slog.LevelInfo, Format: "text"},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: opening %s: %w", path, err)
		}
		err = toml.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			return cfg, fmt.Errorf("config: decoding %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: loading .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	setInt("PORT", &cfg.Server.Port)
	setInt("RATE_BURST", &cfg.Server.RateBurst)
	if v, ok := os.LookupEnv("RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: RATE_LIMIT=%q is not a number", v))
		} else {
			cfg.Server.RateLimit = f
		}
	}
	if v, ok := os.LookupEnv("TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: TRUST_PROXY=%q is not a boolean", v))
		} else {
			cfg.Server.TrustProxy = b
		}
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}

	setString("DB_PATH", &cfg.DB.Path)

	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	if v, ok := os.LookupEnv("SECURE_COOKIE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: SECURE_COOKIE=%q is not a boolean", v))
		} else {
			cfg.Auth.SecureCookie = b
		}
	}

	setString("GITHUB_CLIENT_ID", &cfg.GitHub.ClientID)
	setString("GITHUB_CLIENT_SECRET", &cfg.GitHub.ClientSecret)
	setString("GITHUB_CALLBACK_URL", &cfg.GitHub.CallbackURL)

	setString("STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("MEDIA_DIR", &cfg.Storage.MediaDir)
	setString("MEDIA_URL", &cfg.Storage.MediaURL)
	setInt("MAX_UPLOAD_MB", &cfg.Storage.MaxUploadMB)
	setInt("MAX_IMAGE_DIMENSION", &cfg.Storage.MaxImageDimension)

	setString("S3_BUCKET", &cfg.S3.Bucket)
	setString("S3_REGION", &cfg.S3.Region)
	setString("S3_ENDPOINT", &cfg.S3.Endpoint)
	setString("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setString("S3_SECRET_KEY", &cfg.S3.SecretKey)
	setString("S3_PUBLIC_URL", &cfg.S3.PublicURL)

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := cfg.Log.Level.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("config: LOG_LEVEL=%q: %w", v, err))
		}
	}
	setString("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports settings the server cannot start with. The JWT secret is
// checked by the caller, since createuser does not need one.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.MediaDir == "" {
			errs = append(errs, errors.New("media_dir is required for the local storage backend"))
		}
	case "s3":
		if c.S3.Bucket == "" || c.S3.Region == "" {
			errs = append(errs, errors.New("s3 bucket and region are required for the s3 storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("max_upload_mb must be positive"))
	}
	if c.Storage.MaxImageDimension < 0 {
		errs = append(errs, errors.New("max_image_dimension cannot be negative"))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("rate limit settings cannot be negative"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by the log section.
func (l LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.Level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
