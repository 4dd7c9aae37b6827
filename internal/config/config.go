package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Logger   LoggerConfig   `yaml:"logger"`
	Import   ImportConfig   `yaml:"import"`
	S3       S3Config       `yaml:"s3"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"` // debug, release
	AllowOrigins    []string      `yaml:"allow_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// GetDSN builds the postgres URL used by both gorm and golang-migrate
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL string `yaml:"url"` // empty disables the shared permission cache
}

type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	PasswordResetTTL   time.Duration `yaml:"password_reset_ttl"`
	PermissionCacheTTL time.Duration `yaml:"permission_cache_ttl"`
	SecureCookies      bool          `yaml:"secure_cookies"`
	LoginPath          string        `yaml:"login_path"`
	PasswordResetURL   string        `yaml:"password_reset_url"` // link base mailed to users

	// bootstrap administrator, created on startup when no user has the admin role
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type ImportConfig struct {
	ChunkSize     int   `yaml:"chunk_size"`
	MaxUploadSize int64 `yaml:"max_upload_size"` // bytes
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // MinIO or other S3-compatible endpoint
	Prefix   string `yaml:"prefix"`

	// static credentials; required with Endpoint, otherwise the default AWS chain is used
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Enabled reports whether uploaded import files are archived
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type JobsConfig struct {
	TokenCleanupSchedule string `yaml:"token_cleanup_schedule"` // cron spec, empty disables
}

// Default returns the configuration used when no file or env overrides exist
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Mode:            "debug",
			AllowOrigins:    []string{"http://localhost:5173"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "workshopdesk",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			AccessTokenTTL:     24 * time.Hour,
			RefreshTokenTTL:    7 * 24 * time.Hour,
			PasswordResetTTL:   time.Hour,
			PermissionCacheTTL: 5 * time.Minute,
			LoginPath:          "/api/v1/login",
			PasswordResetURL:   "http://localhost:5173/password/reset",
			AdminName:          "Administrator",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Import: ImportConfig{
			ChunkSize:     100,
			MaxUploadSize: 10 << 20,
		},
		Jobs: JobsConfig{
			TokenCleanupSchedule: "@hourly",
		},
	}
}

// Load reads the YAML file at path (optional), then configs/.env, then the process environment.
// Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// .env is optional; variables may come from the container environment
	_ = godotenv.Load("configs/.env")

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")
	if origins := os.Getenv("CORS_ALLOW_ORIGINS"); origins != "" {
		cfg.Server.AllowOrigins = splitList(origins)
	}

	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setBool(&cfg.Database.AutoMigrate, "DB_AUTO_MIGRATE")

	setString(&cfg.Redis.URL, "REDIS_URL")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setBool(&cfg.Auth.SecureCookies, "SECURE_COOKIES")
	setString(&cfg.Auth.PasswordResetURL, "PASSWORD_RESET_URL")
	setString(&cfg.Auth.AdminName, "ADMIN_NAME")
	setString(&cfg.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&cfg.Auth.AdminPassword, "ADMIN_PASSWORD")

	setString(&cfg.Logger.Level, "LOG_LEVEL")
	setString(&cfg.Logger.Format, "LOG_FORMAT")
	setString(&cfg.Logger.Output, "LOG_OUTPUT")

	if v := os.Getenv("IMPORT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Import.ChunkSize = n
		}
	}

	setString(&cfg.S3.Bucket, "S3_BUCKET")
	setString(&cfg.S3.Region, "S3_REGION")
	setString(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3.SecretKey, "S3_SECRET_KEY")

	setString(&cfg.Jobs.TokenCleanupSchedule, "TOKEN_CLEANUP_SCHEDULE")
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		if c.Server.Mode == "release" {
			return fmt.Errorf("config: JWT_SECRET is required in release mode")
		}
		c.Auth.JWTSecret = "default_super_secret_key" // development fallback only
	}
	if c.Import.ChunkSize <= 0 {
		return fmt.Errorf("config: import.chunk_size must be positive, got %d", c.Import.ChunkSize)
	}
	if !strings.HasPrefix(c.Auth.LoginPath, "/") {
		return fmt.Errorf("config: auth.login_path must be an absolute path, got %q", c.Auth.LoginPath)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
