package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	Redis    RedisConfig    `yaml:"redis"`
	Mail     MailConfig     `yaml:"mail"`
	Storage  StorageConfig  `yaml:"storage"`
	Payment  PaymentConfig  `yaml:"payment"`
	App      AppConfig      `yaml:"app"`
	Business BusinessConfig `yaml:"business"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Mode     string `yaml:"mode"` // debug, release, test
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	Driver         string `yaml:"driver"` // sqlite, mysql, postgres
	DSN            string `yaml:"dsn"`
	Migrations     string `yaml:"migrations"` // auto, sql
	MigrationsPath string `yaml:"migrations_path"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessExpireHour  int    `yaml:"access_expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MailConfig describes the outbound SMTP relay.
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

type StorageConfig struct {
	UploadDir          string `yaml:"upload_dir"`
	MaxUploadMB        int64  `yaml:"max_upload_mb"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3Region           string `yaml:"s3_region"`
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
}

// S3Enabled reports whether credentials and a bucket are configured.
func (s StorageConfig) S3Enabled() bool {
	return s.S3Bucket != "" && s.AWSAccessKeyID != "" && s.AWSSecretAccessKey != ""
}

type PaymentConfig struct {
	StripeSecretKey      string `yaml:"stripe_secret_key"`
	StripePublishableKey string `yaml:"stripe_publishable_key"`
	WebhookSecret        string `yaml:"webhook_secret"`
}

type AppConfig struct {
	FrontendURL   string   `yaml:"frontend_url"`
	CORSOrigins   []string `yaml:"cors_origins"`
	AdminEmail    string   `yaml:"admin_email"`
	AdminPassword string   `yaml:"admin_password"`
}

// BusinessConfig holds billing and contract defaults.
type BusinessConfig struct {
	ContractExpiryDays  int     `yaml:"contract_expiry_days"`
	PaymentDueDays      int     `yaml:"payment_due_days"`
	TaxRate             float64 `yaml:"tax_rate"`
	Currency            string  `yaml:"currency"`
	BusinessDayDueDates bool    `yaml:"business_day_due_dates"`
	HolidayCountry      string  `yaml:"holiday_country"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		// Unmarshal over the defaults so a partial file keeps sane values.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     "8080",
			Mode:     "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			DSN:            "agencyhub.db",
			Migrations:     "auto",
			MigrationsPath: "file://migrations",
		},
		JWT: JWTConfig{
			Secret:            defaultJWTSecret,
			AccessExpireHour:  24,
			RefreshExpireHour: 720,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Mail: MailConfig{
			Enabled: false,
			Host:    "smtp.gmail.com",
			Port:    587,
			From:    "noreply@alphazee.com",
			UseTLS:  true,
		},
		Storage: StorageConfig{
			UploadDir:   "uploads",
			MaxUploadMB: 16,
			S3Region:    "us-east-1",
		},
		App: AppConfig{
			FrontendURL: "http://localhost:5173",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Business: BusinessConfig{
			ContractExpiryDays: 180,
			PaymentDueDays:     30,
			TaxRate:            0.05,
			Currency:           "OMR",
			HolidayCountry:     "NONE",
		},
	}
}

func (c *Config) overrideFromEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString(&c.Server.Host, "SERVER_HOST")
	setString(&c.Server.Port, "SERVER_PORT")
	setString(&c.Server.Mode, "SERVER_MODE")
	setString(&c.Server.LogLevel, "LOG_LEVEL")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Database.Migrations, "DB_MIGRATIONS")
	setString(&c.JWT.Secret, "JWT_SECRET")

	setString(&c.Mail.Host, "MAIL_SERVER")
	setInt(&c.Mail.Port, "MAIL_PORT")
	setString(&c.Mail.Username, "MAIL_USERNAME")
	setString(&c.Mail.Password, "MAIL_PASSWORD")
	setBool(&c.Mail.UseTLS, "MAIL_USE_TLS")
	setString(&c.Mail.From, "MAIL_DEFAULT_SENDER")
	if c.Mail.Username != "" {
		c.Mail.Enabled = true
	}
	setBool(&c.Mail.Enabled, "MAIL_ENABLED")

	setString(&c.Storage.UploadDir, "UPLOAD_FOLDER")
	setString(&c.Storage.S3Bucket, "S3_BUCKET")
	setString(&c.Storage.S3Region, "S3_REGION")
	setString(&c.Storage.AWSAccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.AWSSecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	setString(&c.Payment.StripeSecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Payment.StripePublishableKey, "STRIPE_PUBLISHABLE_KEY")
	setString(&c.Payment.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	setString(&c.App.FrontendURL, "FRONTEND_URL")
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.App.CORSOrigins = splitList(origins)
	}
	setString(&c.App.AdminEmail, "ADMIN_EMAIL")
	setString(&c.App.AdminPassword, "ADMIN_PASSWORD")

	setInt(&c.Business.ContractExpiryDays, "CONTRACT_EXPIRY_DAYS")
	setInt(&c.Business.PaymentDueDays, "PAYMENT_DUE_DAYS")
	if v := os.Getenv("TAX_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Business.TaxRate = rate
		}
	}

	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRedisURL applies redis://[user:password@]host:port[/db].
func (c *Config) parseRedisURL(raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Redis.Addr = u.Host
	if pw, ok := u.User.Password(); ok {
		c.Redis.Password = pw
	}
	if db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/")); err == nil {
		c.Redis.DB = db
	}
}

const defaultJWTSecret = "agencyhub-secret-key-change-in-production"

// Validate rejects settings that are unsafe or unusable. The default JWT
// secret is only tolerated outside release mode.
func (c *Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.Database.Migrations {
	case "auto", "sql":
	default:
		problems = append(problems, fmt.Sprintf("database.migrations must be auto or sql, got %q", c.Database.Migrations))
	}
	if c.Server.Mode == "release" && (c.JWT.Secret == defaultJWTSecret || len(c.JWT.Secret) < 32) {
		problems = append(problems, "jwt.secret must be set to at least 32 characters in release mode")
	}
	if c.JWT.AccessExpireHour <= 0 || c.JWT.RefreshExpireHour < c.JWT.AccessExpireHour {
		problems = append(problems, "jwt lifetimes must be positive and refresh must outlive access")
	}
	if c.Business.TaxRate < 0 || c.Business.TaxRate >= 1 {
		problems = append(problems, "business.tax_rate must be in [0, 1)")
	}
	if c.Business.PaymentDueDays <= 0 || c.Business.ContractExpiryDays <= 0 {
		problems = append(problems, "business due and expiry days must be positive")
	}
	if c.LDAP.Enabled && (c.LDAP.Host == "" || c.LDAP.BaseDN == "") {
		problems = append(problems, "ldap.host and ldap.base_dn are required when LDAP is enabled")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}
