package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Identity IdentityConfig `mapstructure:"identity"`
	Video    VideoConfig    `mapstructure:"video"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"required"`
	User         string `mapstructure:"user" validate:"required"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	SlotCacheTTL time.Duration `mapstructure:"slot_cache_ttl"`
}

type IdentityConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	PlanCacheTTL time.Duration `mapstructure:"plan_cache_ttl"`
}

type VideoConfig struct {
	ApplicationID string `mapstructure:"application_id"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`
	APIURL        string `mapstructure:"api_url"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// secrets are taken from the environment so they never live in the YAML
// file. Prefix: MEDIMEET_, e.g. MEDIMEET_DB_PASSWORD.
type secrets struct {
	DBPassword        string `envconfig:"DB_PASSWORD"`
	IdentityJWTSecret string `envconfig:"IDENTITY_JWT_SECRET"`
	IdentityAPIKey    string `envconfig:"IDENTITY_API_KEY"`
	VideoPrivateKey   string `envconfig:"VIDEO_PRIVATE_KEY"`
	SMTPPassword      string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var sec secrets
	if err := envconfig.Process("medimeet", &sec); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if sec.DBPassword != "" {
		config.Database.Password = sec.DBPassword
	}
	if sec.IdentityJWTSecret != "" {
		config.Identity.JWTSecret = sec.IdentityJWTSecret
	}
	if sec.IdentityAPIKey != "" {
		config.Identity.APIKey = sec.IdentityAPIKey
	}
	if sec.VideoPrivateKey != "" {
		config.Video.PrivateKeyPEM = sec.VideoPrivateKey
	}
	if sec.SMTPPassword != "" {
		config.SMTP.Password = sec.SMTPPassword
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
