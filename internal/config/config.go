package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Sla       SlaConfig       `mapstructure:"sla"`
	Plans     PlansConfig     `mapstructure:"plans"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// mu guards the hot-reloadable blocks (Sla, Plans). Everything else
	// is written once at startup.
	mu sync.RWMutex
}

// SlaSettings returns a consistent copy of the SLA tuning block. Services
// read through this accessor because ApplyReload swaps the block while
// they run.
func (c *Config) SlaSettings() SlaConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Sla
}

// PlanSettings returns a consistent copy of the plan allowances.
func (c *Config) PlanSettings() PlansConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Plans
}

// ApplyReload swaps in the hot-reloadable blocks from a freshly parsed
// config file.
func (c *Config) ApplyReload(next *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sla = next.Sla
	c.Plans = next.Plans
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SlaConfig drives evaluation deadline arithmetic and the workload sweep.
// BusinessHourStart/End are carried in the settings surface but deadline
// walking excludes whole dates only; the hour window is not applied.
type SlaConfig struct {
	PremiumHours          int `mapstructure:"premium_hours"`
	DefaultHours          int `mapstructure:"default_hours"`
	BusinessHourStart     int `mapstructure:"business_hour_start"`
	BusinessHourEnd       int `mapstructure:"business_hour_end"`
	SweepIntervalMinutes  int `mapstructure:"sweep_interval_minutes"`
	ReminderWindowHours   int `mapstructure:"reminder_window_hours"`
	LowEntitlementWarning int `mapstructure:"low_entitlement_warning"`
}

// EvaluationHours picks the allocated SLA budget for a plan tier.
func (s SlaConfig) EvaluationHours(premium bool) int {
	if premium {
		return s.PremiumHours
	}
	return s.DefaultHours
}

// PlansConfig is the monthly exam allowance per plan tier.
type PlansConfig struct {
	FreeLimit     int `mapstructure:"free_limit"`
	StandardLimit int `mapstructure:"standard_limit"`
	PremiumLimit  int `mapstructure:"premium_limit"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CBSEPREP")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	applyDefaults(&cfg)

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Sla.PremiumHours == 0 {
		cfg.Sla.PremiumHours = 24
	}
	if cfg.Sla.DefaultHours == 0 {
		cfg.Sla.DefaultHours = 48
	}
	if cfg.Sla.SweepIntervalMinutes == 0 {
		cfg.Sla.SweepIntervalMinutes = 5
	}
	if cfg.Sla.ReminderWindowHours == 0 {
		cfg.Sla.ReminderWindowHours = 6
	}
	if cfg.Sla.LowEntitlementWarning == 0 {
		cfg.Sla.LowEntitlementWarning = 3
	}
	if cfg.Plans.FreeLimit == 0 {
		cfg.Plans.FreeLimit = 2
	}
	if cfg.Plans.StandardLimit == 0 {
		cfg.Plans.StandardLimit = 20
	}
	if cfg.Plans.PremiumLimit == 0 {
		cfg.Plans.PremiumLimit = 50
	}
}

// ExamLimit resolves the monthly allowance for a tier.
func (p PlansConfig) ExamLimit(tier string) int {
	switch tier {
	case "premium":
		return p.PremiumLimit
	case "standard":
		return p.StandardLimit
	default:
		return p.FreeLimit
	}
}
