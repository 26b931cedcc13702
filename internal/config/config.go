package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Values come from the
// environment first; MOORING_CONFIG may point at a yaml file that
// overrides them.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`

	WarningPct       float64 `yaml:"warning_pct"`
	CriticalMaxRatio float64 `yaml:"critical_max_ratio"`

	LifespanDecayPerHour float64 `yaml:"lifespan_decay_per_hour"`
	LifespanWarningPct   float64 `yaml:"lifespan_warning_pct"`

	SimInterval   time.Duration `yaml:"sim_interval"`
	SimSeed       int64         `yaml:"sim_seed"`
	SimFramesFile string        `yaml:"sim_frames_file"`
	SimAutoStart  bool          `yaml:"sim_auto_start"`

	SeedHistoryWindow time.Duration `yaml:"seed_history_window"`
	SeedHistoryStep   time.Duration `yaml:"seed_history_step"`

	DownsampleCap int `yaml:"downsample_cap"`

	AlertWebhookURL string        `yaml:"alert_webhook_url"`
	NotifyCooldown  time.Duration `yaml:"notify_cooldown"`
}

// Load builds the configuration from env plus the optional yaml overlay.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		WarningPct:           getenvFloatDefault("TENSION_WARNING_PCT", 120),
		CriticalMaxRatio:     getenvFloatDefault("TENSION_CRITICAL_MAX_RATIO", 0.9),
		LifespanDecayPerHour: getenvFloatDefault("LIFESPAN_DECAY_PER_HOUR", 0.05),
		LifespanWarningPct:   getenvFloatDefault("LIFESPAN_WARNING_PCT", 20),
		SimInterval:          getenvDurationDefault("SIM_INTERVAL", 30*time.Second),
		SimSeed:              getenvInt64Default("SIM_SEED", 0),
		SimFramesFile:        os.Getenv("SIM_FRAMES_FILE"),
		SimAutoStart:         getenvBoolDefault("SIM_AUTO_START", true),
		SeedHistoryWindow:    getenvDurationDefault("SEED_HISTORY_WINDOW", 24*time.Hour),
		SeedHistoryStep:      getenvDurationDefault("SEED_HISTORY_STEP", 5*time.Minute),
		DownsampleCap:        getenvIntDefault("CHART_DOWNSAMPLE_CAP", 500),
		AlertWebhookURL:      os.Getenv("ALERT_WEBHOOK_URL"),
		NotifyCooldown:       getenvDurationDefault("NOTIFY_COOLDOWN", 5*time.Minute),
	}

	if path := os.Getenv("MOORING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	if c.WarningPct <= 0 {
		return errors.New("config: warning pct must be positive")
	}
	if c.CriticalMaxRatio <= 0 || c.CriticalMaxRatio > 1 {
		return errors.New("config: critical max ratio must be in (0, 1]")
	}
	if c.SimInterval <= 0 {
		return errors.New("config: sim interval must be positive")
	}
	if c.DownsampleCap < 0 {
		return errors.New("config: downsample cap must not be negative")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
