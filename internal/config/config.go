package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Scheduler tuning
	SolverTimeBudgetSeconds  int `mapstructure:"SOLVER_TIME_BUDGET_SECONDS"`
	HorizonMaxDays           int `mapstructure:"HORIZON_MAX_DAYS"`
	SectionCapacityRoute     int `mapstructure:"SECTION_CAPACITY_ROUTE"`
	SectionCapacityMecanique int `mapstructure:"SECTION_CAPACITY_MECANIQUE"`

	// NotifyRecipient receives planning and delay notifications.
	NotifyRecipient string `mapstructure:"NOTIFY_RECIPIENT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SOLVER_TIME_BUDGET_SECONDS", 30)
	v.SetDefault("HORIZON_MAX_DAYS", 60)
	v.SetDefault("SECTION_CAPACITY_ROUTE", 5)
	v.SetDefault("SECTION_CAPACITY_MECANIQUE", 3)
	v.SetDefault("NOTIFY_RECIPIENT", "planning@lab.local")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SOLVER_TIME_BUDGET_SECONDS")
	v.BindEnv("HORIZON_MAX_DAYS")
	v.BindEnv("SECTION_CAPACITY_ROUTE")
	v.BindEnv("SECTION_CAPACITY_MECANIQUE")
	v.BindEnv("NOTIFY_RECIPIENT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the scheduler tuning values are usable. The solver
// refuses to run with a non-positive time budget, and a horizon cap above a
// year would defeat the bounded-search guarantee.
func (c *Config) Validate() error {
	if c.SolverTimeBudgetSeconds <= 0 {
		return fmt.Errorf("SOLVER_TIME_BUDGET_SECONDS must be positive, got %d", c.SolverTimeBudgetSeconds)
	}
	if c.HorizonMaxDays <= 0 || c.HorizonMaxDays > 366 {
		return fmt.Errorf("HORIZON_MAX_DAYS must be in 1..366, got %d", c.HorizonMaxDays)
	}
	if c.SectionCapacityRoute <= 0 {
		return fmt.Errorf("SECTION_CAPACITY_ROUTE must be positive, got %d", c.SectionCapacityRoute)
	}
	if c.SectionCapacityMecanique <= 0 {
		return fmt.Errorf("SECTION_CAPACITY_MECANIQUE must be positive, got %d", c.SectionCapacityMecanique)
	}
	return nil
}
