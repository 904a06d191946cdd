package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Env  string `mapstructure:"env"`
	HTTP HTTP   `mapstructure:"http"`
	Log  Log    `mapstructure:"log"`
	DB   DB     `mapstructure:"db"`
	Auth Auth   `mapstructure:"auth"`

	Camera      Camera      `mapstructure:"camera"`
	Barrier     Barrier     `mapstructure:"barrier"`
	Recognition Recognition `mapstructure:"recognition"`
	Parking     Parking     `mapstructure:"parking"`
}

type HTTP struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type DB struct {
	DSN string `mapstructure:"dsn"`
}

type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Camera struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Barrier struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Recognition struct {
	ALPRPath            string  `mapstructure:"alpr_path"`
	Region              string  `mapstructure:"region"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MinBoxWidth         int     `mapstructure:"min_box_width"`
	MinBoxHeight        int     `mapstructure:"min_box_height"`
}

type Parking struct {
	ReservationTimeoutMinutes int  `mapstructure:"reservation_timeout_minutes"`
	SweepIntervalSeconds      int  `mapstructure:"sweep_interval_seconds"`
	EventRetentionDays        int  `mapstructure:"event_retention_days"`
	SeedDemoData              bool `mapstructure:"seed_demo_data"`
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from an optional config file plus PARKING_*
// environment variables, falling back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("db.dsn", "host=localhost port=5432 user=postgres dbname=parking sslmode=disable")
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("camera.url", "")
	v.SetDefault("camera.username", "")
	v.SetDefault("camera.password", "")

	v.SetDefault("barrier.url", "")
	v.SetDefault("barrier.api_key", "")
	v.SetDefault("barrier.timeout_seconds", 5)

	v.SetDefault("recognition.alpr_path", "alpr")
	v.SetDefault("recognition.region", "eu")
	v.SetDefault("recognition.confidence_threshold", 80.0)
	v.SetDefault("recognition.min_box_width", 100)
	v.SetDefault("recognition.min_box_height", 30)

	v.SetDefault("parking.reservation_timeout_minutes", 15)
	v.SetDefault("parking.sweep_interval_seconds", 60)
	v.SetDefault("parking.event_retention_days", 90)
	v.SetDefault("parking.seed_demo_data", false)

	v.SetEnvPrefix("PARKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
