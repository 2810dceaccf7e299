package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config de la API. Todo sale de variables de entorno (o de un .env en dev).
type Config struct {
	Port    string `mapstructure:"PORT"`
	AppName string `mapstructure:"APP_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Si está vacío se usa el store in-memory.
	DatabaseDSN string `mapstructure:"DB_DSN"`

	OdinBaseURL string `mapstructure:"ODIN_BASE_URL"`
	OdinAPIKey  string `mapstructure:"ODIN_API_KEY"`

	// Si no hay brokers, las notificaciones solo se loguean.
	KafkaBrokers []string `mapstructure:"NOTIFY_KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"NOTIFY_KAFKA_TOPIC"`

	PlacementExpiryInterval time.Duration `mapstructure:"PLACEMENT_EXPIRY_INTERVAL"`
	ShutdownTimeout         time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Load lee .env (si existe) y luego el entorno.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.KafkaBrokers = cleanList(cfg.KafkaBrokers)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Las keys necesitan default para que AutomaticEnv las vea en Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_NAME", "pet-custody")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("ODIN_BASE_URL", "")
	v.SetDefault("ODIN_API_KEY", "")
	v.SetDefault("NOTIFY_KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "custody-notifications")
	v.SetDefault("PLACEMENT_EXPIRY_INTERVAL", "5m")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("config: PORT is required")
	}
	if c.PlacementExpiryInterval <= 0 {
		return fmt.Errorf("config: PLACEMENT_EXPIRY_INTERVAL must be positive")
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return fmt.Errorf("config: NOTIFY_KAFKA_TOPIC is required with NOTIFY_KAFKA_BROKERS")
	}
	return nil
}

// Addr devuelve ":PORT".
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
