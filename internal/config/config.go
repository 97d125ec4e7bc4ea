package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

type Config struct {
	Port                 string
	DatabaseURL          string
	LogLevel             string
	QueueMode            models.Mode
	SeedFile             string
	AutoAdvanceInterval  time.Duration
	AutoAdvanceBatchSize int
	RateLimitPerMinute   int
	RateLimitBurst       int
	VisitRateLimitPerMin int
	VisitRateLimitBurst  int
	OTLPEndpoint         string
	OTLPInsecure         bool
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// file is read first and environment variables override it.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Port:                 v.GetString("PORT"),
		DatabaseURL:          v.GetString("DB_DSN"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		QueueMode:            models.Mode(strings.ToUpper(strings.TrimSpace(v.GetString("QUEUE_MODE")))),
		SeedFile:             v.GetString("SEED_FILE"),
		AutoAdvanceInterval:  seconds(v.GetInt("AUTO_ADVANCE_INTERVAL_SECONDS")),
		AutoAdvanceBatchSize: v.GetInt("AUTO_ADVANCE_BATCH_SIZE"),
		RateLimitPerMinute:   v.GetInt("RATE_LIMIT_PER_MIN"),
		RateLimitBurst:       v.GetInt("RATE_LIMIT_BURST"),
		VisitRateLimitPerMin: v.GetInt("VISIT_RATE_LIMIT_PER_MIN"),
		VisitRateLimitBurst:  v.GetInt("VISIT_RATE_LIMIT_BURST"),
		OTLPEndpoint:         v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:         v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}
	if !cfg.QueueMode.Valid() {
		return Config{}, fmt.Errorf("QUEUE_MODE must be %s or %s, got %q", models.ModeLinear, models.ModeMultiStream, cfg.QueueMode)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("QUEUE_MODE", string(models.ModeLinear))
	v.SetDefault("AUTO_ADVANCE_INTERVAL_SECONDS", 0)
	v.SetDefault("AUTO_ADVANCE_BATCH_SIZE", 100)
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("RATE_LIMIT_BURST", 30)
	v.SetDefault("VISIT_RATE_LIMIT_PER_MIN", 600)
	v.SetDefault("VISIT_RATE_LIMIT_BURST", 120)
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}
