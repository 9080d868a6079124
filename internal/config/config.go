package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DBDriver         string `mapstructure:"db_driver" validate:"required,oneof=mysql postgres sqlite"`
	DBHost           string `mapstructure:"db_host"`
	DBPort           string `mapstructure:"db_port"`
	DBUser           string `mapstructure:"db_user"`
	DBPassword       string `mapstructure:"db_password"`
	DBName           string `mapstructure:"db_name"`
	DBPath           string `mapstructure:"db_path" validate:"required_if=DBDriver sqlite"`
	RedisHost        string `mapstructure:"redis_host" validate:"required"`
	RedisPort        string `mapstructure:"redis_port" validate:"required,numeric"`
	SessionSecret    string `mapstructure:"session_secret" validate:"required"`
	GinMode          string `mapstructure:"gin_mode" validate:"oneof=debug release test"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	Port             string `mapstructure:"port" validate:"required,numeric"`
	LogLevel         string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Timezone         string `mapstructure:"timezone" validate:"required,timezone"`
	DailyTriggerTime string `mapstructure:"daily_trigger_time" validate:"required,datetime=15:04"`
}

var defaults = map[string]string{
	"db_driver":          "mysql",
	"db_host":            "localhost",
	"db_port":            "3306",
	"db_user":            "taskuser",
	"db_password":        "taskpassword",
	"db_name":            "microtask",
	"db_path":            "microtask.db",
	"redis_host":         "localhost",
	"redis_port":         "6379",
	"session_secret":     "default-secret-key-change-me",
	"gin_mode":           "debug",
	"openai_api_key":     "",
	"port":               "8080",
	"log_level":          "info",
	"timezone":           "UTC",
	"daily_trigger_time": "00:00",
}

// Load reads configuration from the environment and an optional config.yaml.
// Environment variables take precedence over the file.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Location returns the zone that defines calendar days.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RedisAddr joins the Redis host and port.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
