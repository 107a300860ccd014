// Package config loads service configuration from config.yaml and the
// environment. Environment variables win over file values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	Database struct {
		// DSN for the postgres-backed document store; empty selects the
		// in-memory store.
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		// Address of the session kv store; empty selects the in-memory store.
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`

	Session struct {
		Secret   string        `mapstructure:"secret"`
		HRTTL    time.Duration `mapstructure:"hr_ttl"`
		LocalTTL time.Duration `mapstructure:"local_ttl"`
	} `mapstructure:"session"`

	Jobs struct {
		Retention time.Duration `mapstructure:"retention"`
	} `mapstructure:"jobs"`

	Auth struct {
		CallTimeout time.Duration `mapstructure:"call_timeout"`
	} `mapstructure:"auth"`

	RateLimit struct {
		Burst     int `mapstructure:"burst"`
		PerSecond int `mapstructure:"per_second"`
	} `mapstructure:"rate_limit"`
}

func Load() (Config, error) {
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("session.hr_ttl", 12*time.Hour)
	viper.SetDefault("session.local_ttl", 2*time.Hour)
	viper.SetDefault("jobs.retention", 30*24*time.Hour)
	viper.SetDefault("auth.call_timeout", 8*time.Second)
	viper.SetDefault("rate_limit.burst", 20)
	viper.SetDefault("rate_limit.per_second", 10)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	_ = viper.ReadInConfig()

	viper.SetEnvPrefix("UNIHR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// explicit bindings
	_ = viper.BindEnv("listen_addr", "UNIHR_LISTEN_ADDR")
	_ = viper.BindEnv("database.dsn", "UNIHR_PG_DSN")
	_ = viper.BindEnv("redis.addr", "UNIHR_REDIS_ADDR")
	_ = viper.BindEnv("session.secret", "UNIHR_SESSION_SECRET")
	_ = viper.BindEnv("session.hr_ttl", "UNIHR_SESSION_HR_TTL")
	_ = viper.BindEnv("session.local_ttl", "UNIHR_SESSION_LOCAL_TTL")
	_ = viper.BindEnv("jobs.retention", "UNIHR_JOBS_RETENTION")
	_ = viper.BindEnv("auth.call_timeout", "UNIHR_AUTH_CALL_TIMEOUT")
	_ = viper.BindEnv("rate_limit.burst", "UNIHR_RATE_LIMIT_BURST")
	_ = viper.BindEnv("rate_limit.per_second", "UNIHR_RATE_LIMIT_PER_SECOND")

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		return Config{}, fmt.Errorf("config: session.secret/UNIHR_SESSION_SECRET is required")
	}
	return c, nil
}
