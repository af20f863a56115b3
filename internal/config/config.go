package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"QUIZ_SERVER_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"QUIZ_REDIS_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"QUIZ_POSTGRES_"`
	Quiz     QuizConfig     `yaml:"quiz" envPrefix:"QUIZ_SESSION_"`
	Scoring  ScoringConfig  `yaml:"scoring" envPrefix:"QUIZ_SCORING_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"QUIZ_AUTH_"`
	Log      LogConfig      `yaml:"log" envPrefix:"QUIZ_LOG_"`
}

type ServerConfig struct {
	Port         string   `yaml:"port" env:"PORT"`
	ReadTimeout  string   `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout string   `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	CORSOrigins  []string `yaml:"corsOrigins" env:"CORS_ORIGINS"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type QuizConfig struct {
	TTL               string `yaml:"ttl" env:"QUIZ_TTL"`
	QuestionTimeLimit string `yaml:"questionTimeLimit" env:"QUESTION_TIME_LIMIT"`
	AutoClose         bool   `yaml:"autoClose" env:"AUTO_CLOSE"`
	Retention         string `yaml:"retention" env:"RETENTION"`
}

type ScoringConfig struct {
	BasePoints     int `yaml:"basePoints" env:"BASE_POINTS"`
	MinPoints      int `yaml:"minPoints" env:"MIN_POINTS"`
	StreakBonus    int `yaml:"streakBonus" env:"STREAK_BONUS"`
	MaxStreakBonus int `yaml:"maxStreakBonus" env:"MAX_STREAK_BONUS"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the configuration used for keys missing from the file and environment.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
			CORSOrigins:  []string{"*"},
		},
		Redis: RedisConfig{TTL: "10m"},
		Quiz: QuizConfig{
			TTL:               "10m",
			QuestionTimeLimit: "20s",
			AutoClose:         true,
			Retention:         "1h",
		},
		Scoring: ScoringConfig{
			BasePoints:     1000,
			MinPoints:      100,
			StreakBonus:    50,
			MaxStreakBonus: 250,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads YAML config from path on top of the defaults, then applies QUIZ_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
