package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	WorkerAuthToken   string
	WorkerConcurrency int
	JobTimeout        time.Duration
}

// fileConfig mirrors Config for the optional CONFIG_FILE overlay.
// Environment variables always win over file values.
type fileConfig struct {
	AppEnv        string `yaml:"app_env"`
	HTTPAddr      string `yaml:"http_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	DataDir       string `yaml:"data_dir"`

	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseServiceKey string `yaml:"supabase_service_key"`
	SupabaseBucket     string `yaml:"supabase_bucket"`

	WorkerAuthToken   string `yaml:"worker_auth_token"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
	JobTimeout        string `yaml:"job_timeout"`
}

func Load() Config {
	cfg := Config{
		AppEnv:            "development",
		HTTPAddr:          ":8081",
		RedisAddr:         "127.0.0.1:6379",
		DataDir:           "./data",
		SupabaseBucket:    "automation-screenshots",
		WorkerConcurrency: 2,
		JobTimeout:        10 * time.Minute,
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		applyFile(&cfg, path)
	}
	applyEnv(&cfg)
	return cfg
}

func applyFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return
	}
	setString(&cfg.AppEnv, fc.AppEnv)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.RedisPassword, fc.RedisPassword)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.SupabaseURL, fc.SupabaseURL)
	setString(&cfg.SupabaseServiceKey, fc.SupabaseServiceKey)
	setString(&cfg.SupabaseBucket, fc.SupabaseBucket)
	setString(&cfg.WorkerAuthToken, fc.WorkerAuthToken)
	if fc.WorkerConcurrency > 0 {
		cfg.WorkerConcurrency = fc.WorkerConcurrency
	}
	if d, err := time.ParseDuration(fc.JobTimeout); err == nil && d > 0 {
		cfg.JobTimeout = d
	}
}

func applyEnv(cfg *Config) {
	env(&cfg.AppEnv, "APP_ENV")
	env(&cfg.HTTPAddr, "HTTP_ADDR")
	env(&cfg.RedisAddr, "REDIS_ADDR")
	env(&cfg.RedisPassword, "REDIS_PASSWORD")
	env(&cfg.DataDir, "DATA_DIR")
	env(&cfg.SupabaseURL, "SUPABASE_URL")
	env(&cfg.SupabaseServiceKey, "SUPABASE_SERVICE_KEY")
	env(&cfg.SupabaseBucket, "SUPABASE_SCREENSHOT_BUCKET")
	env(&cfg.WorkerAuthToken, "WORKER_AUTH_TOKEN")
	if v, ok := os.LookupEnv("WORKER_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerConcurrency = n
		}
	}
	if v, ok := os.LookupEnv("JOB_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.JobTimeout = d
		}
	}
}

func env(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
