package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Groq      GroqConfig
	Worker    WorkerConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds, bound on a single generation call
}

type WorkerConfig struct {
	Concurrency    int // bound on concurrently running extraction jobs
	ExtractTimeout int // seconds
}

type UploadConfig struct {
	MaxBytes int
	Sync     bool // process uploads inline instead of queueing a job
}

type RateLimitConfig struct {
	UploadPerHour int
	ComputePerMin int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.1-8b-instant")
	viper.SetDefault("groq.timeout", 15)
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.extract_timeout", 60)
	viper.SetDefault("upload.max_bytes", 10*1024*1024)
	viper.SetDefault("upload.sync", false)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.compute_per_min", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
			Timeout: viper.GetInt("groq.timeout"),
		},
		Worker: WorkerConfig{
			Concurrency:    viper.GetInt("worker.concurrency"),
			ExtractTimeout: viper.GetInt("worker.extract_timeout"),
		},
		Upload: UploadConfig{
			MaxBytes: viper.GetInt("upload.max_bytes"),
			Sync:     viper.GetBool("upload.sync"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
			ComputePerMin: viper.GetInt("ratelimit.compute_per_min"),
		},
	}

	return cfg, nil
}
