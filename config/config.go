package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port         string       `yaml:"port" env:"PORT" env-default:"8080"`
	JWTSecret    string       `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
	Log          Log          `yaml:"log"`
	Database     Database     `yaml:"database"`
	Redis        Redis        `yaml:"redis"`
	Kafka        Kafka        `yaml:"kafka"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	FlightCache  FlightCache  `yaml:"flight_cache"`
	Progress     Progress     `yaml:"progress"`
	Worker       Worker       `yaml:"worker"`
	Amadeus      Amadeus      `yaml:"amadeus"`
	NYTimes      NYTimes      `yaml:"nytimes"`
	LLM          LLM          `yaml:"llm"`
	Metrics      Metrics      `yaml:"metrics"`
}

type Log struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Pretty      bool   `yaml:"pretty" env:"LOG_PRETTY" env-default:"false"`
	ServiceName string `yaml:"service_name" env:"LOG_SERVICE_NAME" env-default:"wanderwise"`
}

type Database struct {
	User         string `yaml:"user" env:"DB_USER" env-required:"true"`
	Password     string `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
	DatabaseName string `yaml:"database_name" env:"DB_NAME" env-required:"true"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`

	// Connection Pool Settings
	MaxOpenConns    int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime_minutes" env:"DB_CONN_MAX_LIFETIME" env-default:"30"`
}

func (d *Database) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DatabaseName, d.SSLMode)
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

func (r *Redis) GetRedisURL() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Kafka struct {
	Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	JobTopic        string   `yaml:"job_topic" env:"KAFKA_JOB_TOPIC" env-default:"flight-search-jobs"`
	DeadLetterTopic string   `yaml:"dead_letter_topic" env:"KAFKA_DEAD_LETTER_TOPIC" env-default:"flight-search-jobs-dlq"`
	ConsumerGroup   string   `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"flight-worker"`
	MaxDeliveries   int      `yaml:"max_deliveries" env:"KAFKA_MAX_DELIVERIES" env-default:"3"`
}

// Orchestrator controls how long an API request waits for the worker.
type Orchestrator struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"ORCHESTRATOR_POLL_INTERVAL" env-default:"1s"`
	MaxWait      time.Duration `yaml:"max_wait" env:"ORCHESTRATOR_MAX_WAIT" env-default:"60s"`
}

// FlightCache holds the single lifetime used for every cached flight search.
type FlightCache struct {
	TTL time.Duration `yaml:"ttl" env:"FLIGHT_CACHE_TTL" env-default:"1h"`
}

type Progress struct {
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"PROGRESS_STREAM_TIMEOUT" env-default:"2m"`
}

type Worker struct {
	MaxWorkers      int           `yaml:"max_workers" env:"WORKER_MAX_WORKERS" env-default:"20"`
	FetchRateLimit  float64       `yaml:"fetch_rate_limit" env:"WORKER_FETCH_RATE_LIMIT" env-default:"5"`
	FetchRateBurst  int           `yaml:"fetch_rate_burst" env:"WORKER_FETCH_RATE_BURST" env-default:"5"`
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"WORKER_METRICS_INTERVAL" env-default:"30s"`
	MetricsPort     string        `yaml:"metrics_port" env:"WORKER_METRICS_PORT" env-default:"9091"`
}

type Amadeus struct {
	BaseURL      string        `yaml:"base_url" env:"AMADEUS_BASE_URL" env-default:"https://test.api.amadeus.com"`
	ClientID     string        `yaml:"client_id" env:"AMADEUS_CLIENT_ID" env-default:""`
	ClientSecret string        `yaml:"client_secret" env:"AMADEUS_CLIENT_SECRET" env-default:""`
	MaxResults   int           `yaml:"max_results" env:"AMADEUS_MAX_RESULTS" env-default:"10"`
	Timeout      time.Duration `yaml:"timeout" env:"AMADEUS_TIMEOUT" env-default:"30s"`
}

type NYTimes struct {
	BaseURL      string        `yaml:"base_url" env:"NYTIMES_BASE_URL" env-default:"https://api.nytimes.com/svc/search/v2/articlesearch.json"`
	APIKey       string        `yaml:"api_key" env:"NYTIMES_API_KEY" env-default:""`
	LookbackDays int           `yaml:"lookback_days" env:"NYTIMES_LOOKBACK_DAYS" env-default:"7"`
	Timeout      time.Duration `yaml:"timeout" env:"NYTIMES_TIMEOUT" env-default:"15s"`
}

type LLM struct {
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	APIKey  string `yaml:"api_key" env:"LLM_API_KEY" env-default:""`
	Model   string `yaml:"model" env:"LLM_MODEL" env-default:"gemini-2.0-flash"`
}

type Metrics struct {
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE" env-default:"wanderwise"`
}

func Initialise(configPath string, useEnv bool) (*Config, error) {
	cfg := &Config{}

	if useEnv {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment variables: %w", err)
		}
		return cfg, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			return cfg, nil
		}
	}

	// Fallback to environment variables
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	return cfg, nil
}
