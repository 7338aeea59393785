package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	// Config holds every runtime setting for the API and worker binaries.
	Config struct {
		HTTP     HTTP
		Log      Log
		Store    Store
		Queue    Queue
		Worker   Worker
		Workflow Workflow
		Metrics  Metrics
	}

	HTTP struct {
		Port     string `env:"HTTP_PORT" envDefault:"8080"`
		RunLocal bool   `env:"RUN_LOCAL" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
		JSON  bool   `env:"LOG_JSON" envDefault:"true"`
	}

	Store struct {
		OrdersTable        string `env:"ORDERS_TABLE" envDefault:"orders"`
		SubscriptionsTable string `env:"SUBSCRIPTIONS_TABLE" envDefault:"subscriptions"`
	}

	Queue struct {
		URL               string        `env:"ORDERS_QUEUE_URL"`
		DeadLetterURL     string        `env:"ORDERS_DLQ_URL"`
		MaxReceives       int           `env:"QUEUE_MAX_RECEIVES" envDefault:"3"`
		VisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"30s"`
		WaitTime          time.Duration `env:"QUEUE_WAIT_TIME" envDefault:"5s"`
		BatchSize         int           `env:"QUEUE_BATCH_SIZE" envDefault:"10"`
	}

	Worker struct {
		Count        int           `env:"WORKER_COUNT" envDefault:"4"`
		PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`
		RunLambda    bool          `env:"RUN_LAMBDA" envDefault:"false"`
	}

	Workflow struct {
		// MaxOrderValue is an exclusive upper bound on accepted order value.
		MaxOrderValue      float64       `env:"ORDER_MAX_VALUE" envDefault:"10000"`
		HighValueThreshold float64       `env:"HIGH_VALUE_THRESHOLD" envDefault:"500"`
		PaymentSuccessRate float64       `env:"PAYMENT_SUCCESS_RATE" envDefault:"0.9"`
		PaymentLatency     time.Duration `env:"PAYMENT_LATENCY" envDefault:"200ms"`
	}

	Metrics struct {
		Enabled   bool   `env:"METRICS_ENABLED" envDefault:"true"`
		Namespace string `env:"METRICS_NAMESPACE" envDefault:"OrderPipeline"`
	}
)

// Load reads configuration from the environment. A .env file is applied
// first when present so local runs don't need exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	return cfg, nil
}
