package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database
	Worker      Worker
	Retry       Retry
	Lock        Lock
	RateLimit   RateLimit
	Admin       Admin

	ShipStation ShipStation `envPrefix:"SHIPSTATION_"`
	Shopify     Shopify     `envPrefix:"SHOPIFY_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Dir    string `env:"LOG_DIR"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"` // sqlite, mysql
	URL    string `env:"DATABASE_URL" envDefault:"ordersync.db"`
}

type Worker struct {
	Count        int           `env:"WORKER_COUNT" envDefault:"4"`
	QueueSize    int           `env:"WORKER_QUEUE_SIZE" envDefault:"1000"`
	DedupeWindow time.Duration `env:"WORKER_DEDUPE_WINDOW" envDefault:"5m"`
	JobTimeout   time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"300s"`
}

type Retry struct {
	MaxRetries int           `env:"RETRY_MAX" envDefault:"5"`
	BaseDelay  time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
}

type Lock struct {
	TTL  time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	Wait time.Duration `env:"LOCK_WAIT" envDefault:"2s"`
	Poll time.Duration `env:"LOCK_POLL" envDefault:"100ms"`
}

type RateLimit struct {
	MaxWait time.Duration `env:"RATE_LIMIT_MAX_WAIT" envDefault:"30s"`
	Poll    time.Duration `env:"RATE_LIMIT_POLL" envDefault:"100ms"`
	Store   string        `env:"RATE_LIMIT_STORE" envDefault:"db"` // db, memory
}

type Admin struct {
	JWTSecret string `env:"ADMIN_JWT_SECRET"`
}

type ShipStation struct {
	BaseURL string  `env:"BASE_URL" envDefault:"https://ssapi.shipstation.com"`
	APIKey  string  `env:"API_KEY"`
	RPS     float64 `env:"RPS" envDefault:"0.66"`
}

type Shopify struct {
	APIVersion string `env:"API_VERSION" envDefault:"2024-01"`
}
