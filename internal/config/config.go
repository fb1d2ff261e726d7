package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	Database Database `envPrefix:"DB_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	Payout   Payout   `envPrefix:"PAYOUT_"`
	Stripe   Stripe   `envPrefix:"STRIPE_"`
	Paypal   Paypal   `envPrefix:"PAYPAL_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Kafka    Kafka    `envPrefix:"KAFKA_"`
	Worker   Worker   `envPrefix:"WORKER_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsDevelopment() bool {
	return e.Name == "development" || e.Name == "test"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql, postgres
	URL             string        `env:"URL" envDefault:"market.db"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Payout struct {
	Provider           string        `env:"PROVIDER" envDefault:"none"` // stripe, paypal, none
	Currency           string        `env:"CURRENCY" envDefault:"usd"`
	ConfirmationWindow time.Duration `env:"CONFIRMATION_WINDOW" envDefault:"30s"`
	VerticalsFile      string        `env:"VERTICALS_FILE" envDefault:"verticals.yaml"`
	DefaultFeePercent  string        `env:"DEFAULT_FEE_PERCENT" envDefault:"6.5"`
	LockTTL            time.Duration `env:"LOCK_TTL" envDefault:"30s"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Kafka struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	NotificationTopic string   `env:"NOTIFICATION_TOPIC" envDefault:"market.notifications"`
}

type Worker struct {
	RetryInterval    time.Duration `env:"RETRY_INTERVAL" envDefault:"1m"`
	RetryBatch       int           `env:"RETRY_BATCH" envDefault:"50"`
	RetryConcurrency int           `env:"RETRY_CONCURRENCY" envDefault:"4"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS" envDefault:"5"`
}
