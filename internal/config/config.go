package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment    string `envconfig:"ENV" default:"development"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	DBDSN          string `envconfig:"DB_DSN" required:"true"`
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`
	PublicBaseURL  string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	CatalogPath    string `envconfig:"CATALOG_PATH" default:"configs/catalog.yaml"`

	Acquiring
	Payments

	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	AdminChatID   int64  `envconfig:"ADMIN_CHAT_ID"`

	RabbitURL      string `envconfig:"RABBIT_URL"`
	NotifyExchange string `envconfig:"NOTIFY_EXCHANGE" default:"paybook.events"`

	RedisURL           string `envconfig:"REDIS_URL"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"20"`
}

// Acquiring параметры терминала эквайринга
type Acquiring struct {
	APIURL      string        `envconfig:"ACQUIRING_API_URL" default:"https://securepay.tinkoff.ru/v2"`
	TerminalKey string        `envconfig:"ACQUIRING_TERMINAL_KEY" required:"true"`
	Password    string        `envconfig:"ACQUIRING_PASSWORD" required:"true"`
	Timeout     time.Duration `envconfig:"ACQUIRING_TIMEOUT" default:"15s"`
}

// Payments параметры жизненного цикла платёжной сессии
type Payments struct {
	ExpirationMinutes int           `envconfig:"PAYMENT_EXPIRATION_MINUTES" default:"30"`
	MinAmount         int64         `envconfig:"PAYMENT_MIN_AMOUNT" default:"100"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
}

// ExpirationWindow возвращает время жизни сессии
func (p Payments) ExpirationWindow() time.Duration {
	return time.Duration(p.ExpirationMinutes) * time.Minute
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	if cfg.Payments.ExpirationMinutes <= 0 {
		return nil, fmt.Errorf("PAYMENT_EXPIRATION_MINUTES must be positive")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
