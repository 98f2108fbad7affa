package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Auth     Auth     `yaml:"auth"`
	WeChat   WeChat   `yaml:"wechat"`
	Telegram Telegram `yaml:"telegram"`
	Calendar Calendar `yaml:"calendar"`
	Worker   Worker   `yaml:"worker"`
	Notifier Notifier `yaml:"notifier"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"schoolbus-api"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// SlogLevel maps the configured level name; unknown names mean info.
func (l Log) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"schoolbus"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"10"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	OrderTTL time.Duration `yaml:"order_ttl" env:"REDIS_ORDER_TTL" env-default:"30s"`
}

// Kafka configures the event topic. StartOffset ("earliest" or "latest")
// applies only when the consumer group has no committed offset yet.
type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic       string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"schoolbus-events"`
	GroupID     string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"schoolbus-notifier"`
	StartOffset string   `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type WeChat struct {
	BaseURL           string        `yaml:"base_url" env:"WECHAT_PAY_BASE_URL" env-default:"https://api.mch.weixin.qq.com"`
	AppID             string        `yaml:"app_id" env:"WECHAT_APP_ID"`
	AppSecret         string        `yaml:"app_secret" env:"WECHAT_APP_SECRET"`
	MchID             string        `yaml:"mch_id" env:"WECHAT_MCH_ID"`
	MchSerialNo       string        `yaml:"mch_serial_no" env:"WECHAT_MCH_SERIAL_NO"`
	PrivateKey        string        `yaml:"private_key" env:"WECHAT_PRIVATE_KEY"`
	PlatformSerialNo  string        `yaml:"platform_serial_no" env:"WECHAT_PLATFORM_SERIAL_NO"`
	PlatformPublicKey string        `yaml:"platform_public_key" env:"WECHAT_PLATFORM_PUBLIC_KEY"`
	APIv3Key          string        `yaml:"api_v3_key" env:"WECHAT_API_V3_KEY"`
	NotifyURL         string        `yaml:"notify_url" env:"WECHAT_NOTIFY_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"WECHAT_TIMEOUT" env-default:"10s"`

	// Official account template messages.
	MessageAppID           string `yaml:"message_app_id" env:"WECHAT_MESSAGE_APP_ID"`
	MessageAppSecret       string `yaml:"message_app_secret" env:"WECHAT_MESSAGE_APP_SECRET"`
	RefundTemplateID       string `yaml:"refund_template_id" env:"WECHAT_REFUND_TEMPLATE_ID"`
	VerificationTemplateID string `yaml:"verification_template_id" env:"WECHAT_VERIFICATION_TEMPLATE_ID"`
}

type Telegram struct {
	Token       string `yaml:"token" env:"TELEGRAM_TOKEN"`
	AdminChatID int64  `yaml:"admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`
}

type Calendar struct {
	TimeZone string `yaml:"time_zone" env:"CALENDAR_TIME_ZONE" env-default:"Asia/Shanghai"`
}

type Worker struct {
	BatchSize    int           `yaml:"batch_size" env:"WORKER_BATCH_SIZE" env-default:"10"`
	PollInterval time.Duration `yaml:"poll_interval" env:"WORKER_POLL_INTERVAL" env-default:"1s"`
	StuckAfter   time.Duration `yaml:"stuck_after" env:"WORKER_STUCK_AFTER" env-default:"5m"`
	MetricsPort  string        `yaml:"metrics_port" env:"WORKER_METRICS_PORT" env-default:"9093"`
}

type Notifier struct {
	MetricsPort string `yaml:"metrics_port" env:"NOTIFIER_METRICS_PORT" env-default:"9094"`
}

// New loads .env (if present), then config.yaml, then environment overrides.
// CONFIG_PATH selects another yaml file.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	cfg := &Config{}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	return cfg, nil
}
