package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/config"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/kafka"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/redis"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/telegram"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatmsg"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
)

// Factory builds shared clients once per process and closes them together.
type Factory struct {
	cfg      *config.Config
	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	calendar *clock.LocalCalendar
	closers  []func() error
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		cfg: cfg,
	}
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	// Retry connection up to 5 times
	for i := 0; i < 5; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     f.cfg.Postgres.Host,
			Port:     f.cfg.Postgres.Port,
			User:     f.cfg.Postgres.User,
			Password: f.cfg.Postgres.Password,
			DBName:   f.cfg.Postgres.DBName,
			MaxConns: f.cfg.Postgres.MaxConns,
		})
		if err == nil {
			break
		}
		slog.Warn("failed to connect to postgres, retrying", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

// OrderCache is the read-through cache for order details.
func (f *Factory) OrderCache(ctx context.Context) (*redis.JSONCache, error) {
	client, err := f.Redis(ctx)
	if err != nil {
		return nil, err
	}
	return redis.NewJSONCache(client, "order", f.cfg.Redis.OrderTTL), nil
}

func (f *Factory) Calendar() (*clock.LocalCalendar, error) {
	if f.calendar != nil {
		return f.calendar, nil
	}
	cal, err := clock.NewLocalCalendar(f.cfg.Calendar.TimeZone)
	if err != nil {
		return nil, err
	}
	f.calendar = cal
	return cal, nil
}

func (f *Factory) WeChatPay() (*wechatpay.Client, error) {
	c := f.cfg.WeChat
	key, err := wechatpay.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("merchant private key: %w", err)
	}
	pub, err := wechatpay.ParsePublicKey(c.PlatformPublicKey)
	if err != nil {
		return nil, fmt.Errorf("platform public key: %w", err)
	}
	return wechatpay.New(wechatpay.Config{
		BaseURL:           c.BaseURL,
		AppID:             c.AppID,
		MchID:             c.MchID,
		NotifyURL:         c.NotifyURL,
		MchSerialNo:       c.MchSerialNo,
		PrivateKey:        key,
		PlatformSerialNo:  c.PlatformSerialNo,
		PlatformPublicKey: pub,
		APIv3Key:          c.APIv3Key,
		Timeout:           c.Timeout,
	})
}

// TemplateMessages sends official-account template messages. The access
// token is shared through redis so every notifier replica reuses it.
func (f *Factory) TemplateMessages(ctx context.Context) (*wechatmsg.Client, error) {
	client, err := f.Redis(ctx)
	if err != nil {
		return nil, err
	}
	c := f.cfg.WeChat
	return wechatmsg.New(wechatmsg.Config{
		AppID:     c.MessageAppID,
		AppSecret: c.MessageAppSecret,
		Timeout:   c.Timeout,
	}, redis.NewTokenCache(client, "schoolbus"))
}

// AdminChat returns nil when no Telegram bot is configured.
func (f *Factory) AdminChat() (*telegram.AdminChat, error) {
	if f.cfg.Telegram.Token == "" {
		return nil, nil
	}
	return telegram.New(f.cfg.Telegram.Token, f.cfg.Telegram.AdminChatID)
}

func (f *Factory) KafkaProducer() *kafka.Producer {
	p := kafka.NewProducer(kafka.Config{
		Brokers: f.cfg.Kafka.Brokers,
		Topic:   f.cfg.Kafka.Topic,
	})
	f.closers = append(f.closers, p.Close)
	return p
}

func (f *Factory) KafkaConsumer() *kafka.Consumer {
	c := kafka.NewConsumer(f.cfg.Kafka.Brokers, f.cfg.Kafka.Topic, f.cfg.Kafka.GroupID, f.cfg.Kafka.StartOffset)
	f.closers = append(f.closers, c.Close)
	return c
}

func (f *Factory) Close() {
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			slog.Error("failed to close client", "error", err)
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
}
