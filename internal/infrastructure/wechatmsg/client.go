// Package wechatmsg sends official account template messages.
package wechatmsg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/silenceper/wechat/v2/cache"
	"github.com/silenceper/wechat/v2/credential"
	"github.com/silenceper/wechat/v2/officialaccount/message"
	"github.com/silenceper/wechat/v2/util"
)

const templateSendURL = "https://api.weixin.qq.com/cgi-bin/message/template/send"

// Error codes for an invalid or expired access token.
const (
	errInvalidToken = 40001
	errExpiredToken = 42001
)

// tokenPrefix namespaces the access token in the shared cache. The SDK
// stores it under "<prefix>_access_token_<appid>".
const tokenPrefix = "wechat_oa"

// TokenCache stores the access token between processes. The redis
// TokenCache satisfies it.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

type Client struct {
	cfg    Config
	cache  cache.Cache
	tokens credential.AccessTokenContextHandle
}

// New builds a client. tokens may be nil, in which case the token is kept in
// process memory.
func New(cfg Config, tokens TokenCache) (*Client, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("wechatmsg: app id and secret are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	var store cache.Cache = cache.NewMemory()
	if tokens != nil {
		store = tokenStore{tokens: tokens}
	}
	return &Client{
		cfg:    cfg,
		cache:  store,
		tokens: credential.NewDefaultAccessToken(cfg.AppID, cfg.AppSecret, tokenPrefix, store),
	}, nil
}

// Message is one template message. Data maps template keys such as "thing2"
// to their values.
type Message struct {
	ToUser     string
	TemplateID string
	Data       map[string]string
}

// APIError is a non-zero errcode returned by the platform.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wechat api error %d: %s", e.Code, e.Message)
}

type sendResult struct {
	util.CommonError

	MsgID int64 `json:"msgid"`
}

func (c *Client) Send(ctx context.Context, m Message) error {
	if m.ToUser == "" || m.TemplateID == "" {
		return errors.New("wechatmsg: recipient and template are required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	msg := &message.TemplateMessage{
		ToUser:     m.ToUser,
		TemplateID: m.TemplateID,
		Data:       make(map[string]*message.TemplateDataItem, len(m.Data)),
	}
	for k, v := range m.Data {
		msg.Data[k] = &message.TemplateDataItem{Value: v}
	}

	err := c.send(ctx, msg)
	var ae *APIError
	if errors.As(err, &ae) && (ae.Code == errInvalidToken || ae.Code == errExpiredToken) {
		// The cached token was revoked early. Fetch a new one and try once more.
		if err := cache.DeleteContext(ctx, c.cache, c.tokenKey()); err != nil {
			return fmt.Errorf("drop stale access token: %w", err)
		}
		err = c.send(ctx, msg)
	}
	return err
}

func (c *Client) send(ctx context.Context, msg *message.TemplateMessage) error {
	token, err := c.tokens.GetAccessTokenContext(ctx)
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}

	body, err := util.PostJSONContext(ctx, templateSendURL+"?access_token="+token, msg)
	if err != nil {
		return fmt.Errorf("send template message: %w", err)
	}

	var res sendResult
	if err := util.DecodeWithError(body, &res, "SendTemplateMessage"); err != nil {
		var ce *util.CommonError
		if errors.As(err, &ce) {
			return &APIError{Code: int(ce.ErrCode), Message: ce.ErrMsg}
		}
		return fmt.Errorf("decode template response: %w", err)
	}
	return nil
}

func (c *Client) tokenKey() string {
	return fmt.Sprintf("%s_access_token_%s", tokenPrefix, c.cfg.AppID)
}

// tokenStore exposes a TokenCache through the SDK's cache interface.
type tokenStore struct {
	tokens TokenCache
}

var _ cache.ContextCache = tokenStore{}

func (s tokenStore) Get(key string) interface{} {
	return s.GetContext(context.Background(), key)
}

func (s tokenStore) Set(key string, val interface{}, timeout time.Duration) error {
	return s.SetContext(context.Background(), key, val, timeout)
}

func (s tokenStore) IsExist(key string) bool {
	return s.IsExistContext(context.Background(), key)
}

func (s tokenStore) Delete(key string) error {
	return s.DeleteContext(context.Background(), key)
}

// GetContext reports a read failure as a miss, so the token is fetched again.
func (s tokenStore) GetContext(ctx context.Context, key string) interface{} {
	v, ok, err := s.tokens.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	return v
}

func (s tokenStore) SetContext(ctx context.Context, key string, val interface{}, timeout time.Duration) error {
	if timeout < time.Minute {
		timeout = time.Minute
	}
	return s.tokens.Set(ctx, key, fmt.Sprint(val), timeout)
}

func (s tokenStore) IsExistContext(ctx context.Context, key string) bool {
	_, ok, err := s.tokens.Get(ctx, key)
	return err == nil && ok
}

func (s tokenStore) DeleteContext(ctx context.Context, key string) error {
	return s.tokens.Delete(ctx, key)
}
