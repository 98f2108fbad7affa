// Package wechatpay adapts the WeChat Pay API v3 SDK to what the order
// lifecycle needs: JSAPI prepay, domestic refunds and payment notifications.
package wechatpay

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/validators"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/consts"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/jsapi"
	"github.com/wechatpay-apiv3/wechatpay-go/services/refunddomestic"
)

const DefaultBaseURL = consts.WechatPayAPIServer

type Config struct {
	// BaseURL replaces the production host, for sandboxes and tests.
	BaseURL   string
	AppID     string
	MchID     string
	NotifyURL string

	// Merchant API certificate serial and its private key sign outgoing requests.
	MchSerialNo string
	PrivateKey  *rsa.PrivateKey

	// WeChat Pay public key id and key verify responses and notifications.
	PlatformSerialNo  string
	PlatformPublicKey *rsa.PublicKey

	// APIv3Key decrypts notification resources. Must be 32 bytes.
	APIv3Key string

	Timeout time.Duration
}

type Client struct {
	cfg       Config
	jsapi     *jsapi.JsapiApiService
	refunds   *refunddomestic.RefundsApiService
	notify    *notify.Handler
	signature *validators.WechatPayNotifyValidator
}

func New(cfg Config) (*Client, error) {
	if cfg.AppID == "" || cfg.MchID == "" {
		return nil, errors.New("wechatpay: app id and merchant id are required")
	}
	if cfg.PrivateKey == nil || cfg.PlatformPublicKey == nil {
		return nil, errors.New("wechatpay: merchant private key and platform public key are required")
	}
	if cfg.MchSerialNo == "" || cfg.PlatformSerialNo == "" {
		return nil, errors.New("wechatpay: merchant serial and platform key id are required")
	}
	if len(cfg.APIv3Key) != 32 {
		return nil, errors.New("wechatpay: api v3 key must be 32 bytes")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.BaseURL != DefaultBaseURL {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("wechatpay: parse base url: %w", err)
		}
		httpClient.Transport = hostRewriter{base: base, next: http.DefaultTransport}
	}

	api, err := core.NewClient(context.Background(),
		option.WithWechatPayPublicKeyAuthCipher(cfg.MchID, cfg.MchSerialNo, cfg.PrivateKey, cfg.PlatformSerialNo, cfg.PlatformPublicKey),
		option.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("wechatpay: %w", err)
	}

	verifier := verifiers.NewSHA256WithRSAPubkeyVerifier(cfg.PlatformSerialNo, *cfg.PlatformPublicKey)
	handler, err := notify.NewRSANotifyHandler(cfg.APIv3Key, verifier)
	if err != nil {
		return nil, fmt.Errorf("wechatpay: notify handler: %w", err)
	}

	return &Client{
		cfg:       cfg,
		jsapi:     &jsapi.JsapiApiService{Client: api},
		refunds:   &refunddomestic.RefundsApiService{Client: api},
		notify:    handler,
		signature: validators.NewWechatPayNotifyValidator(verifier),
	}, nil
}

// hostRewriter sends SDK requests, which always target the production host,
// to BaseURL instead. The signed path is left untouched.
type hostRewriter struct {
	base *url.URL
	next http.RoundTripper
}

func (h hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = h.base.Scheme
	out.URL.Host = h.base.Host
	out.Host = h.base.Host
	return h.next.RoundTrip(out)
}

// gatewayError maps SDK failures onto error kinds: rejected requests are
// FailedPrecondition, everything else (transport, 5xx, throttling and
// responses that fail signature checks) is Unavailable.
func gatewayError(op string, err error) error {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return apperr.Wrap(apperr.KindUnavailable, fmt.Errorf("%s: %w", op, err), "payment gateway unavailable")
	}

	cause := fmt.Errorf("%s: status %d code %s: %s", op, apiErr.StatusCode, apiErr.Code, apiErr.Message)
	if apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests {
		return apperr.Wrap(apperr.KindUnavailable, cause, "payment gateway unavailable")
	}
	return apperr.Wrap(apperr.KindFailedPrecondition, cause, "payment gateway rejected the request: "+apiErr.Code)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
