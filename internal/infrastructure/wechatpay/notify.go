package wechatpay

import (
	"bytes"
	"context"
	"net/http"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"

	"github.com/wechatpay-apiv3/wechatpay-go/core/consts"
)

const TradeStateSuccess = "SUCCESS"

type NotifyHeaders struct {
	Signature string
	Timestamp string
	Nonce     string
	Serial    string
}

func HeadersFrom(h http.Header) NotifyHeaders {
	return NotifyHeaders{
		Signature: h.Get(consts.WechatPaySignature),
		Timestamp: h.Get(consts.WechatPayTimestamp),
		Nonce:     h.Get(consts.WechatPayNonce),
		Serial:    h.Get(consts.WechatPaySerial),
	}
}

// Transaction is the decrypted resource of a TRANSACTION.SUCCESS notification.
type Transaction struct {
	AppID          string `json:"appid"`
	MchID          string `json:"mchid"`
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
	TradeType      string `json:"trade_type"`
	TradeState     string `json:"trade_state"`
	TradeStateDesc string `json:"trade_state_desc"`
	SuccessTime    string `json:"success_time"`
	Payer          struct {
		OpenID string `json:"openid"`
	} `json:"payer"`
	Amount struct {
		Total         int64  `json:"total"`
		PayerTotal    int64  `json:"payer_total"`
		Currency      string `json:"currency"`
		PayerCurrency string `json:"payer_currency"`
	} `json:"amount"`
}

// ParseNotification verifies the platform signature over the raw body and
// returns the decrypted transaction. Signature problems, including a stale
// timestamp or an unknown key id, are Unauthenticated; malformed payloads
// are InvalidArgument.
func (c *Client) ParseNotification(ctx context.Context, h NotifyHeaders, body []byte) (*Transaction, error) {
	if h.Signature == "" || h.Timestamp == "" || h.Nonce == "" || h.Serial == "" {
		return nil, apperr.Unauthenticated("missing notification signature headers")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.NotifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "malformed notification")
	}
	req.Header.Set(consts.WechatPaySignature, h.Signature)
	req.Header.Set(consts.WechatPayTimestamp, h.Timestamp)
	req.Header.Set(consts.WechatPayNonce, h.Nonce)
	req.Header.Set(consts.WechatPaySerial, h.Serial)

	if err := c.signature.Validate(ctx, req); err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "notification signature mismatch")
	}

	var tx Transaction
	if _, err := c.notify.ParseNotifyRequest(ctx, req, &tx); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "cannot decode notification resource")
	}
	return &tx, nil
}
