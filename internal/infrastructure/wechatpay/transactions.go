package wechatpay

import (
	"context"

	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/jsapi"
	"github.com/wechatpay-apiv3/wechatpay-go/services/refunddomestic"
)

type PrepayRequest struct {
	Description string
	OutTradeNo  string
	Total       int64 // fen
	OpenID      string
}

// Prepay creates a JSAPI transaction and returns the signed parameters the
// mini program passes to wx.requestPayment.
func (c *Client) Prepay(ctx context.Context, r PrepayRequest) (*payment.Intent, error) {
	resp, _, err := c.jsapi.PrepayWithRequestPayment(ctx, jsapi.PrepayRequest{
		Appid:       core.String(c.cfg.AppID),
		Mchid:       core.String(c.cfg.MchID),
		Description: core.String(r.Description),
		OutTradeNo:  core.String(r.OutTradeNo),
		NotifyUrl:   core.String(c.cfg.NotifyURL),
		Amount:      &jsapi.Amount{Total: core.Int64(r.Total), Currency: core.String("CNY")},
		Payer:       &jsapi.Payer{Openid: core.String(r.OpenID)},
	})
	if err != nil {
		return nil, gatewayError("jsapi prepay", err)
	}

	return &payment.Intent{
		AppID:     deref(resp.Appid),
		TimeStamp: deref(resp.TimeStamp),
		NonceStr:  deref(resp.NonceStr),
		Package:   deref(resp.Package),
		SignType:  deref(resp.SignType),
		PaySign:   deref(resp.PaySign),
	}, nil
}

type RefundRequest struct {
	OutTradeNo  string
	OutRefundNo string
	Reason      string
	Refund      int64 // fen
	Total       int64 // fen
}

type RefundResult struct {
	RefundID    string `json:"refund_id"`
	OutRefundNo string `json:"out_refund_no"`
	Status      string `json:"status"`
}

// Refund requests a domestic refund. The gateway deduplicates on OutRefundNo.
func (c *Client) Refund(ctx context.Context, r RefundRequest) (*RefundResult, error) {
	req := refunddomestic.CreateRequest{
		OutTradeNo:  core.String(r.OutTradeNo),
		OutRefundNo: core.String(r.OutRefundNo),
		Amount: &refunddomestic.AmountReq{
			Refund:   core.Int64(r.Refund),
			Total:    core.Int64(r.Total),
			Currency: core.String("CNY"),
		},
	}
	if r.Reason != "" {
		req.Reason = core.String(r.Reason)
	}

	resp, _, err := c.refunds.Create(ctx, req)
	if err != nil {
		return nil, gatewayError("domestic refund", err)
	}

	res := &RefundResult{
		RefundID:    deref(resp.RefundId),
		OutRefundNo: deref(resp.OutRefundNo),
	}
	if resp.Status != nil {
		res.Status = string(*resp.Status)
	}
	return res, nil
}
