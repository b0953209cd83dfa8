// Package payment talks to the payment gateway that issues prepay handles
// and refunds.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDeclined = errors.New("payment gateway declined the request")
)

// Prepay is the opaque handle the client needs to finish paying.
type Prepay struct {
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

type RefundRequest struct {
	OrderNumber  string          `json:"order_number"`
	RefundNumber string          `json:"refund_number"`
	Amount       decimal.Decimal `json:"amount"`
	Total        decimal.Decimal `json:"total"`
}

type Gateway interface {
	Prepay(ctx context.Context, orderNumber string, amount decimal.Decimal, payerID int64) (*Prepay, error)
	Refund(ctx context.Context, req RefundRequest) error
}

type HTTPGateway struct {
	HTTP    *http.Client
	BaseURL string
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (g *HTTPGateway) Prepay(ctx context.Context, orderNumber string, amount decimal.Decimal, payerID int64) (*Prepay, error) {
	body := map[string]any{
		"order_number": orderNumber,
		"amount":       amount,
		"payer_id":     payerID,
	}
	var out Prepay
	if err := g.post(ctx, "/prepay", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) error {
	return g.post(ctx, "/refund", req, nil)
}

func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := g.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return fmt.Errorf("%w: %s %s", ErrDeclined, path, res.Status)
	default:
		return fmt.Errorf("payment %s error: %s", path, res.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
