// Package gateway talks to the SSLCommerz hosted checkout.  Init opens a
// payment session and returns the page the tourist is redirected to; the
// gateway later calls back the success, fail or cancel URL registered for
// the session, which the payment handlers reconcile.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the merchant credentials and callback endpoints.
type Config struct {
	StoreID       string
	StorePassword string
	PaymentAPI    string // session init endpoint
	SuccessURL    string // backend callback for successful payments
	FailURL       string
	CancelURL     string
	Currency      string
	Timeout       time.Duration
}

// InitRequest describes the payment to open a session for.
type InitRequest struct {
	TransactionID string
	AmountCents   int64
	Name          string
	Email         string
	Phone         string
	Address       string
	Product       string
}

// Session is the subset of the init response the service needs.
type Session struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// ErrRejected is returned when the gateway refuses to open a session.
var ErrRejected = errors.New("payment gateway rejected the session")

// Client opens checkout sessions.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient returns a Client for cfg.  Currency defaults to BDT and the
// request timeout to 15s.
func NewClient(cfg Config) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}}
}

// Init posts the session form and returns the gateway page URL.
func (c *Client) Init(ctx context.Context, r InitRequest) (*Session, error) {
	amount := FormatAmount(r.AmountCents)
	product := r.Product
	if product == "" {
		product = "Tour booking"
	}
	form := url.Values{
		"store_id":         {c.cfg.StoreID},
		"store_passwd":     {c.cfg.StorePassword},
		"total_amount":     {amount},
		"currency":         {c.cfg.Currency},
		"tran_id":          {r.TransactionID},
		"success_url":      {CallbackURL(c.cfg.SuccessURL, r.TransactionID, amount, "success")},
		"fail_url":         {CallbackURL(c.cfg.FailURL, r.TransactionID, amount, "fail")},
		"cancel_url":       {CallbackURL(c.cfg.CancelURL, r.TransactionID, amount, "cancel")},
		"shipping_method":  {"NO"},
		"product_name":     {product},
		"product_category": {"Service"},
		"product_profile":  {"general"},
		"cus_name":         {r.Name},
		"cus_email":        {r.Email},
		"cus_add1":         {r.Address},
		"cus_city":         {"N/A"},
		"cus_country":      {"Bangladesh"},
		"cus_phone":        {r.Phone},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PaymentAPI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway init: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway init: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrRejected, resp.StatusCode)
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("gateway init: decode: %w", err)
	}
	if !strings.EqualFold(s.Status, "SUCCESS") || s.GatewayPageURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrRejected, s.FailedReason)
	}
	return &s, nil
}

// CallbackURL appends the reconciliation parameters to base.
func CallbackURL(base, transactionID, amount, status string) string {
	q := url.Values{"transactionId": {transactionID}, "amount": {amount}, "status": {status}}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// FormatAmount renders cents as a decimal with two places.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmount converts a decimal amount ("200", "200.5", "200.50") to
// cents.  Only ASCII digits are accepted on either side of the point, and
// more than two fractional digits is an error.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return w*100 + f, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
