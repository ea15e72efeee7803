package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/service"
)

// PaymentHandler receives gateway callbacks and serves payment records.
type PaymentHandler struct {
	Payments *service.PaymentService
	Pages    config.PaymentConfig
}

func NewPaymentHandler(p *service.PaymentService, pages config.PaymentConfig) *PaymentHandler {
	return &PaymentHandler{Payments: p, Pages: pages}
}

// Success, Fail and Cancel are the gateway callback endpoints.  They
// accept GET and POST.
func (h *PaymentHandler) Success(c echo.Context) error { return h.callback(c, service.OutcomeSuccess) }
func (h *PaymentHandler) Fail(c echo.Context) error    { return h.callback(c, service.OutcomeFail) }
func (h *PaymentHandler) Cancel(c echo.Context) error  { return h.callback(c, service.OutcomeCancel) }

// callback reconciles the payment and redirects the browser to the
// frontend page of the resulting outcome.  A replayed callback lands on
// the page of the outcome already stored.
func (h *PaymentHandler) callback(c echo.Context, outcome service.Outcome) error {
	params := callbackParams(c)
	cb := service.Callback{TransactionID: params["transactionId"], Amount: params["amount"], Params: params}
	if cb.TransactionID == "" {
		cb.TransactionID = params["tran_id"]
	}

	res, err := h.Payments.Reconcile(c.Request().Context(), outcome, cb)
	if err != nil && !(errors.Is(err, service.ErrAlreadyProcessed) && res != nil) {
		return err
	}
	if err != nil {
		log.Infof("payment %s: %s callback replayed, stored outcome %s", cb.TransactionID, outcome, res.Outcome)
	}
	target := gateway.CallbackURL(h.page(res.Outcome), res.Payment.TransactionID, gateway.FormatAmount(res.Payment.AmountCents), string(res.Outcome))
	return c.Redirect(http.StatusFound, target)
}

func (h *PaymentHandler) page(o service.Outcome) string {
	switch o {
	case service.OutcomeSuccess:
		return h.Pages.SuccessFrontendURL
	case service.OutcomeFail:
		return h.Pages.FailFrontendURL
	}
	return h.Pages.CancelFrontendURL
}

// callbackParams flattens query and form values, first value wins.
func callbackParams(c echo.Context) map[string]string {
	out := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	if form, err := c.FormParams(); err == nil {
		for k, v := range form {
			if _, seen := out[k]; !seen && len(v) > 0 {
				out[k] = v[0]
			}
		}
	}
	return out
}

// ForBooking returns the payment of a booking.
func (h *PaymentHandler) ForBooking(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "bookingId")
	if err != nil {
		return err
	}
	p, err := h.Payments.ForBooking(c.Request().Context(), a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "payment retrieved successfully", p)
}
