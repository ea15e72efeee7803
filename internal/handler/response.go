package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

// statusOf maps an error to its HTTP status.
func statusOf(err error) int {
	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindInvalidTransition, service.KindTerminalState, service.KindInvalidOperation:
		return http.StatusBadRequest
	case service.KindAlreadyExists, service.KindAlreadyProcessed:
		return http.StatusConflict
	}
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageOf returns the client-facing message for err.
func messageOf(err error, status int) string {
	var se *service.Error
	if errors.As(err, &se) {
		return se.Message
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if s, ok := he.Message.(string); ok {
			return s
		}
		return http.StatusText(he.Code)
	}
	if status == http.StatusBadGateway {
		return "payment gateway is unavailable, please try again"
	}
	return http.StatusText(status)
}

// HTTPErrorHandler renders every error returned by a handler or middleware
// as an envelope.  Outside production the underlying error text is added
// under "error".
func HTTPErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := statusOf(err)
		body := envelope{Success: false, Message: messageOf(err, status)}
		if !production {
			body.Error = err.Error()
		}
		if status >= http.StatusInternalServerError {
			log.Errorj(log.JSON{
				"event":      "request.failed",
				"method":     c.Request().Method,
				"path":       c.Path(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"error":      err.Error(),
			})
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warnf("write error response: %v", werr)
		}
	}
}

// actor returns the authenticated caller.  Routes using it sit behind
// JWTAuth, so a missing identity is a wiring fault reported as 401.
func actor(c echo.Context) (service.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return service.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return a, nil
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// pageFrom reads ?page and ?limit.
func pageFrom(c echo.Context) model.Page {
	p, _ := strconv.Atoi(c.QueryParam("page"))
	l, _ := strconv.Atoi(c.QueryParam("limit"))
	return model.Page{Page: p, Limit: l}.Normalize()
}

// bind decodes the request body into dst and validates it when a
// validator is installed.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}
