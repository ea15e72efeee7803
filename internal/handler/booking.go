package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// BookingHandler exposes the booking lifecycle.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

type createBookingReq struct {
	TourID         uint64 `json:"tourId" validate:"required"`
	BookingDate    string `json:"bookingDate" validate:"required,datetime=2006-01-02"`
	BookingTime    string `json:"bookingTime" validate:"required,datetime=15:04"`
	NumberOfGuests int    `json:"numberOfGuests" validate:"required,min=1"`
}

type statusReq struct {
	Status         string `json:"status" validate:"required"`
	ExpectedStatus string `json:"expectedStatus"`
}

// Create books a tour for the calling tourist.
func (h *BookingHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.Bookings.Create(c.Request().Context(), a, service.CreateBookingInput{
		TourID:         req.TourID,
		BookingDate:    strings.TrimSpace(req.BookingDate),
		BookingTime:    strings.TrimSpace(req.BookingTime),
		NumberOfGuests: req.NumberOfGuests,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "booking created successfully", d)
}

// UpdateStatus moves a booking along its lifecycle.  expectedStatus, when
// sent, makes the change conditional on the status the caller last saw.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	target, err := model.ParseBookingStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var expected model.BookingStatus
	if strings.TrimSpace(req.ExpectedStatus) != "" {
		if expected, err = model.ParseBookingStatus(req.ExpectedStatus); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	d, err := h.Bookings.Transition(c.Request().Context(), a, id, target, expected)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "booking status updated to "+string(d.Status), d)
}

// InitiatePayment opens a gateway session for a completed booking.
func (h *BookingHandler) InitiatePayment(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	sess, err := h.Bookings.InitiatePayment(c.Request().Context(), a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "payment session created", sess)
}

func (h *BookingHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.Bookings.Get(c.Request().Context(), a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "booking retrieved successfully", d)
}

// Mine lists the caller's bookings: a tourist's own, or those of a
// guide's tours.
func (h *BookingHandler) Mine(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	list, err := h.Bookings.Mine(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "bookings retrieved successfully", list)
}

func (h *BookingHandler) Pending(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	list, err := h.Bookings.PendingForGuide(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "pending bookings retrieved successfully", list)
}

// All lists every booking for admins, optionally ?status=.
func (h *BookingHandler) All(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var status model.BookingStatus
	if s := c.QueryParam("status"); s != "" {
		if status, err = model.ParseBookingStatus(s); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	list, err := h.Bookings.All(c.Request().Context(), a, status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "bookings retrieved successfully", list)
}
