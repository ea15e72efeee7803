package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/service"
)

// ReviewHandler serves reviews.
type ReviewHandler struct {
	Reviews *service.ReviewService
}

func NewReviewHandler(r *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: r}
}

type reviewReq struct {
	BookingID uint64 `json:"bookingId" validate:"required"`
	editReviewReq
}

type editReviewReq struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	rv, err := h.Reviews.Create(c.Request().Context(), a, service.ReviewInput{BookingID: req.BookingID, Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "review created successfully", rv)
}

func (h *ReviewHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req editReviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	rv, err := h.Reviews.Update(c.Request().Context(), a, id, req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review updated successfully", rv)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Reviews.Delete(c.Request().Context(), a, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review deleted successfully", nil)
}

func (h *ReviewHandler) Helpful(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rv, err := h.Reviews.MarkHelpful(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review marked as helpful", rv)
}

func (h *ReviewHandler) ForTour(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	page, err := h.Reviews.ForTour(c.Request().Context(), id, pageFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour reviews retrieved successfully", page)
}

func (h *ReviewHandler) ForGuide(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	page, err := h.Reviews.ForGuide(c.Request().Context(), id, pageFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "guide reviews retrieved successfully", page)
}

func (h *ReviewHandler) Mine(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	page, err := h.Reviews.Mine(c.Request().Context(), a, pageFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "your reviews retrieved successfully", page)
}

func (h *ReviewHandler) All(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	page, err := h.Reviews.All(c.Request().Context(), a, pageFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "reviews retrieved successfully", page)
}
