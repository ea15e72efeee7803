package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// TourHandler serves the public catalogue and the guide's tour management.
type TourHandler struct {
	Tours *service.TourService
}

func NewTourHandler(t *service.TourService) *TourHandler {
	return &TourHandler{Tours: t}
}

// Search lists active tours.  Query: category, location, searchTerm,
// minPrice, maxPrice (currency units), minRating, maxDuration (hours),
// sortBy (created_at|price|rating|duration), sortOrder (asc|desc), page,
// limit.
func (h *TourHandler) Search(c echo.Context) error {
	q, err := searchFrom(c)
	if err != nil {
		return err
	}
	page, err := h.Tours.Search(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tours retrieved successfully", page)
}

func searchFrom(c echo.Context) (model.TourSearch, error) {
	q := model.TourSearch{
		Location: strings.TrimSpace(c.QueryParam("location")),
		Text:     strings.TrimSpace(c.QueryParam("searchTerm")),
		SortBy:   strings.ToLower(c.QueryParam("sortBy")),
		SortAsc:  strings.EqualFold(c.QueryParam("sortOrder"), "asc"),
	}
	if cat := c.QueryParam("category"); cat != "" {
		q.Category = model.TourCategory(strings.ToUpper(cat))
		if !q.Category.Valid() {
			return q, echo.NewHTTPError(http.StatusBadRequest, "unknown category")
		}
	}
	var err error
	if s := c.QueryParam("minPrice"); s != "" {
		if q.MinFeeCents, err = gateway.ParseAmount(s); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid minPrice")
		}
	}
	if s := c.QueryParam("maxPrice"); s != "" {
		if q.MaxFeeCents, err = gateway.ParseAmount(s); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid maxPrice")
		}
	}
	if s := c.QueryParam("minRating"); s != "" {
		if q.MinRating, err = strconv.ParseFloat(s, 64); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid minRating")
		}
	}
	if s := c.QueryParam("maxDuration"); s != "" {
		if q.MaxDuration, err = strconv.Atoi(s); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid maxDuration")
		}
	}
	p := pageFrom(c)
	q.Page, q.PageSize = p.Page, p.Limit
	return q, nil
}

func (h *TourHandler) BySlug(c echo.Context) error {
	t, err := h.Tours.BySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour retrieved successfully", t)
}

func (h *TourHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in service.TourInput
	if err := bind(c, &in); err != nil {
		return err
	}
	t, err := h.Tours.Create(c.Request().Context(), a, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "tour created successfully", t)
}

func (h *TourHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in service.TourInput
	if err := bind(c, &in); err != nil {
		return err
	}
	t, err := h.Tours.Update(c.Request().Context(), a, id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour updated successfully", t)
}

func (h *TourHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Tours.Delete(c.Request().Context(), a, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour deleted successfully", nil)
}

func (h *TourHandler) Mine(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	list, err := h.Tours.Mine(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tours retrieved successfully", list)
}
