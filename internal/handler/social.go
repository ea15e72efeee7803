package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// WishlistHandler serves the caller's saved tours.
type WishlistHandler struct {
	Wishlist *service.WishlistService
}

func NewWishlistHandler(w *service.WishlistService) *WishlistHandler {
	return &WishlistHandler{Wishlist: w}
}

func (h *WishlistHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	list, err := h.Wishlist.List(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "wishlist retrieved successfully", list)
}

func (h *WishlistHandler) Add(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "tourId")
	if err != nil {
		return err
	}
	e, err := h.Wishlist.Add(c.Request().Context(), a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "tour added to wishlist", e)
}

func (h *WishlistHandler) Remove(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "tourId")
	if err != nil {
		return err
	}
	if err := h.Wishlist.Remove(c.Request().Context(), a, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour removed from wishlist", nil)
}

func (h *WishlistHandler) Status(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "tourId")
	if err != nil {
		return err
	}
	in, err := h.Wishlist.Contains(c.Request().Context(), a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "wishlist status retrieved", echo.Map{"inWishlist": in})
}

// MessageHandler serves stored conversations.
type MessageHandler struct {
	Messages *service.MessageService
}

func NewMessageHandler(m *service.MessageService) *MessageHandler {
	return &MessageHandler{Messages: m}
}

type sendReq struct {
	ReceiverID uint64 `json:"receiverId" validate:"required"`
	Message    string `json:"message" validate:"required,max=5000"`
}

func (h *MessageHandler) Send(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req sendReq
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.Messages.Send(c.Request().Context(), a, req.ReceiverID, req.Message)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "message sent", m)
}

func (h *MessageHandler) Conversations(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	list, err := h.Messages.Conversations(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "conversations retrieved successfully", list)
}

func (h *MessageHandler) Thread(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.Messages.Messages(c.Request().Context(), a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "messages retrieved successfully", list)
}

// ProfileHandler serves the caller's own account, and every account to
// admins.
type ProfileHandler struct {
	Users *service.UserService
}

func NewProfileHandler(u *service.UserService) *ProfileHandler {
	return &ProfileHandler{Users: u}
}

type profileReq struct {
	Name              *string  `json:"name"`
	Image             *string  `json:"image"`
	Phone             *string  `json:"phone"`
	Address           *string  `json:"address"`
	Bio               *string  `json:"bio"`
	Languages         []string `json:"languages"`
	Expertise         []string `json:"expertise"`
	DailyRateCents    *int64   `json:"dailyRateCents"`
	TravelPreferences []string `json:"travelPreferences"`
}

func (h *ProfileHandler) Me(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	u, err := h.Users.Me(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "profile retrieved successfully", u)
}

func (h *ProfileHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Users.UpdateProfile(c.Request().Context(), a, model.ProfileUpdate{
		Name:              req.Name,
		Image:             req.Image,
		Phone:             req.Phone,
		Address:           req.Address,
		Bio:               req.Bio,
		Languages:         req.Languages,
		Expertise:         req.Expertise,
		DailyRateCents:    req.DailyRateCents,
		TravelPreferences: req.TravelPreferences,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "profile updated successfully", u)
}

type lifecycleReq struct {
	Lifecycle string `json:"lifecycle" validate:"required"`
}

// All lists accounts for admins.  Query: page, limit.
func (h *ProfileHandler) All(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	page, err := h.Users.All(c.Request().Context(), a, pageFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "users retrieved successfully", page)
}

// SetLifecycle activates, deactivates, blocks or deletes an account.
func (h *ProfileHandler) SetLifecycle(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req lifecycleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	l, err := model.ParseLifecycle(req.Lifecycle)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lifecycle must be ACTIVE, INACTIVE, BLOCKED or DELETED")
	}
	u, err := h.Users.SetLifecycle(c.Request().Context(), a, id, l)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "account updated successfully", u)
}
