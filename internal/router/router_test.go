package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/repository/memory"
	"github.com/iliyamo/tour-booking/internal/utils"
)

type stubGateway struct{}

func (stubGateway) Init(_ context.Context, r gateway.InitRequest) (*gateway.Session, error) {
	return &gateway.Session{Status: "SUCCESS", GatewayPageURL: "https://pay.test/" + r.TransactionID}, nil
}

type api struct {
	t     *testing.T
	e     *echo.Echo
	store repository.Store
}

func newAPI(t *testing.T, opts ...func(*Deps)) *api {
	t.Helper()
	cfg := config.Config{
		Env: "test", JWTSecret: "secret", AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4,
		RequestTimeout: 5 * time.Second,
		Payment: config.PaymentConfig{
			SuccessFrontendURL: "https://app.test/payment/success",
			FailFrontendURL:    "https://app.test/payment/fail",
			CancelFrontendURL:  "https://app.test/payment/cancel",
		},
	}
	d := Deps{
		Cfg:     cfg,
		Store:   memory.New(),
		Cache:   cache.New(nil, 0),
		Gateway: stubGateway{},
		Health: handler.Health{Required: map[string]handler.Pinger{
			"store": handler.PingFunc(func(context.Context) error { return nil }),
		}},
	}
	for _, o := range opts {
		o(&d)
	}
	return &api{t: t, e: New(d), store: d.Store}
}

// withRedisCache enables response caching against a miniredis instance.
func withRedisCache(t *testing.T) func(*Deps) {
	return func(d *Deps) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		d.Redis = rdb
		d.Cache = cache.New(rdb, time.Minute)
		d.CacheCfg = config.CacheConfig{Enabled: true, TTL: time.Minute, MaxBodyBytes: 1 << 20}
	}
}

type reply struct {
	Code     int
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Location string
}

func (a *api) call(method, path, token string, body any) reply {
	a.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		bs, _ := json.Marshal(body)
		rd = bytes.NewReader(bs)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	r := reply{Code: rec.Code, Location: rec.Header().Get("Location")}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	r.Code = rec.Code
	return r
}

func (a *api) expect(r reply, code int) reply {
	a.t.Helper()
	if r.Code != code {
		a.t.Fatalf("want %d, got %d: %s", code, r.Code, r.Message)
	}
	return r
}

func (r reply) into(t *testing.T, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", r.Data, err)
	}
}

func (a *api) register(name, role string) (token string, id uint64) {
	a.t.Helper()
	r := a.expect(a.call(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret1", "role": role,
		"phone": "01700000000", "address": "Dhaka",
	}), http.StatusCreated)
	var out struct {
		User   struct{ ID uint64 } `json:"user"`
		Access struct{ Token string } `json:"access"`
	}
	r.into(a.t, &out)
	return out.Access.Token, out.User.ID
}

func TestBookingPaymentFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	guide, _ := a.register("gia", "GUIDE")
	tourist, _ := a.register("ana", "TOURIST")

	var tour struct {
		ID   uint64 `json:"id"`
		Slug string `json:"slug"`
	}
	a.expect(a.call(http.MethodPost, "/v1/guide/tours", guide, map[string]any{
		"title": "Old Dhaka Walk", "category": "HISTORY", "location": "Dhaka",
		"feeCents": 10000, "maxDurationHrs": 3, "maxGroupSize": 4,
	}), http.StatusCreated).into(t, &tour)
	a.expect(a.call(http.MethodGet, "/v1/tours/"+tour.Slug, "", nil), http.StatusOK)
	a.expect(a.call(http.MethodPost, "/v1/guide/tours", tourist, map[string]any{"title": "x"}), http.StatusForbidden)

	var booking struct {
		ID               uint64 `json:"id"`
		Status           string `json:"status"`
		TotalAmountCents int64  `json:"total_amount_cents"`
	}
	a.expect(a.call(http.MethodPost, "/v1/bookings", tourist, map[string]any{
		"tourId": tour.ID, "bookingDate": "2025-03-01", "bookingTime": "09:00", "numberOfGuests": 2,
	}), http.StatusCreated).into(t, &booking)
	if booking.Status != "PENDING" || booking.TotalAmountCents != 20000 {
		t.Fatalf("unexpected booking %+v", booking)
	}

	status := fmt.Sprintf("/v1/bookings/%d/status", booking.ID)
	a.expect(a.call(http.MethodPatch, status, tourist, map[string]string{"status": "CONFIRMED"}), http.StatusForbidden)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "COMPLETED"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "CONFIRMED", "expectedStatus": "PENDING"}), http.StatusOK)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "CANCELLED", "expectedStatus": "PENDING"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "COMPLETED"}), http.StatusOK)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "CANCELLED"}), http.StatusBadRequest)

	var sess struct {
		PaymentURL    string `json:"paymentUrl"`
		TransactionID string `json:"transactionId"`
	}
	a.expect(a.call(http.MethodPost, fmt.Sprintf("/v1/bookings/%d/payment", booking.ID), tourist, nil), http.StatusOK).into(t, &sess)
	if !strings.HasPrefix(sess.TransactionID, "tran_") || sess.PaymentURL != "https://pay.test/"+sess.TransactionID {
		t.Fatalf("unexpected session %+v", sess)
	}

	cb := "/v1/payment/success?" + url.Values{"transactionId": {sess.TransactionID}, "amount": {"200.00"}, "status": {"success"}}.Encode()
	r := a.expect(a.call(http.MethodGet, cb, "", nil), http.StatusFound)
	want := gateway.CallbackURL("https://app.test/payment/success", sess.TransactionID, "200.00", "success")
	if r.Location != want {
		t.Fatalf("redirect: want %s, got %s", want, r.Location)
	}
	// a replayed fail callback lands on the stored outcome
	replay := "/v1/payment/fail?" + url.Values{"transactionId": {sess.TransactionID}}.Encode()
	if r := a.expect(a.call(http.MethodPost, replay, "", nil), http.StatusFound); r.Location != want {
		t.Fatalf("replay redirect: want %s, got %s", want, r.Location)
	}

	var pay struct {
		Status string `json:"status"`
	}
	a.expect(a.call(http.MethodGet, fmt.Sprintf("/v1/payments/%d", booking.ID), tourist, nil), http.StatusOK).into(t, &pay)
	if pay.Status != "PAID" {
		t.Fatalf("payment status: %s", pay.Status)
	}
	a.expect(a.call(http.MethodPost, fmt.Sprintf("/v1/bookings/%d/payment", booking.ID), tourist, nil), http.StatusBadRequest)

	a.expect(a.call(http.MethodPost, "/v1/reviews", tourist, map[string]any{"bookingId": booking.ID, "rating": 4, "comment": "lovely"}), http.StatusCreated)
	var reviews struct {
		Pagination struct{ Total int64 } `json:"pagination"`
	}
	a.expect(a.call(http.MethodGet, fmt.Sprintf("/v1/tours/%d/reviews", tour.ID), "", nil), http.StatusOK).into(t, &reviews)
	if reviews.Pagination.Total != 1 {
		t.Fatalf("tour reviews: %+v", reviews)
	}
}

func TestCompletedBookingRefreshesCachedTour(t *testing.T) {
	a := newAPI(t, withRedisCache(t))
	guide, _ := a.register("gia", "GUIDE")
	tourist, _ := a.register("ana", "TOURIST")

	var tour struct {
		ID           uint64 `json:"id"`
		Slug         string `json:"slug"`
		BookingCount int    `json:"booking_count"`
	}
	a.expect(a.call(http.MethodPost, "/v1/guide/tours", guide, map[string]any{
		"title": "Sundarbans Boat Trip", "category": "NATURE", "location": "Khulna",
		"feeCents": 5000, "maxDurationHrs": 8, "maxGroupSize": 6,
	}), http.StatusCreated).into(t, &tour)

	detail := "/v1/tours/" + tour.Slug
	a.expect(a.call(http.MethodGet, detail, "", nil), http.StatusOK).into(t, &tour)
	if tour.BookingCount != 0 {
		t.Fatalf("new tour booking_count: %d", tour.BookingCount)
	}

	var booking struct {
		ID uint64 `json:"id"`
	}
	a.expect(a.call(http.MethodPost, "/v1/bookings", tourist, map[string]any{
		"tourId": tour.ID, "bookingDate": "2025-04-10", "bookingTime": "07:30", "numberOfGuests": 1,
	}), http.StatusCreated).into(t, &booking)
	status := fmt.Sprintf("/v1/bookings/%d/status", booking.ID)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "CONFIRMED"}), http.StatusOK)

	// both responses are cached before completion
	a.expect(a.call(http.MethodGet, detail, "", nil), http.StatusOK).into(t, &tour)
	a.expect(a.call(http.MethodGet, "/v1/tours", "", nil), http.StatusOK)
	a.expect(a.call(http.MethodPatch, status, guide, map[string]string{"status": "COMPLETED"}), http.StatusOK)

	a.expect(a.call(http.MethodGet, detail, "", nil), http.StatusOK).into(t, &tour)
	if tour.BookingCount != 1 {
		t.Fatalf("booking_count after completion: want 1, got %d", tour.BookingCount)
	}
	var list struct {
		Tours []struct {
			ID           uint64 `json:"id"`
			BookingCount int    `json:"booking_count"`
		} `json:"tours"`
	}
	a.expect(a.call(http.MethodGet, "/v1/tours", "", nil), http.StatusOK).into(t, &list)
	if len(list.Tours) != 1 || list.Tours[0].BookingCount != 1 {
		t.Fatalf("listing after completion: %+v", list.Tours)
	}
}

func TestErrorEnvelope(t *testing.T) {
	a := newAPI(t)
	tourist, _ := a.register("ana", "TOURIST")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, "/v1/bookings/my", "", nil, http.StatusUnauthorized},
		{"missing booking", http.MethodGet, "/v1/bookings/999", tourist, nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/v1/bookings/abc", tourist, nil, http.StatusBadRequest},
		{"unknown tour", http.MethodGet, "/v1/tours/no-such-tour", "", nil, http.StatusNotFound},
		{"admin only", http.MethodGet, "/v1/admin/bookings", tourist, nil, http.StatusForbidden},
		{"unknown callback", http.MethodGet, "/v1/payment/success?transactionId=nope", "", nil, http.StatusNotFound},
		{"admin self-registration", http.MethodPost, "/v1/auth/register", "", map[string]string{
			"name": "x", "email": "x@example.com", "password": "secret1", "role": "ADMIN"}, http.StatusBadRequest},
		{"duplicate email", http.MethodPost, "/v1/auth/register", "", map[string]string{
			"name": "ana", "email": "ana@example.com", "password": "secret1"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := a.call(tc.method, tc.path, tc.token, tc.body)
			if r.Code != tc.want {
				t.Fatalf("want %d, got %d (%s)", tc.want, r.Code, r.Message)
			}
			if r.Success || r.Message == "" {
				t.Fatalf("error body must carry success=false and a message: %+v", r)
			}
		})
	}
}

func TestAuthLifecycle(t *testing.T) {
	a := newAPI(t)
	a.register("ana", "")

	bad := a.call(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	a.expect(bad, http.StatusUnauthorized)

	var login struct {
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
		User    struct{ Role string }  `json:"user"`
	}
	a.expect(a.call(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ANA@example.com ", "password": "secret1"}), http.StatusOK).into(t, &login)
	if login.User.Role != "TOURIST" {
		t.Fatalf("default role: %s", login.User.Role)
	}
	a.expect(a.call(http.MethodGet, "/v1/me", login.Access.Token, nil), http.StatusOK)

	var rotated struct {
		Refresh struct{ Token string } `json:"refresh"`
	}
	a.expect(a.call(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": login.Refresh.Token}), http.StatusOK).into(t, &rotated)
	a.expect(a.call(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": login.Refresh.Token}), http.StatusUnauthorized)
	a.expect(a.call(http.MethodPost, "/v1/auth/refresh-access", "", map[string]string{"refresh_token": rotated.Refresh.Token}), http.StatusOK)
	a.expect(a.call(http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": rotated.Refresh.Token}), http.StatusOK)
	a.expect(a.call(http.MethodPost, "/v1/auth/refresh-access", "", map[string]string{"refresh_token": rotated.Refresh.Token}), http.StatusUnauthorized)
}

type session struct {
	Access  struct{ Token string } `json:"access"`
	Refresh struct{ Token string } `json:"refresh"`
}

func (a *api) login(email, password string, want int) session {
	a.t.Helper()
	var s session
	r := a.expect(a.call(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password}), want)
	if want == http.StatusOK {
		r.into(a.t, &s)
	}
	return s
}

func TestChangePassword(t *testing.T) {
	a := newAPI(t)
	a.register("ana", "")
	s := a.login("ana@example.com", "secret1", http.StatusOK)
	path := "/v1/auth/change-password"

	a.expect(a.call(http.MethodPost, path, "", map[string]string{"oldPassword": "secret1", "newPassword": "secret2"}), http.StatusUnauthorized)
	a.expect(a.call(http.MethodPost, path, s.Access.Token, map[string]string{"oldPassword": "nope", "newPassword": "secret2"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPost, path, s.Access.Token, map[string]string{"oldPassword": "secret1", "newPassword": "abc"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPost, path, s.Access.Token, map[string]string{"oldPassword": "secret1"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPost, path, s.Access.Token, map[string]string{"oldPassword": "secret1", "newPassword": "secret2"}), http.StatusOK)

	a.login("ana@example.com", "secret1", http.StatusUnauthorized)
	a.login("ana@example.com", "secret2", http.StatusOK)
	// sessions opened with the old password are gone
	a.expect(a.call(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.Refresh.Token}), http.StatusUnauthorized)
}

func TestAdminAccountLifecycle(t *testing.T) {
	a := newAPI(t)
	tourist, _ := a.register("ana", "")
	_, benID := a.register("ben", "GUIDE")

	hash, err := utils.HashPassword("rootpass", 4)
	if err != nil {
		t.Fatal(err)
	}
	root := &model.User{Name: "root", Email: "root@example.com", PasswordHash: hash, Role: model.RoleAdmin}
	if err := a.store.Users().Create(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	admin := a.login("root@example.com", "rootpass", http.StatusOK).Access.Token
	ben := a.login("ben@example.com", "secret1", http.StatusOK)

	var page struct {
		Users      []struct{ Email string } `json:"users"`
		Pagination struct{ Total int64 }    `json:"pagination"`
	}
	a.expect(a.call(http.MethodGet, "/v1/admin/users", tourist, nil), http.StatusForbidden)
	a.expect(a.call(http.MethodGet, "/v1/admin/users?limit=2", admin, nil), http.StatusOK).into(t, &page)
	if page.Pagination.Total != 3 || len(page.Users) != 2 || page.Users[0].Email != "root@example.com" {
		t.Fatalf("unexpected user page %+v", page)
	}

	path := fmt.Sprintf("/v1/admin/users/%d/lifecycle", benID)
	a.expect(a.call(http.MethodPatch, path, tourist, map[string]string{"lifecycle": "BLOCKED"}), http.StatusForbidden)
	a.expect(a.call(http.MethodPatch, path, admin, map[string]string{"lifecycle": "FROZEN"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPatch, fmt.Sprintf("/v1/admin/users/%d/lifecycle", root.ID), admin, map[string]string{"lifecycle": "BLOCKED"}), http.StatusBadRequest)
	a.expect(a.call(http.MethodPatch, "/v1/admin/users/999/lifecycle", admin, map[string]string{"lifecycle": "BLOCKED"}), http.StatusNotFound)

	var updated struct{ Lifecycle string }
	a.expect(a.call(http.MethodPatch, path, admin, map[string]string{"lifecycle": "blocked"}), http.StatusOK).into(t, &updated)
	if updated.Lifecycle != "BLOCKED" {
		t.Fatalf("lifecycle: %s", updated.Lifecycle)
	}
	a.login("ben@example.com", "secret1", http.StatusForbidden)
	a.expect(a.call(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": ben.Refresh.Token}), http.StatusUnauthorized)

	a.expect(a.call(http.MethodPatch, path, admin, map[string]string{"lifecycle": "INACTIVE"}), http.StatusOK)
	a.login("ben@example.com", "secret1", http.StatusForbidden)
	a.expect(a.call(http.MethodPatch, path, admin, map[string]string{"lifecycle": "ACTIVE"}), http.StatusOK)
	a.login("ben@example.com", "secret1", http.StatusOK)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}
