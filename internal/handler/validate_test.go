package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"ok", &createBookingReq{TourID: 1, BookingDate: "2025-03-01", BookingTime: "09:30", NumberOfGuests: 2}, ""},
		{"missing tour", &createBookingReq{BookingDate: "2025-03-01", BookingTime: "09:30", NumberOfGuests: 1}, "tourId is required"},
		{"bad date", &createBookingReq{TourID: 1, BookingDate: "01/03/2025", BookingTime: "09:30", NumberOfGuests: 1}, "bookingDate must match 2006-01-02"},
		{"rating range", &reviewReq{BookingID: 3, editReviewReq: editReviewReq{Rating: 6}}, "rating must be at most 5"},
		{"email", &registerReq{Name: "ana", Email: "not-an-email", Password: "secret1"}, "email must be a valid email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.in)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusBadRequest || he.Message != tc.want {
				t.Fatalf("want 400 %q, got %v", tc.want, err)
			}
		})
	}
}
