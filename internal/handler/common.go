package handler

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-saga/internal/middleware"
)

const roleAdmin = "ADMIN"

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the caller's id as resolved by JWTAuth.
func getUserID(c echo.Context) (string, error) {
	uid := middleware.UserID(c)
	if uid == "" {
		return "", errNoUser
	}
	return uid, nil
}

func isAdmin(c echo.Context) bool {
	return middleware.Role(c) == roleAdmin
}

// seatRefs trims references and drops blanks.
func seatRefs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
