package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/service"
)

// respondError writes err as {"error", "reason", ...context}.  Taxonomy
// errors map to 400/409/404/502; anything else is a 500 whose detail is
// only logged.
func respondError(c echo.Context, log *logrus.Logger, err error) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
		nerr *service.NotFoundError
		uerr *service.UpstreamError
		serr *service.SagaError
	)
	switch {
	case errors.As(err, &serr):
		body := echo.Map{"error": serr.Msg, "reason": serr.Reason}
		status := http.StatusConflict
		switch serr.Reason {
		case service.ReasonInvalidPayment:
			status = http.StatusBadRequest
		case service.ReasonBookingCreationFailed:
			if cause, ok := service.ReasonOf(serr.Err); ok {
				body["cause"] = cause
			}
			if !service.IsSeatConflict(serr.Err) && !service.IsValidation(serr.Err) && !service.IsNotFound(serr.Err) {
				status = http.StatusInternalServerError
			}
		}
		return c.JSON(status, body)
	case errors.As(err, &verr):
		body := echo.Map{"error": verr.Msg, "reason": verr.Reason}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &cerr):
		return c.JSON(http.StatusConflict, echo.Map{"error": cerr.Msg, "reason": cerr.Reason, "resource": cerr.Resource, "id": cerr.ID})
	case errors.As(err, &nerr):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nerr.Error(), "reason": nerr.Reason, "resource": nerr.Resource, "id": nerr.ID})
	case errors.As(err, &uerr):
		log.WithError(err).Warn("upstream call failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": uerr.Service + " unavailable", "reason": uerr.Reason})
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "reason": "INTERNAL"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "reason": service.ReasonMalformedInput})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "reason": service.ReasonUnauthorized})
}
