package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/config"
	"github.com/iliyamo/cinema-booking-saga/internal/gateway"
	"github.com/iliyamo/cinema-booking-saga/internal/handler"
	"github.com/iliyamo/cinema-booking-saga/internal/middleware"
	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/repository"
	"github.com/iliyamo/cinema-booking-saga/internal/service"
	"github.com/iliyamo/cinema-booking-saga/internal/showtime"
	"github.com/iliyamo/cinema-booking-saga/internal/utils"
)

const (
	jwtSecret     = "router-secret"
	gatewaySecret = "gw-secret"
)

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	log, _ := logtest.NewNullLogger()
	seats := service.NewSeatInventory(repository.NewMemorySeatStore(), log)
	dispatcher := service.NewNotificationDispatcher(service.NoopNotifier{Log: log}, nil, 0, log)
	sink := service.NewAlertSink(nil, 0, log)
	ledger := service.NewBookingLedger(repository.NewMemoryBookingStore(), seats, dispatcher, sink, service.LedgerConfig{}, log)
	gw := gateway.NewClient(config.GatewayConfig{BaseURL: "http://127.0.0.1:1", KeySecret: gatewaySecret, Timeout: time.Second})
	verifier := service.NewPaymentVerifier(gw, gatewaySecret, repository.NewMemoryPaymentStore(), time.Second, log)
	saga := service.NewBookingSaga(verifier, ledger, showtime.StaticCatalog{}, dispatcher, sink, time.Second, log)

	e := echo.New()
	seatH := handler.NewSeatHandler(seats, time.Minute, log)
	bookingH := handler.NewBookingHandler(ledger, saga, log)
	paymentH := handler.NewPaymentHandler(verifier, saga, log)
	RegisterRoutes(e, &handler.HealthHandler{Notifier: dispatcher})
	RegisterPublic(e, seatH)
	RegisterCustomer(e, seatH, bookingH, paymentH, jwtSecret, middleware.NewTokenBucket(config.RateLimitConfig{}, nil, log))
	RegisterAdmin(e, seatH, bookingH, paymentH, jwtSecret, middleware.NewRedisCache(config.CacheConfig{}, nil, 0))
	return &api{t: t, e: e}
}

func (a *api) call(method, path, user, role string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		tok, err := utils.NewAccessToken(jwtSecret, user, role, time.Minute)
		require.NoError(a.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","notifier":"closed"}`, rec.Body.String())
}

func TestCheckoutFlow(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodGet, "/v1/showtimes/st-1/seats", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_INITIALIZED")

	rec = a.call(http.MethodPost, "/v1/admin/showtimes/st-1/seats", "u1", "CUSTOMER", echo.Map{"rows": 1, "seats_per_row": 2})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.call(http.MethodPost, "/v1/admin/showtimes/st-1/seats", "op", "ADMIN", echo.Map{"rows": 1, "seats_per_row": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	proof := model.PaymentProof{
		OrderID:     "order_1",
		PaymentID:   "pay_1",
		Signature:   gateway.Sign(gatewaySecret, "order_1", "pay_1"),
		ShowtimeID:  "st-1",
		Seats:       []string{"A1"},
		TotalAmount: 1000,
	}
	rec = a.call(http.MethodPost, "/v1/payments/verify", "U", "CUSTOMER", proof)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var conf struct {
		BookingID    string `json:"bookingId"`
		TicketNumber string `json:"ticketNumber"`
	}
	decode(t, rec, &conf)
	assert.NotEmpty(t, conf.TicketNumber)

	forged := proof
	forged.PaymentID = "pay_2"
	forged.Seats = []string{"A2"}
	rec = a.call(http.MethodPost, "/v1/payments/verify", "V", "CUSTOMER", forged)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PAYMENT")

	second := proof
	second.PaymentID = "pay_3"
	second.Signature = gateway.Sign(gatewaySecret, "order_1", "pay_3")
	rec = a.call(http.MethodPost, "/v1/payments/verify", "V", "CUSTOMER", second)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "BOOKING_CREATION_FAILED")

	rec = a.call(http.MethodGet, "/v1/showtimes/st-1/seats", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"A1","row":"A","number":1,"status":"BOOKED"`)

	rec = a.call(http.MethodGet, "/v1/bookings/"+conf.BookingID, "V", "CUSTOMER", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.call(http.MethodGet, "/v1/bookings/my", "U", "CUSTOMER", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []model.Booking
	decode(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, model.UnknownMovieTitle, mine[0].MovieTitle)
	assert.Equal(t, "pay_1", mine[0].PaymentID)

	rec = a.call(http.MethodPost, "/v1/bookings/"+conf.BookingID+"/cancellation-request", "U", "CUSTOMER", echo.Map{"reason": "can't make it"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.call(http.MethodPost, "/v1/bookings/"+conf.BookingID+"/cancellation-request", "U", "CUSTOMER", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_STATE")

	rec = a.call(http.MethodGet, "/v1/admin/bookings/cancellation-requests", "op", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.Booking
	decode(t, rec, &pending)
	assert.Len(t, pending, 1)

	rec = a.call(http.MethodPost, "/v1/admin/bookings/"+conf.BookingID+"/cancel", "op", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled model.Booking
	decode(t, rec, &cancelled)
	require.NotNil(t, cancelled.RefundAmount)
	assert.Equal(t, 900.0, *cancelled.RefundAmount)

	rec = a.call(http.MethodPost, "/v1/payments/verify", "V", "CUSTOMER", second)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.call(http.MethodGet, "/v1/admin/payments/pay_3", "op", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paid model.PaymentRecord
	decode(t, rec, &paid)
	assert.Equal(t, model.PaymentSuccess, paid.Status)

	rec = a.call(http.MethodGet, "/v1/admin/payments/stats", "op", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st model.PaymentStats
	decode(t, rec, &st)
	assert.Equal(t, 2, st.SuccessfulPayments)
}

func TestHoldsAndAdminOperations(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodPost, "/v1/admin/showtimes/st-2/seats", "op", "ADMIN", echo.Map{"rows": 2, "seats_per_row": 3})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.call(http.MethodPost, "/v1/showtimes/st-2/holds", "U", "CUSTOMER", echo.Map{"seats": []string{"A1", "A2"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.call(http.MethodPost, "/v1/admin/bookings", "op", "ADMIN", echo.Map{"user_id": "V", "showtime_id": "st-2", "seats": []string{"A1"}, "total_amount": 300})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "SEAT_HELD_BY_OTHER")

	rec = a.call(http.MethodDelete, "/v1/showtimes/st-2/holds", "U", "CUSTOMER", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"released":2}`, rec.Body.String())

	rec = a.call(http.MethodPost, "/v1/admin/bookings", "op", "ADMIN", echo.Map{"user_id": "V", "showtime_id": "st-2", "seats": []string{"A1"}, "total_amount": 300})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b model.Booking
	decode(t, rec, &b)

	rec = a.call(http.MethodPut, "/v1/admin/bookings/"+b.ID+"/seats", "op", "ADMIN", echo.Map{"seats": []string{"B3"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"seat_labels":["B3"]`)

	rec = a.call(http.MethodPost, "/v1/admin/payments", "op", "ADMIN", echo.Map{"booking_id": b.ID, "method": "cash"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var rec2 model.PaymentRecord
	decode(t, rec, &rec2)
	assert.Equal(t, 300.0, rec2.Amount)

	for i := 0; i < 2; i++ {
		rec = a.call(http.MethodPost, "/v1/admin/bookings/"+b.ID+"/scan", "op", "ADMIN", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = a.call(http.MethodGet, "/v1/admin/bookings/stats", "op", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st model.BookingStats
	decode(t, rec, &st)
	assert.Equal(t, 1, st.TotalBookings)
	assert.Equal(t, 1, st.TotalSeatsSold)

	rec = a.call(http.MethodDelete, "/v1/admin/bookings/"+b.ID, "op", "ADMIN", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.call(http.MethodGet, "/v1/showtimes/st-2/seats", "", "", nil)
	assert.NotContains(t, rec.Body.String(), "BOOKED")
}

func TestCreateOrderGatewayDown(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodPost, "/v1/payments/orders", "U", "CUSTOMER", echo.Map{"amount": 250})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "GATEWAY_ERROR")

	rec = a.call(http.MethodPost, "/v1/payments/orders", "", "", echo.Map{"amount": 250})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
