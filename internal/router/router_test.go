package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/metrics"
	"github.com/iliyamo/seat-reservation-admin/internal/middleware"
	"github.com/iliyamo/seat-reservation-admin/internal/queue"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
	"github.com/iliyamo/seat-reservation-admin/internal/testutil"
	"github.com/iliyamo/seat-reservation-admin/internal/utils"
)

const bootstrapPassword = "superadmin123"

type server struct {
	t *testing.T
	e *echo.Echo
}

func newServer(t *testing.T, limit config.RateLimitConfig) *server {
	t.Helper()
	db := testutil.NewDB(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens, err := utils.NewTokenIssuer("router-test-secret", time.Hour)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	bm := metrics.NewBookingMetrics(reg)
	layoutRepo := repository.NewLayoutRepo(db)

	accounts, err := service.NewAccounts(repository.NewUserRepo(db), tokens, bcrypt.MinCost, nil)
	require.NoError(t, err)
	_, _, err = accounts.EnsureSuperadmin(context.Background(), config.BootstrapConfig{
		Enabled: true, Email: "superadmin@seat.com", Name: "Super Admin", Password: bootstrapPassword,
	})
	require.NoError(t, err)

	cacheCfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	e := New(Deps{
		Accounts:    accounts,
		Layouts:     service.NewLayouts(layoutRepo, bm, nil),
		Ledger:      service.NewLedger(repository.NewBookingRepo(db), layoutRepo, queue.NopPublisher{}, bm, nil),
		Cache:       middleware.NewResponseCache(cacheCfg, rdb, nil),
		LoginLimit:  middleware.NewTokenBucket(limit, rdb, nil),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	})
	return &server{t: t, e: e}
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(s.t, "bearer", out.TokenType)
	return out.AccessToken
}

func (s *server) createUser(admin, email, name string) uint64 {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/users", admin, map[string]string{"email": email, "name": name, "password": name + "-pw", "role": "user"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var u struct {
		ID uint64 `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u.ID
}

func (s *server) seedLayout(admin string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/layout", admin, map[string]any{
		"seats": []map[string]any{
			{"id": "seat-a1", "label": "A1", "x": 10, "y": 20},
			{"id": "seat-a2", "label": "A2", "x": 30, "y": 20},
		},
		"background_image": "floor.png",
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	msg, _ := out["error"].(string)
	return msg
}

func disabledLimit() config.RateLimitConfig { return config.RateLimitConfig{} }

func TestBootstrapLoginAndListUsers(t *testing.T) {
	s := newServer(t, disabledLimit())

	rec := s.do(http.MethodGet, "/", "", nil)
	assert.JSONEq(t, `{"message":"Seat Management API"}`, rec.Body.String())

	admin := s.login("superadmin@seat.com", bootstrapPassword)
	rec = s.do(http.MethodGet, "/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.GreaterOrEqual(t, len(users), 1)
	assert.Equal(t, "superadmin", users[0]["role"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "superadmin@seat.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorOf(t, rec))
}

func TestAuthorizationGate(t *testing.T) {
	s := newServer(t, disabledLimit())
	admin := s.login("superadmin@seat.com", bootstrapPassword)
	s.createUser(admin, "ana@example.com", "ana")
	ana := s.login("ana@example.com", "ana-pw")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/users/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/users/me", "not-a-jwt", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/bookings", "", nil).Code)

	rec := s.do(http.MethodGet, "/users/me", ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ana@example.com"`)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/users", ana, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/layout", ana, map[string]any{"seats": []any{}}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, "/bookings/1/approve", ana, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/layout", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/seats/booked?weekday=0", "", nil).Code)
}

func TestUserAdministration(t *testing.T) {
	s := newServer(t, disabledLimit())
	admin := s.login("superadmin@seat.com", bootstrapPassword)
	anaID := s.createUser(admin, "ana@example.com", "ana")

	rec := s.do(http.MethodPost, "/users", admin, map[string]string{"email": "ana@example.com", "name": "x", "password": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email ana@example.com is already registered", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/users", admin, map[string]string{"email": "bad@example.com", "name": "x", "password": "y", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/users", admin, map[string]string{"email": "not-an-email", "name": "x", "password": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "email must be a valid email")

	var me struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/users/me", admin, nil).Body.Bytes(), &me))
	rec = s.do(http.MethodDelete, "/users/"+strconv.FormatUint(me.ID, 10), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "self deletion always fails, even for the only superadmin")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/users/9999", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/users/abc", admin, nil).Code)

	rec = s.do(http.MethodPost, "/auth/admin-reset-password", admin, map[string]any{"user_id": anaID, "new_password": "fresh"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Password reset for ana@example.com"}`, rec.Body.String())
	ana := s.login("ana@example.com", "fresh")

	rec = s.do(http.MethodPost, "/auth/reset-password", ana, map[string]string{"old_password": "nope", "new_password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid old password", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/auth/reset-password", ana, map[string]string{"old_password": "fresh", "new_password": "fresher"})
	require.Equal(t, http.StatusOK, rec.Code)
	s.login("ana@example.com", "fresher")

	rec = s.do(http.MethodDelete, "/users/"+strconv.FormatUint(anaID, 10), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/users/me", ana, nil).Code)
}

func TestOverlongPasswordsAreValidationErrors(t *testing.T) {
	s := newServer(t, disabledLimit())
	admin := s.login("superadmin@seat.com", bootstrapPassword)
	anaID := s.createUser(admin, "ana@example.com", "ana")
	ana := s.login("ana@example.com", "ana-pw")

	rec := s.do(http.MethodPost, "/users", admin, map[string]string{"email": "long@example.com", "name": "long", "password": strings.Repeat("p", 73)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password must be at most 72 bytes", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/auth/reset-password", ana, map[string]string{"old_password": "ana-pw", "new_password": strings.Repeat("p", 80)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "new_password must be at most 72 bytes", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/auth/admin-reset-password", admin, map[string]any{"user_id": anaID, "new_password": strings.Repeat("p", 80)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "new_password must be at most 72 bytes", errorOf(t, rec))

	s.login("ana@example.com", "ana-pw")
}

type bookingResp struct {
	ID        uint64  `json:"id"`
	SeatID    string  `json:"seat_id"`
	SeatLabel string  `json:"seat_label"`
	UserName  string  `json:"user_name"`
	UserEmail *string `json:"user_email"`
	Status    string  `json:"status"`
	Weekday   int     `json:"weekday"`
}

func bookedSeats(t *testing.T, s *server, weekday int) map[string]map[string]any {
	t.Helper()
	rec := s.do(http.MethodGet, "/seats/booked?weekday="+strconv.Itoa(weekday), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		BookedSeats map[string]map[string]any `json:"booked_seats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.BookedSeats
}

func TestBookingScenario(t *testing.T) {
	s := newServer(t, disabledLimit())
	admin := s.login("superadmin@seat.com", bootstrapPassword)
	s.seedLayout(admin)
	s.createUser(admin, "ana@example.com", "ana")
	s.createUser(admin, "bob@example.com", "bob")
	ana := s.login("ana@example.com", "ana-pw")
	bob := s.login("bob@example.com", "bob-pw")

	assert.Empty(t, bookedSeats(t, s, 0), "primes the cache with an empty map")

	rec := s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"seat-a1"}, "weekday": 0, "notes": "window"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created []bookingResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created, 1)
	assert.Equal(t, "A1", created[0].SeatLabel)
	assert.Equal(t, "pending", created[0].Status)
	assert.Equal(t, "ana", created[0].UserName)

	booked := bookedSeats(t, s, 0)
	require.Contains(t, booked, "seat-a1", "bookings purge the cached map")
	assert.Equal(t, "ana", booked["seat-a1"]["user_name"])
	assert.Equal(t, "pending", booked["seat-a1"]["status"])

	rec = s.do(http.MethodPost, "/bookings", bob, map[string]any{"seat_ids": []string{"seat-a1"}, "weekday": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Seat A1 is already booked for this weekday", errorOf(t, rec))

	id := strconv.FormatUint(created[0].ID, 10)
	rec = s.do(http.MethodPatch, "/bookings/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Booking approved"}`, rec.Body.String())
	assert.Equal(t, "approved", bookedSeats(t, s, 0)["seat-a1"]["status"])

	rec = s.do(http.MethodPatch, "/bookings/"+id+"/reject", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bookedSeats(t, s, 0))

	rec = s.do(http.MethodPost, "/bookings", bob, map[string]any{"seat_ids": []string{"seat-a1"}, "weekday": 0})
	require.Equal(t, http.StatusOK, rec.Code, "rejected booking freed the seat")

	rec = s.do(http.MethodGet, "/bookings", ana, nil)
	var own []bookingResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &own))
	require.Len(t, own, 1)
	assert.Equal(t, "rejected", own[0].Status)

	rec = s.do(http.MethodGet, "/bookings", admin, nil)
	var all []bookingResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestBookingValidationAndOwnership(t *testing.T) {
	s := newServer(t, disabledLimit())
	admin := s.login("superadmin@seat.com", bootstrapPassword)
	s.seedLayout(admin)
	s.createUser(admin, "ana@example.com", "ana")
	s.createUser(admin, "bob@example.com", "bob")
	ana := s.login("ana@example.com", "ana-pw")
	bob := s.login("bob@example.com", "bob-pw")

	for _, weekday := range []int{-1, 7} {
		rec := s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"seat-a1"}, "weekday": weekday})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"seat-a1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "weekday is required")

	rec = s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"seat-a1"}, "weekday": 1, "booked_for_email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"ghost"}, "weekday": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Seat ghost not found", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/bookings", bob, map[string]any{"seat_ids": []string{"seat-a2"}, "weekday": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"seat-a1", "seat-a2"}, "weekday": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Seat A2 is already booked for this weekday", errorOf(t, rec))
	assert.NotContains(t, bookedSeats(t, s, 3), "seat-a1", "failed batch leaves no partial bookings")

	var bobs []bookingResp
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/bookings", bob, nil).Body.Bytes(), &bobs))
	require.Len(t, bobs, 1)
	id := strconv.FormatUint(bobs[0].ID, 10)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/bookings/"+id, ana, nil).Code)

	rec = s.do(http.MethodPatch, "/bookings/"+id, admin, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, "/bookings/9999", admin, map[string]string{"status": "approved"}).Code)

	rec = s.do(http.MethodPatch, "/bookings/"+id, admin, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated bookingResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "approved", updated.Status)
	assert.Equal(t, "A2", updated.SeatLabel)

	rec = s.do(http.MethodDelete, "/bookings/"+id, bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Booking cancelled"}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/bookings/"+id, bob, nil).Code)

	rec = s.do(http.MethodGet, "/seats/booked?weekday=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLayoutReplaceToleratesGhostBookings(t *testing.T) {
	s := newServer(t, disabledLimit())
	admin := s.login("superadmin@seat.com", bootstrapPassword)
	s.seedLayout(admin)
	s.createUser(admin, "ana@example.com", "ana")
	ana := s.login("ana@example.com", "ana-pw")

	rec := s.do(http.MethodGet, "/layout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"background_image":"floor.png"`)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/bookings", ana, map[string]any{"seat_ids": []string{"seat-a1"}, "weekday": 2}).Code)

	rec = s.do(http.MethodPost, "/layout", admin, map[string]any{"seats": []any{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seats":[],"background_image":null}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/layout", "", nil)
	assert.JSONEq(t, `{"seats":[],"background_image":null}`, rec.Body.String(), "replacement purged the cached layout")

	rec = s.do(http.MethodGet, "/bookings", ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []bookingResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "seat-a1", views[0].SeatLabel)

	rec = s.do(http.MethodPost, "/layout", admin, map[string]any{"seats": []map[string]any{
		{"id": "x", "label": "X1"}, {"id": "x", "label": "X2"},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Duplicate seat id x", errorOf(t, rec))

	rec = s.do(http.MethodPost, "/layout", admin, map[string]any{"seats": []map[string]any{{"id": "", "label": "X1"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "seats[0].id is required")
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	})

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "x@example.com", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "superadmin@seat.com", "password": bootstrapPassword})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, disabledLimit())

	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	s.do(http.MethodGet, "/layout", "", nil)
	rec = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/layout",status="200"}`)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds_bucket")
}
