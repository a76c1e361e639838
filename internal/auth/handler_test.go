package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rxstock/rxstock/internal/shared"
)

type stubUsers struct {
	user User
	err  error
}

func (s stubUsers) FindByEmail(context.Context, string) (User, error) {
	return s.user, s.err
}

func newTestHandler(t *testing.T, users stubUsers) *Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(users, client, time.Hour)
	return NewHandler(slog.New(slog.DiscardHandler), svc, false)
}

func activeUser(t *testing.T, password string) User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return User{ID: 7, Email: "owner@pharmacy.test", Name: "Owner", PasswordHash: hash, IsActive: true}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h := newTestHandler(t, stubUsers{user: activeUser(t, "correct-horse")})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@pharmacy.test","password":"correct-horse"}`))
	rr := httptest.NewRecorder()
	h.login(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newTestHandler(t, stubUsers{user: activeUser(t, "correct-horse")})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@pharmacy.test","password":"wrong-password"}`))
	rr := httptest.NewRecorder()
	h.login(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	user := activeUser(t, "correct-horse")
	user.IsActive = false
	h := newTestHandler(t, stubUsers{user: user})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@pharmacy.test","password":"correct-horse"}`))
	rr := httptest.NewRecorder()
	h.login(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareResolvesActor(t *testing.T) {
	h := newTestHandler(t, stubUsers{user: activeUser(t, "correct-horse")})

	token, err := h.service.CreateSession(context.Background(), 7)
	require.NoError(t, err)

	var gotActor int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = shared.ActorID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/purchases", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rr := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(7), gotActor)
}

func TestMiddlewareRejectsMissingSession(t *testing.T) {
	h := newTestHandler(t, stubUsers{})

	req := httptest.NewRequest(http.MethodGet, "/api/purchases", nil)
	rr := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newTestHandler(t, stubUsers{user: activeUser(t, "correct-horse")})

	token, err := h.service.CreateSession(context.Background(), 7)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rr := httptest.NewRecorder()
	h.logout(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, err = h.service.ResolveSession(context.Background(), token)
	require.ErrorIs(t, err, ErrNoSession)
}
