package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-be/internal/auth"
	"storefront-be/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tokenString
}

func TestAuth(t *testing.T) {
	authn := Auth(auth.NewTokens(testSecret))

	t.Run("MissingToken", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := utils.GetUserIDFromContext(r.Context())
			assert.False(t, ok, "context should not contain a user")
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		w := httptest.NewRecorder()
		authn(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		authn(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
	})

	t.Run("ValidToken", func(t *testing.T) {
		tokenString := signed(t, jwt.MapClaims{
			"user_id": 1,
			"role":    utils.RoleAdmin,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, uint(1), userID)
			assert.True(t, utils.IsAdmin(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: tokenString})
		w := httptest.NewRecorder()
		authn(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		tokenString := signed(t, jwt.MapClaims{
			"user_id": 1,
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		w := httptest.NewRecorder()
		authn(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("NonBearerHeader", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := utils.GetUserIDFromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		w := httptest.NewRecorder()
		authn(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAuthAndAdmin(t *testing.T) {
	anonymous := context.Background()
	user := utils.SetUserContext(context.Background(), 7, utils.RoleUser)
	admin := utils.SetUserContext(context.Background(), 1, utils.RoleAdmin)

	tests := []struct {
		name       string
		mw         func(http.Handler) http.Handler
		ctx        context.Context
		wantStatus int
	}{
		{"AuthAnonymous", RequireAuth, anonymous, http.StatusUnauthorized},
		{"AuthUser", RequireAuth, user, http.StatusOK},
		{"AdminAnonymous", RequireAdmin, anonymous, http.StatusUnauthorized},
		{"AdminAsUser", RequireAdmin, user, http.StatusForbidden},
		{"AdminAsAdmin", RequireAdmin, admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/orders/x/ship", nil).WithContext(tt.ctx)
			w := httptest.NewRecorder()
			tt.mw(okHandler()).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("StrictTierOnPay", func(t *testing.T) {
		l := NewRateLimiter("")
		handler := l.Middleware(okHandler())

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i < burstStrict+1; i++ {
			req := httptest.NewRequest(http.MethodPost, "/orders/abc/pay", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		for _, code := range codes[:burstStrict] {
			assert.Equal(t, http.StatusOK, code)
		}
		assert.Equal(t, http.StatusTooManyRequests, codes[burstStrict])
	})

	t.Run("SeparateQuotaPerTier", func(t *testing.T) {
		l := NewRateLimiter("")
		handler := l.Middleware(okHandler())
		ctx := utils.SetUserContext(context.Background(), 7, utils.RoleUser)

		for i := 0; i < burstStrict; i++ {
			req := httptest.NewRequest(http.MethodPost, "/orders/abc/pay", nil).WithContext(ctx)
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodGet, "/orders/abc", nil).WithContext(ctx)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ResolveTier", func(t *testing.T) {
		l := NewRateLimiter("internal-key")

		internal := httptest.NewRequest(http.MethodPost, "/orders/abc/pay", nil)
		internal.Header.Set("X-Service-Auth", "internal-key")
		_, _, tier := l.resolveTier(internal)
		assert.Equal(t, "internal", tier)

		checkout := httptest.NewRequest(http.MethodPost, "/orders/abc/create-checkout-session/", nil)
		_, _, tier = l.resolveTier(checkout)
		assert.Equal(t, "strict", tier)

		frontend := httptest.NewRequest(http.MethodGet, "/orders", nil)
		frontend.Header.Set("X-Client-Type", "frontend-heavy")
		_, _, tier = l.resolveTier(frontend)
		assert.Equal(t, "frontend", tier)

		read := httptest.NewRequest(http.MethodGet, "/orders/abc/pay", nil)
		_, _, tier = l.resolveTier(read)
		assert.Equal(t, "general", tier)
	})

	t.Run("Identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		assert.Equal(t, "ip:10.0.0.9", identity(req))

		req.Header.Set("X-Device-ID", "dev-1")
		assert.Equal(t, "device:dev-1", identity(req))

		req = req.WithContext(utils.SetUserContext(req.Context(), 3, utils.RoleUser))
		assert.Equal(t, "user:3", identity(req))
	})

	t.Run("CleanupEvictsIdle", func(t *testing.T) {
		l := NewRateLimiter("")
		now := time.Now()
		l.now = func() time.Time { return now }
		l.get("ip:1:general", limitGeneral, burstGeneral)

		now = now.Add(visitorIdle + time.Second)
		l.cleanup()
		assert.Empty(t, l.visitors)
	})

	t.Run("RunStopsOnCancel", func(t *testing.T) {
		l := NewRateLimiter("")
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			l.Run(ctx)
			close(done)
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}
