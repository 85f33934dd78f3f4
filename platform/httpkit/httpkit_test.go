package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lead_scoring_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

const testSecret = jwtSecret("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newProtectedEngine() *gin.Engine {
	r := gin.New()
	r.Use(AuthRequired(testSecret))
	r.GET("/me", func(c *gin.Context) {
		OK(c, gin.H{"actor": ActorLabel(c)})
	})
	r.GET("/admin", RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	userID := uuid.New()
	valid := signToken(t, jwt.MapClaims{
		"sub":   userID.String(),
		"type":  "access",
		"roles": []string{"sales"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	refresh := signToken(t, jwt.MapClaims{"sub": userID.String(), "type": "refresh"})
	expired := signToken(t, jwt.MapClaims{
		"sub":  userID.String(),
		"type": "access",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})

	noExpiry := signToken(t, jwt.MapClaims{"sub": userID.String(), "type": "access"})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpiry, http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}

	engine := newProtectedEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	engine := newProtectedEngine()
	for _, roles := range [][]string{{"sales"}, {"sales", RoleAdmin}} {
		token := signToken(t, jwt.MapClaims{
			"sub":   uuid.NewString(),
			"type":  "access",
			"roles": roles,
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		want := http.StatusForbidden
		if len(roles) == 2 {
			want = http.StatusNoContent
		}
		if rec.Code != want {
			t.Fatalf("roles %v: expected %d, got %d", roles, want, rec.Code)
		}
	}
}

func TestHandleErrorMapsWrappedDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("lead not found"), http.StatusNotFound},
		{fmt.Errorf("load: %w", apperr.Unavailable("rules unavailable")), http.StatusServiceUnavailable},
		{apperr.Validation("bad"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		if !HandleError(c, tc.err) {
			t.Fatalf("expected error to be handled")
		}
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if HandleError(c, nil) {
		t.Fatalf("expected nil error to be ignored")
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 2, nil)
	r := gin.New()
	r.Use(limiter.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 200,200,429, got %v", codes)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestErrorBodyCarriesRequestIDAndHidesInternalErrors(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { HandleError(c, errors.New("pq: password authentication failed")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RequestID != "req-42" {
		t.Fatalf("expected request id in body, got %q", body.RequestID)
	}
	if body.Error != "internal error" {
		t.Fatalf("expected generic message, got %q", body.Error)
	}
}

func TestRolesFromClaim(t *testing.T) {
	if got := rolesFromClaim("admin"); len(got) != 1 || got[0] != "admin" {
		t.Fatalf("expected [admin], got %v", got)
	}
	if got := rolesFromClaim([]any{"sales", 7, "admin"}); len(got) != 2 || got[1] != "admin" {
		t.Fatalf("expected [sales admin], got %v", got)
	}
	if got := rolesFromClaim(nil); got != nil {
		t.Fatalf("expected nil roles, got %v", got)
	}
}

func TestRateLimiterDropsIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 1, nil)
	current := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	if !limiter.allow("10.0.0.1") || limiter.allow("10.0.0.1") {
		t.Fatalf("expected the burst of one to be spent")
	}

	current = current.Add(visitorIdleTTL + time.Minute)
	if !limiter.allow("10.0.0.2") {
		t.Fatalf("expected a fresh visitor to pass")
	}
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected idle visitor to be pruned, got %d visitors", len(limiter.visitors))
	}
	if !limiter.allow("10.0.0.1") {
		t.Fatalf("expected pruned visitor to start with a full bucket")
	}
}
