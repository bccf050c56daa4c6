package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/feyza/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	r.GET("/x", handlers...)
	return r
}

func TestRequireAuth(t *testing.T) {
	jwt := auth.NewJWTManager("iss", "aud", "key")
	tok, _ := jwt.Mint("user-1", "s", "", time.Minute)
	r := newRouter(RequireAuth(jwt, true))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid bearer", "Bearer " + tok, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{auth.RoleBorrower, http.StatusForbidden},
		{"", http.StatusForbidden},
		{auth.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		role := tc.role
		r := newRouter(func(c *gin.Context) { c.Set("user_role", role); c.Next() }, RequireAdmin())
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != tc.want {
			t.Fatalf("role %q: expected %d, got %d", tc.role, tc.want, rec.Code)
		}
	}
}

func TestRequestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", RequestBodyLimit(16), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"ok":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected small body accepted, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 64))))
	if rec.Code != http.StatusRequestEntityTooLarge || !strings.Contains(rec.Body.String(), "request_too_large") {
		t.Fatalf("expected 413 request_too_large, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequireSecret(t *testing.T) {
	r := newRouter(RequireSecret("hooks"))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer hooks")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	closed := newRouter(RequireSecret(""))
	req.Header.Set("Authorization", "Bearer ")
	rec = httptest.NewRecorder()
	closed.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected empty secret to close route, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
		t.Fatalf("expected generated uuid, got %q", rec.Header().Get(RequestIDHeader))
	}

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != id {
		t.Fatalf("expected incoming id echoed")
	}
}
