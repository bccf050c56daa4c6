package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/feyza/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("user_role") == auth.RoleAdmin
}

// canActFor reports whether the caller may read or mutate userID's private data.
func canActFor(c *gin.Context, userID string) bool {
	return currentUserID(c) == userID || isAdmin(c)
}

// uuidParam returns the trimmed path parameter when it parses as a UUID.
func uuidParam(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Param(name))
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return raw, true
}

func pageParams(c *gin.Context) (limit, offset int32) {
	l, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	o, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)
	if l <= 0 {
		l = defaultPageSize
	}
	if l > maxPageSize {
		l = maxPageSize
	}
	if o < 0 {
		o = 0
	}
	return int32(l), int32(o)
}

// parseMaxAge accepts a Go duration ("90s", "5m") or a bare number of seconds.
func parseMaxAge(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
