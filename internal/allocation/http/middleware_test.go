package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubjectMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(captured *uuid.UUID) *gin.Engine {
		router := gin.New()
		router.Use(SubjectMiddleware(discardLogger()))
		router.GET("/test", func(c *gin.Context) {
			subject, ok := GetSubject(c.Request.Context())
			require.True(t, ok)
			*captured = subject
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("Success_ValidHeader", func(t *testing.T) {
		var captured uuid.UUID
		router := newRouter(&captured)

		subject := uuid.Must(uuid.NewV7())
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Subject-Id", subject.String())
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, subject, captured)
	})

	t.Run("Error_MissingHeader", func(t *testing.T) {
		var captured uuid.UUID
		router := newRouter(&captured)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Error_MalformedHeader", func(t *testing.T) {
		var captured uuid.UUID
		router := newRouter(&captured)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Subject-Id", "not-a-uuid")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newContext := func(authorization string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
		if authorization != "" {
			c.Request.Header.Set("Authorization", authorization)
		}
		return c
	}

	t.Run("ValidBearer", func(t *testing.T) {
		token, ok := bearerToken(newContext("Bearer raw-secret"))
		assert.True(t, ok)
		assert.Equal(t, "raw-secret", token)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		_, ok := bearerToken(newContext(""))
		assert.False(t, ok)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		_, ok := bearerToken(newContext("Basic dXNlcjpwYXNz"))
		assert.False(t, ok)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		_, ok := bearerToken(newContext("Bearer   "))
		assert.False(t, ok)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	// 1 request per second with burst of 2
	router.Use(RateLimitMiddleware(1.0, 2, discardLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	doRequest := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		router.ServeHTTP(w, req)
		return w
	}

	// Burst capacity allows the first two requests
	assert.Equal(t, http.StatusOK, doRequest().Code)
	assert.Equal(t, http.StatusOK, doRequest().Code)

	// Third request exceeds the burst
	w := doRequest()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
