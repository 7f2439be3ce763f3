package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

const testSecret = "test-secret-key-for-jwt-middleware"

func init() {
	gin.SetMode(gin.TestMode)
}

func generateTestToken(claims jwt.MapClaims, secret string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(secret))
	return tokenString
}

func setupTestRouter(config *JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(JWTMiddleware(config))
	router.GET("/protected", func(c *gin.Context) {
		userID, _ := GetUserID(c)
		email, _ := GetEmail(c)
		ctxUser, _ := c.Request.Context().Value(logger.UserIDKey).(string)
		c.JSON(http.StatusOK, gin.H{
			"user_id":  userID,
			"email":    email,
			"ctx_user": ctxUser,
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestJWTMiddleware(t *testing.T) {
	config := &JWTConfig{
		Secret:    testSecret,
		Issuer:    "eventify-accounts",
		SkipPaths: []string{"/health"},
	}
	router := setupTestRouter(config)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{
			name: "valid token",
			header: "Bearer " + generateTestToken(jwt.MapClaims{
				"user_id": "user-123", "email": "buyer@example.com", "iss": "eventify-accounts", "exp": future,
			}, testSecret),
			wantStatus: http.StatusOK,
			wantUser:   "user-123",
		},
		{
			name: "sub claim fallback",
			header: "Bearer " + generateTestToken(jwt.MapClaims{
				"sub": "user-456", "iss": "eventify-accounts", "exp": future,
			}, testSecret),
			wantStatus: http.StatusOK,
			wantUser:   "user-456",
		},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "malformed token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{
			name: "expired token",
			header: "Bearer " + generateTestToken(jwt.MapClaims{
				"user_id": "user-123", "iss": "eventify-accounts", "exp": time.Now().Add(-time.Hour).Unix(),
			}, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			header: "Bearer " + generateTestToken(jwt.MapClaims{
				"user_id": "user-123", "iss": "eventify-accounts", "exp": future,
			}, "wrong-secret"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			header: "Bearer " + generateTestToken(jwt.MapClaims{
				"user_id": "user-123", "iss": "someone-else", "exp": future,
			}, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing user id",
			header: "Bearer " + generateTestToken(jwt.MapClaims{
				"email": "buyer@example.com", "iss": "eventify-accounts", "exp": future,
			}, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantUser, body["user_id"])
			assert.Equal(t, tt.wantUser, body["ctx_user"])
		})
	}
}

func TestJWTMiddleware_SkipPath(t *testing.T) {
	router := setupTestRouter(&JWTConfig{Secret: testSecret, SkipPaths: []string{"/health"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	router := setupTestRouter(&JWTConfig{Secret: testSecret})

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "user-123"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserID_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetUserID(c)
	assert.False(t, ok)
}
