package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

func rbacContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/protected", nil)
	require.NoError(t, err)
	c.Request = req
	return c, w
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	c, w := rbacContext(t)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	RequireRoles(models.RoleAdmin, models.RoleTeacher)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	c, w := rbacContext(t)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	RequireRoles(models.RoleAdmin)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	c, w := rbacContext(t)

	RequireRoles(models.RoleAdmin)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRoundTrip(t *testing.T) {
	secret := "test-secret"
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleDriver,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	c, w := rbacContext(t)
	c.Request.Header.Set("Authorization", "Bearer "+signed)

	JWT(secret)(c)

	require.Equal(t, http.StatusOK, w.Code)
	stored, exists := c.Get(ContextUserKey)
	require.True(t, exists)
	got, ok := stored.(*models.JWTClaims)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, models.RoleDriver, got.Role)
}

func TestJWTMiddlewareRejectsExpiredToken(t *testing.T) {
	secret := "test-secret"
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleDriver,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	c, w := rbacContext(t)
	c.Request.Header.Set("Authorization", "Bearer "+signed)

	JWT(secret)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	c, w := rbacContext(t)
	c.Request.Header.Set("Authorization", "Token abc123")

	JWT("test-secret")(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
