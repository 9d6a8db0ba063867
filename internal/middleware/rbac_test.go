package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

func performWithRole(t *testing.T, role models.UserRole, allowed ...models.UserRole) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/protected", nil)
	require.NoError(t, err)
	c.Request = req
	if role != "" {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	}

	RequireRoles(allowed...)(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return w
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	w := performWithRole(t, models.RoleOffice, models.RoleAdmin, models.RoleOffice)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	w := performWithRole(t, models.RoleStaff, models.RoleAdmin, models.RoleOffice)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesRejectsAnonymous(t *testing.T) {
	w := performWithRole(t, "", models.RoleAdmin)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
