package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retailpos/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-with-at-least-32-characters"

func newRouter(auth *Authenticator, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/whoami", auth.RequireRole(roles...), func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, actor.UserID.String()+"|"+actor.BranchID.String()+"|"+actor.Role)
	})
	return r
}

func TestRequireRole(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	actor := model.Actor{UserID: uuid.New(), BranchID: uuid.New(), Role: model.RoleCashier}
	token, err := auth.Issue(actor, time.Hour)
	require.NoError(t, err)

	expired, err := auth.Issue(actor, -time.Hour)
	require.NoError(t, err)

	foreign, err := NewAuthenticator("another-secret-with-at-least-32-chars").Issue(actor, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		roles  []string
		header string
		want   int
	}{
		{"missing header", nil, "", http.StatusUnauthorized},
		{"malformed header", nil, "Token " + token, http.StatusUnauthorized},
		{"expired token", nil, "Bearer " + expired, http.StatusUnauthorized},
		{"wrong signature", nil, "Bearer " + foreign, http.StatusUnauthorized},
		{"role not allowed", []string{model.RoleAdmin, model.RoleManager}, "Bearer " + token, http.StatusForbidden},
		{"role allowed", []string{model.RoleCashier}, "Bearer " + token, http.StatusOK},
		{"any role", nil, "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(auth, tt.roles...).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole_StoresActor(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	actor := model.Actor{UserID: uuid.New(), BranchID: uuid.New(), Role: model.RoleManager}
	token, err := auth.Issue(actor, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	w := httptest.NewRecorder()
	newRouter(auth).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, actor.UserID.String()+"|"+actor.BranchID.String()+"|"+actor.Role, w.Body.String())
}

func TestParseActor_RejectsGarbage(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	_, err := auth.ParseActor("not-a-token")
	assert.Error(t, err)
}
