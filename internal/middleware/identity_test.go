package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/internal/models"
	"github.com/charlesng35/notifystream/pkg/errors"
	"github.com/charlesng35/notifystream/pkg/response"
)

type recordingRegistrar struct {
	calls []auth.Identity
	err   error
}

func (r *recordingRegistrar) Ensure(_ context.Context, id, username string) (*models.User, error) {
	r.calls = append(r.calls, auth.Identity{UserID: id, Username: username})
	if r.err != nil {
		return nil, r.err
	}
	return &models.User{BaseModel: models.BaseModel{ID: id}, Username: username}, nil
}

func newRegisterRouter(t *testing.T, users UserRegistrar) (*gin.Engine, string) {
	t.Helper()
	svc := newTestJWT(t, nil)
	token, err := svc.GenerateAccessToken(auth.AccessTokenInput{UserID: "carol-id", Username: "carol"})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(svc), RegisterIdentity(users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, token
}

func TestRegisterIdentityEnsuresCaller(t *testing.T) {
	users := &recordingRegistrar{}
	r, token := newRegisterRouter(t, users)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, []auth.Identity{{UserID: "carol-id", Username: "carol"}}, users.calls)
}

func TestRegisterIdentityAbortsOnFailure(t *testing.T) {
	users := &recordingRegistrar{err: errors.New("USERNAME_TAKEN", "Username already in use", http.StatusConflict)}
	r, token := newRegisterRouter(t, users)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "USERNAME_TAKEN", body.Error.Code)
}

func TestRegisterIdentityRequiresAuth(t *testing.T) {
	users := &recordingRegistrar{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RegisterIdentity(users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, users.calls)
}
