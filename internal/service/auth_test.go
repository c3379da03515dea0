package service

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcheckhq/fitcheck/internal/model"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, false)
	user := &model.User{ID: "g-123", Email: "u1@example.com", Name: "U One"}

	token, err := svc.GenerateJWT(user)
	require.NoError(t, err)

	claims, err := svc.VerifyJWT(token)
	require.NoError(t, err)

	restored, err := svc.UserFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, user.ID, restored.ID)
	assert.Equal(t, user.Email, restored.Email)
	assert.Equal(t, user.Name, restored.Name)
	assert.True(t, restored.SignedIn)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", time.Hour, false)
	verifier := NewAuthService("secret-b", time.Hour, false)

	token, err := issuer.GenerateJWT(&model.User{ID: "g-123"})
	require.NoError(t, err)

	_, err = verifier.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute, false)

	token, err := svc.GenerateJWT(&model.User{ID: "g-123"})
	require.NoError(t, err)

	_, err = svc.VerifyJWT(token)
	assert.Error(t, err)
}

func TestUserFromClaimsRequiresUserID(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, false)

	_, err := svc.UserFromClaims(jwt.MapClaims{"email": "u1@example.com"})
	assert.Error(t, err)
}

func TestCookieFlags(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, true)

	rec := httptest.NewRecorder()
	svc.SetJWTCookie(rec, "tok", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	rec = httptest.NewRecorder()
	svc.ClearJWTCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].Expires.Before(time.Now()))
}
