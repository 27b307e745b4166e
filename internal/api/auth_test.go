package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/interlinked/interlinked/internal/database"
	"github.com/interlinked/interlinked/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_hashPassword(t *testing.T) {
	hash, err := hashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash, "expected the hash to differ from the plaintext")

	assert.True(t, verifyPassword(hash, "password123"), "expected the correct password to verify")
	assert.False(t, verifyPassword(hash, "wrong-password"), "expected a wrong password to fail")
	assert.False(t, verifyPassword("not-a-hash", "password123"), "expected a malformed hash to fail")
}

func Test_jwtRoundTrip(t *testing.T) {
	app, _ := newTestApp(t, &database.MockRepository{})

	token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	userId, err := app.extractUserIdFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userId)
}

func Test_extractUserIdFromToken_invalid(t *testing.T) {
	app, _ := newTestApp(t, &database.MockRepository{})

	tcases := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "garbage token",
			token: func(t *testing.T) string { return "not-a-token" },
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				token, err := app.createJwtForSession(types.User{Id: 1}, -time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "wrong signing key",
			token: func(t *testing.T) string {
				other, _ := newTestApp(t, &database.MockRepository{})
				other.signingKey = []byte("different-key")
				token, err := other.createJwtForSession(types.User{Id: 1}, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.extractUserIdFromToken(tc.token(t))
			assert.Error(t, err)
		})
	}
}

func Test_createJwtCookie(t *testing.T) {
	cookie := createJwtCookie("sometoken", time.Hour)

	assert.Equal(t, tokenCookieKey, cookie.Name)
	assert.Equal(t, "sometoken", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cookie.Expires, time.Second)
}

func TestUserId(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)

	_, ok := UserId(req.Context())
	assert.False(t, ok, "expected no user id on a bare context")

	ctx := WithUserId(req.Context(), 7)
	userId, ok := UserId(ctx)
	assert.True(t, ok)
	assert.Equal(t, 7, userId)
}
