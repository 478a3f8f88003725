package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/moments/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAuthEngine(tokens *utils.TokenService) *gin.Engine {
	r := gin.New()
	whoami := func(ctx *gin.Context) {
		identity, ok := CurrentIdentity(ctx)
		utils.Success(ctx, gin.H{"authenticated": ok, "userId": identity.UserID, "username": identity.Username})
	}
	r.GET("/required", AuthRequired(tokens), whoami)
	r.GET("/optional", AuthOptional(tokens), whoami)
	return r
}

func doGet(r http.Handler, path, authorization string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestAuthRequired(t *testing.T) {
	tokens := utils.NewTokenService("test-secret", time.Hour)
	token, _, err := tokens.Issue(3, "carol")
	require.NoError(t, err)
	r := newAuthEngine(tokens)

	w, env := doGet(r, "/required", "bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":true,"userId":3,"username":"carol"}`, string(env.Data))

	other, _, err := utils.NewTokenService("other-secret", time.Hour).Issue(3, "carol")
	require.NoError(t, err)

	cases := map[string]struct {
		header  string
		message string
	}{
		"missing":      {"", "authorization header missing"},
		"wrong scheme": {"Basic abc", "invalid authorization header format"},
		"no token":     {"Bearer", "invalid authorization header format"},
		"blank token":  {"Bearer   ", "empty bearer token"},
		"garbage":      {"Bearer not-a-jwt", "invalid token"},
		"other secret": {"Bearer " + other, "invalid token"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			w, env := doGet(r, "/required", c.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, http.StatusUnauthorized, env.Code)
			assert.Equal(t, c.message, env.Message)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

func TestAuthOptional(t *testing.T) {
	tokens := utils.NewTokenService("test-secret", time.Hour)
	token, _, err := tokens.Issue(5, "dave")
	require.NoError(t, err)
	r := newAuthEngine(tokens)

	_, env := doGet(r, "/optional", "Bearer "+token)
	assert.JSONEq(t, `{"authenticated":true,"userId":5,"username":"dave"}`, string(env.Data))

	for _, header := range []string{"", "Bearer broken", "Token x"} {
		w, env := doGet(r, "/optional", header)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"authenticated":false,"userId":0,"username":""}`, string(env.Data))
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(4)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	// burst is half the per-minute rate
	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"), "limits are per client")

	now = now.Add(15 * time.Second)
	assert.True(t, l.Allow("1.1.1.1"))

	now = now.Add(time.Hour)
	l.Allow("3.3.3.3")
	l.mu.Lock()
	assert.Len(t, l.limiters, 1, "idle limiters are dropped")
	l.mu.Unlock()
}

func TestRateLimiterMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/", NewRateLimiter(2).Middleware(), func(ctx *gin.Context) { utils.Success(ctx, nil) })

	w, _ := doGet(r, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := doGet(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", env.Message)
}
