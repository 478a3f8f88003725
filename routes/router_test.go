package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/moments/config"
	"github.com/cppla/moments/services"
	"github.com/cppla/moments/store"
	"github.com/cppla/moments/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.AppConfig{
		GinMode:            "test",
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100000,
		UploadDir:          filepath.Join(t.TempDir(), "uploads"),
		UploadURLPrefix:    "/uploads",
		UploadMaxMB:        10,
	}
	stores := store.NewMemory()
	users := services.NewUserService(stores.Users, stores.Posts, utils.NewPasswordHasher(bcrypt.MinCost))
	engine := SetupRouter(cfg, Dependencies{
		Users:   users,
		Posts:   services.NewPostService(stores.Posts, stores.Users),
		Uploads: services.NewUploadService(stores.Files, cfg.UploadDir, cfg.UploadURLPrefix, cfg.UploadMaxBytes()),
		Tokens:  utils.NewTokenService("router-test-secret", time.Hour),
		Cache:   utils.NewCache(nil),
	})
	return &testServer{t: t, engine: engine}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if json.Valid(w.Body.Bytes()) {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) register(username, password string) {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/auth/register", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, env.Message)
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(s.t, data.Token)
	return data.Token
}

func (s *testServer) createPost(token, content string, tags []string) uint {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/posts", token, gin.H{"content": content, "tags": tags})
	require.Equal(s.t, http.StatusOK, w.Code, env.Message)
	var data struct {
		PostID uint `json:"postId"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.PostID
}

func TestWalkthrough(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodPost, "/auth/register", "", gin.H{"username": "alice", "password": "wonderland"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.JSONEq(t, `{"userId":1}`, string(env.Data))

	w, env = s.do(http.MethodPost, "/auth/register", "", gin.H{"username": "alice", "password": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Equal(t, "username already exists", env.Message)
	assert.Equal(t, "null", string(env.Data))

	w, env = s.do(http.MethodPost, "/auth/login", "", gin.H{"username": "alice", "password": "wonderland"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		UserID    uint      `json:"userId"`
		Username  string    `json:"username"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, uint(1), login.UserID)
	assert.Equal(t, "alice", login.Username)
	assert.True(t, login.ExpiresAt.After(time.Now()))
	alice := login.Token

	w, env = s.do(http.MethodPost, "/posts", alice, gin.H{"content": "first moment", "tags": []string{"campus"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"postId":1}`, string(env.Data))

	w, env = s.do(http.MethodGet, "/posts/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Post struct {
			ID         uint       `json:"id"`
			Content    string     `json:"content"`
			UserID     uint       `json:"userId"`
			Username   string     `json:"username"`
			Tags       []string   `json:"tags"`
			UpdateTime *time.Time `json:"updateTime"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "first moment", detail.Post.Content)
	assert.Equal(t, uint(1), detail.Post.UserID)
	assert.Equal(t, "alice", detail.Post.Username)
	assert.Equal(t, []string{"campus"}, detail.Post.Tags)
	assert.Nil(t, detail.Post.UpdateTime)

	s.register("bob", "builder")
	bob := s.login("bob", "builder")

	w, env = s.do(http.MethodDelete, "/posts/1", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, env.Code)

	w, _ = s.do(http.MethodGet, "/posts/1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodDelete, "/posts/1", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"postId":1}`, string(env.Data))

	w, env = s.do(http.MethodGet, "/posts/1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "wonderland")

	for _, body := range []gin.H{
		{"username": "alice", "password": "nope"},
		{"username": "nobody", "password": "wonderland"},
	} {
		w, env := s.do(http.MethodPost, "/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid username or password", env.Message)
	}

	w, _ := s.do(http.MethodPost, "/auth/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "wonderland")
	token := s.login("alice", "wonderland")

	w, env := s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		User map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice", data.User["username"])
	assert.NotContains(t, data.User, "passwordHash")
	assert.NotContains(t, data.User, "PasswordHash")

	w, env = s.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authorization header missing", env.Message)

	w, _ = s.do(http.MethodGet, "/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, route := range [][2]string{
		{http.MethodPost, "/posts"},
		{http.MethodPut, "/posts/1"},
		{http.MethodPatch, "/posts/1"},
		{http.MethodDelete, "/posts/1"},
		{http.MethodPost, "/upload"},
		{http.MethodPost, "/api/posts"},
	} {
		w, env := s.do(route[0], route[1], "", gin.H{"content": "x"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, route[1])
		assert.Equal(t, "null", string(env.Data))
	}
}

func TestListPosts(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "wonderland")
	s.register("bob", "builder")
	alice := s.login("alice", "wonderland")
	bob := s.login("bob", "builder")

	s.createPost(alice, "a1", []string{"study"})
	s.createPost(bob, "b1", []string{"sport"})
	s.createPost(alice, "a2", []string{"sport", "study"})

	type listData struct {
		List []struct {
			ID      uint   `json:"id"`
			Content string `json:"content"`
		} `json:"list"`
		Total int `json:"total"`
	}
	contents := func(path, token string) []string {
		t.Helper()
		w, env := s.do(http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		var data listData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, len(data.List), data.Total)
		out := []string{}
		for _, p := range data.List {
			out = append(out, p.Content)
		}
		return out
	}

	// anonymous and authenticated callers see the same feed
	assert.Equal(t, []string{"a2", "b1", "a1"}, contents("/posts", ""))
	assert.Equal(t, []string{"a2", "b1", "a1"}, contents("/posts", bob))
	assert.Equal(t, []string{"a2", "b1", "a1"}, contents("/posts", "expired-or-broken"))
	assert.Equal(t, []string{"a2", "a1"}, contents("/posts?userId=1", ""))
	assert.Equal(t, []string{"a2", "b1"}, contents("/posts?tag=sport", ""))
	assert.Equal(t, []string{"b1"}, contents("/users/2/posts", ""))
	assert.Equal(t, []string{"a2", "b1", "a1"}, contents("/api/posts", ""))

	for _, userID := range []string{"abc", "0", "-1"} {
		w, _ := s.do(http.MethodGet, "/posts?userId="+userID, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, userID)
	}
	w, _ := s.do(http.MethodGet, "/users/99/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, env := s.do(http.MethodGet, "/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid post id", env.Message)
}

func TestUpdatePost(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "wonderland")
	s.register("bob", "builder")
	alice := s.login("alice", "wonderland")
	bob := s.login("bob", "builder")
	id := s.createPost(alice, "original", []string{"a"})
	path := fmt.Sprintf("/posts/%d", id)

	w, env := s.do(http.MethodPatch, path, alice, gin.H{"tags": []string{"b"}})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var data struct {
		PostID uint `json:"postId"`
		Post   struct {
			Content    string     `json:"content"`
			Tags       []string   `json:"tags"`
			UpdateTime *time.Time `json:"updateTime"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, id, data.PostID)
	assert.Equal(t, "original", data.Post.Content)
	assert.Equal(t, []string{"b"}, data.Post.Tags)
	assert.NotNil(t, data.Post.UpdateTime)

	w, _ = s.do(http.MethodPut, path, alice, gin.H{"content": "rewritten"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodPut, path, bob, gin.H{"content": "hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "null", string(env.Data))

	w, env = s.do(http.MethodPut, path, alice, gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content cannot be empty", env.Message)

	w, _ = s.do(http.MethodPut, "/posts/404", alice, gin.H{"content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"content":"rewritten"`)
}

func multipartRequest(t *testing.T, token, filename, contentType string, body []byte) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "wonderland")
	token := s.login("alice", "wonderland")

	w, env := s.serve(multipartRequest(t, token, "notes.txt", "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, http.StatusUnsupportedMediaType, env.Code)

	w, env = s.serve(multipartRequest(t, token, "huge.jpg", "image/jpeg", bytes.Repeat([]byte{1}, 11*1024*1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, env.Code)

	image := bytes.Repeat([]byte{0xd8}, 2*1024*1024)
	w, env = s.serve(multipartRequest(t, token, "Photo.JPG", "image/jpeg", image))
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var data struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		MimeType string `json:"mimetype"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "/uploads/"+data.Filename, data.URL)
	assert.Regexp(t, `^\d+-[0-9a-f]+\.jpg$`, data.Filename)
	assert.Equal(t, int64(len(image)), data.Size)
	assert.Equal(t, "image/jpeg", data.MimeType)

	w, _ = s.serve(httptest.NewRequest(http.MethodGet, data.URL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, image, w.Body.Bytes())

	// missing file field
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+token)
	w, env = s.serve(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no file uploaded", env.Message)

	w, env = s.do(http.MethodGet, "/upload/mine", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		List []struct {
			URL      string `json:"url"`
			Filename string `json:"filename"`
			OwnerID  uint   `json:"ownerId"`
		} `json:"list"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Equal(t, 1, mine.Total)
	assert.Equal(t, data.URL, mine.List[0].URL)
	assert.Equal(t, uint(1), mine.List[0].OwnerID)
	assert.NotContains(t, string(env.Data), "filePath")

	w, _ = s.do(http.MethodGet, "/upload/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userCount":1,"postCount":0,"uploadCount":1}`, string(env.Data))
}

func TestHealthAndFallbacks(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		w, env := s.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
	}

	w, env := s.do(http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userCount":0,"postCount":0,"uploadCount":0}`, string(env.Data))

	w, env = s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", env.Message)
	assert.Equal(t, "null", string(env.Data))
}

func TestRateLimitBudgetsAreSeparate(t *testing.T) {
	stores := store.NewMemory()
	users := services.NewUserService(stores.Users, stores.Posts, utils.NewPasswordHasher(bcrypt.MinCost))
	tokens := utils.NewTokenService("s", time.Hour)
	engine := SetupRouter(config.AppConfig{
		GinMode:            "test",
		RateLimitPerMinute: 2,
		UploadDir:          t.TempDir(),
		UploadURLPrefix:    "/uploads",
	}, Dependencies{
		Users:   users,
		Posts:   services.NewPostService(stores.Posts, stores.Users),
		Uploads: services.NewUploadService(stores.Files, t.TempDir(), "/uploads", 1024),
		Tokens:  tokens,
		Cache:   utils.NewCache(nil),
	})
	s := &testServer{t: t, engine: engine}

	alice, err := users.Register(context.Background(), "alice", "wonderland")
	require.NoError(t, err)
	token, _, err := tokens.Issue(alice.ID, alice.Username)
	require.NoError(t, err)

	w, _ := s.do(http.MethodPost, "/posts", token, gin.H{"content": "one"})
	assert.Equal(t, http.StatusOK, w.Code)
	w, env := s.do(http.MethodPost, "/posts", token, gin.H{"content": "two"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.Code)

	// posting did not use up the login budget
	w, _ = s.do(http.MethodPost, "/auth/login", "", gin.H{"username": "alice", "password": "wonderland"})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, "/auth/login", "", gin.H{"username": "alice", "password": "wonderland"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSearchTagsAndProfiles(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "wonderland")
	s.register("bob", "builder")
	alice := s.login("alice", "wonderland")
	bob := s.login("bob", "builder")

	s.createPost(alice, "Library opens late", []string{"study", "news"})
	s.createPost(bob, "Match tonight", []string{"sport", "news"})

	w, env := s.do(http.MethodGet, "/search?keyword=library", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)
	assert.Contains(t, string(env.Data), "Library opens late")

	w, env = s.do(http.MethodGet, "/api/search?keyword=NEWS", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":2`)

	w, env = s.do(http.MethodGet, "/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "keyword is required", env.Message)

	w, env = s.do(http.MethodGet, "/tags", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"list":[{"name":"news","count":2},{"name":"sport","count":1},{"name":"study","count":1}],"total":3}`, string(env.Data))

	w, env = s.do(http.MethodGet, "/tags/hot?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"list":[{"name":"news","count":2}]}`, string(env.Data))

	w, _ = s.do(http.MethodGet, "/tags/hot?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(http.MethodGet, "/tags/hot?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodGet, "/users/2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		User map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "bob", profile.User["username"])
	assert.Equal(t, float64(1), profile.User["postCount"])
	assert.NotContains(t, profile.User, "passwordHash")

	w, _ = s.do(http.MethodGet, "/users/9", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(http.MethodGet, "/users/zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
