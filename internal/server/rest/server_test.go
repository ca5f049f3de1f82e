package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeIdentity struct {
	err         error
	registered  services.RegisterInput
	loginResult *services.LoginResult
	verified    [2]string
	resetEmail  string
	newPassword string
}

func (f *fakeIdentity) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	f.registered = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "u1", Username: in.Username}, nil
}

func (f *fakeIdentity) Login(context.Context, services.LoginInput) (*services.LoginResult, error) {
	return f.loginResult, f.err
}

func (f *fakeIdentity) Verify(_ context.Context, userID, secret string) error {
	f.verified = [2]string{userID, secret}
	return f.err
}

func (f *fakeIdentity) RequestPasswordReset(_ context.Context, email string) error {
	f.resetEmail = email
	return f.err
}

func (f *fakeIdentity) CheckResetLink(context.Context, string, string) error { return f.err }

func (f *fakeIdentity) ResetPassword(_ context.Context, _, _, newPassword string) error {
	f.newPassword = newPassword
	return f.err
}

type fakeUsers struct {
	err       error
	deletedBy auth.Identity
	photo     []byte
}

func (f *fakeUsers) List(context.Context) ([]*models.User, error) {
	return []*models.User{{ID: "u1", PasswordHash: "secret-hash"}}, f.err
}
func (f *fakeUsers) Count(context.Context) (int64, error) { return 7, f.err }
func (f *fakeUsers) GetProfile(_ context.Context, id string) (*services.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.UserProfile{User: &models.User{ID: id}, Posts: []*models.Post{}}, nil
}
func (f *fakeUsers) UpdateProfile(_ context.Context, id string, in services.UpdateProfileInput) (*models.User, error) {
	u := &models.User{ID: id}
	if in.Username != nil {
		u.Username = *in.Username
	}
	return u, f.err
}
func (f *fakeUsers) UploadProfilePhoto(_ context.Context, _ auth.Identity, r io.Reader, _ string) (models.Image, error) {
	f.photo, _ = io.ReadAll(r)
	return models.Image{URL: "http://img/p", PublicID: "p"}, f.err
}
func (f *fakeUsers) Delete(_ context.Context, actor auth.Identity, _ string) error {
	f.deletedBy = actor
	return f.err
}

type fakePosts struct {
	err      error
	created  services.CreatePostInput
	hadImage bool
	query    services.ListPostsQuery
	actor    auth.Identity
}

func (f *fakePosts) Create(_ context.Context, actor auth.Identity, in services.CreatePostInput, image io.Reader, _ string) (*models.Post, error) {
	f.created, f.actor, f.hadImage = in, actor, image != nil
	if image == nil {
		return nil, common.NewValidationError("image", "no image provided")
	}
	return &models.Post{ID: "p1", Title: in.Title, UserID: actor.UserID}, f.err
}
func (f *fakePosts) List(_ context.Context, q services.ListPostsQuery) ([]*models.Post, error) {
	f.query = q
	return []*models.Post{}, f.err
}
func (f *fakePosts) Count(context.Context) (int64, error) { return 3, f.err }
func (f *fakePosts) Get(_ context.Context, id string) (*models.PostWithComments, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.PostWithComments{Post: &models.Post{ID: id}, Comments: []*models.Comment{}}, nil
}
func (f *fakePosts) Update(_ context.Context, actor auth.Identity, id string, _ services.UpdatePostInput) (*models.Post, error) {
	f.actor = actor
	return &models.Post{ID: id}, f.err
}
func (f *fakePosts) UpdateImage(_ context.Context, actor auth.Identity, id string, _ io.Reader, _ string) (*models.Post, error) {
	f.actor = actor
	return &models.Post{ID: id}, f.err
}
func (f *fakePosts) ToggleLike(_ context.Context, actor auth.Identity, id string) (*models.Post, error) {
	f.actor = actor
	return &models.Post{ID: id, Likes: []string{actor.UserID}}, f.err
}
func (f *fakePosts) Delete(_ context.Context, actor auth.Identity, _ string) error {
	f.actor = actor
	return f.err
}

type fakeComments struct{ err error }

func (f *fakeComments) Create(_ context.Context, actor auth.Identity, in services.CreateCommentInput) (*models.Comment, error) {
	return &models.Comment{ID: "c1", PostID: in.PostID, UserID: actor.UserID, Text: in.Text}, f.err
}
func (f *fakeComments) List(context.Context) ([]*models.Comment, error) { return nil, f.err }
func (f *fakeComments) Update(_ context.Context, _ auth.Identity, id string, in services.UpdateCommentInput) (*models.Comment, error) {
	return &models.Comment{ID: id, Text: in.Text}, f.err
}
func (f *fakeComments) Delete(context.Context, auth.Identity, string) error { return f.err }

type fakeCategories struct{ err error }

func (f *fakeCategories) Create(_ context.Context, actor auth.Identity, in services.CreateCategoryInput) (*models.Category, error) {
	return &models.Category{ID: "k1", UserID: actor.UserID, Title: in.Title}, f.err
}
func (f *fakeCategories) List(context.Context) ([]*models.Category, error) {
	return []*models.Category{}, f.err
}
func (f *fakeCategories) Delete(context.Context, string) error { return f.err }

// --- helpers ---

type testServer struct {
	*Server
	identity   *fakeIdentity
	users      *fakeUsers
	posts      *fakePosts
	comments   *fakeComments
	categories *fakeCategories
}

func newTestServer(production bool) *testServer {
	ts := &testServer{
		identity:   &fakeIdentity{},
		users:      &fakeUsers{},
		posts:      &fakePosts{},
		comments:   &fakeComments{},
		categories: &fakeCategories{},
	}
	ts.Server = NewServer("127.0.0.1:0", production, testSecret, Services{
		Identity:   ts.identity,
		Users:      ts.users,
		Posts:      ts.posts,
		Comments:   ts.comments,
		Categories: ts.categories,
	}, logging.Nop{})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "pic.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

// --- tests ---

func TestServer_NotFoundRoute(t *testing.T) {
	ts := newTestServer(false)
	w := ts.do(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"not found - /api/nothing-here"}`, w.Body.String())
}

func TestServer_Register(t *testing.T) {
	ts := newTestServer(false)
	w := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", ts.identity.registered.Username)
	assert.Contains(t, decode(t, w)["message"], "verify your email")
}

func TestServer_RegisterInvalidBody(t *testing.T) {
	ts := newTestServer(false)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_LoginErrors(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want int
	}{
		{common.ErrInvalidCredentials, http.StatusBadRequest},
		{common.ErrVerificationRequired, http.StatusBadRequest},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	} {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ts := newTestServer(true)
			ts.identity.err = tt.err
			w := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.cd", "password": "x"})
			assert.Equal(t, tt.want, w.Code)
			_, hasTrace := decode(t, w)["trace"]
			assert.False(t, hasTrace, "production responses carry no trace")
		})
	}
}

func TestServer_TraceOutsideProduction(t *testing.T) {
	ts := newTestServer(false)
	ts.identity.err = fmt.Errorf("error searching user: %w", fmt.Errorf("db down"))
	w := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.cd", "password": "x"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "internal server error", body["message"])
	assert.Equal(t, "error searching user: db down", body["trace"])
}

func TestServer_LoginSuccess(t *testing.T) {
	ts := newTestServer(false)
	ts.identity.loginResult = &services.LoginResult{
		PublicProfile: models.PublicProfile{ID: "u1", Username: "alice"},
		Token:         "jwt",
	}
	w := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.cd", "password": "x"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "u1", body["_id"])
	assert.Equal(t, "jwt", body["token"])
}

func TestServer_ProofLinks(t *testing.T) {
	ts := newTestServer(false)

	w := ts.do(t, http.MethodGet, "/api/auth/u1/verify/abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"u1", "abc"}, ts.identity.verified)

	w = ts.do(t, http.MethodPost, "/api/password/reset-password-link", "", map[string]string{"email": "a@b.cd"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@b.cd", ts.identity.resetEmail)

	w = ts.do(t, http.MethodGet, "/api/password/reset-password/u1/abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "valid url", decode(t, w)["message"])

	w = ts.do(t, http.MethodPost, "/api/password/reset-password/u1/abc", "", map[string]string{"password": "N3w-Secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "N3w-Secret", ts.identity.newPassword)

	ts.identity.err = common.ErrInvalidLink
	w = ts.do(t, http.MethodGet, "/api/password/reset-password/u1/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid link", decode(t, w)["message"])
}

func TestServer_UserRoutesAreGuarded(t *testing.T) {
	ts := newTestServer(false)
	user := bearer(t, "u1", models.RoleUser)
	admin := bearer(t, "a1", models.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/users/profile", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/users/profile", user, nil).Code)

	w := ts.do(t, http.MethodGet, "/api/users/profile", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")

	w = ts.do(t, http.MethodGet, "/api/users/count", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Body.String())

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/users/profile/u9", "", nil).Code)

	name := "bob"
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPut, "/api/users/profile/u2", user, map[string]*string{"username": &name}).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPut, "/api/users/profile/u1", admin, map[string]*string{"username": &name}).Code)
	w = ts.do(t, http.MethodPut, "/api/users/profile/u1", user, map[string]*string{"username": &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decode(t, w)["username"])

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/users/profile/u2", user, nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/users/profile/u2", admin, nil).Code)
	assert.Equal(t, "a1", ts.users.deletedBy.UserID)
}

func TestServer_ProfilePhotoUpload(t *testing.T) {
	ts := newTestServer(false)
	user := bearer(t, "u1", models.RoleUser)

	body, ct := multipartBody(t, nil, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/users/profile/profile-photo-upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", user)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "png-bytes", string(ts.users.photo))

	body, ct = multipartBody(t, map[string]string{"x": "y"}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/users/profile/profile-photo-upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", user)
	w = httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no file provided", decode(t, w)["message"])
}

func TestServer_CreatePost(t *testing.T) {
	ts := newTestServer(false)
	user := bearer(t, "u1", models.RoleUser)

	body, ct := multipartBody(t, map[string]string{
		"title": "Hello", "description": "a long description", "category": "go",
	}, []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", user)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Hello", ts.posts.created.Title)
	assert.Equal(t, "go", ts.posts.created.Category)
	assert.True(t, ts.posts.hadImage)
	assert.Equal(t, "u1", ts.posts.actor.UserID)

	body, ct = multipartBody(t, map[string]string{"title": "Hello"}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", user)
	w = httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, ts.posts.hadImage)
}

func TestServer_ListPostsQuery(t *testing.T) {
	ts := newTestServer(false)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/posts?pageNumber=2", "", nil).Code)
	assert.Equal(t, services.ListPostsQuery{PageNumber: 2}, ts.posts.query)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/posts?category=go", "", nil).Code)
	assert.Equal(t, services.ListPostsQuery{Category: "go"}, ts.posts.query)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/posts?pageNumber=zero", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/posts?pageNumber=0", "", nil).Code)

	w := ts.do(t, http.MethodGet, "/api/posts/count", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Body.String())
}

func TestServer_PostMutationsRequireToken(t *testing.T) {
	ts := newTestServer(false)
	user := bearer(t, "u1", models.RoleUser)

	for _, tt := range []struct{ method, path string }{
		{http.MethodPut, "/api/posts/p1"},
		{http.MethodPut, "/api/posts/like/p1"},
		{http.MethodPut, "/api/posts/update-image/p1"},
		{http.MethodDelete, "/api/posts/p1"},
		{http.MethodPost, "/api/comments"},
		{http.MethodPut, "/api/comments/c1"},
		{http.MethodDelete, "/api/comments/c1"},
	} {
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, tt.method, tt.path, "", nil).Code, tt.path)
	}

	w := ts.do(t, http.MethodPut, "/api/posts/like/p1", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", ts.posts.actor.UserID)

	ts.posts.err = common.ErrForbidden
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/posts/p1", user, nil).Code)
}

func TestServer_CommentsAndCategories(t *testing.T) {
	ts := newTestServer(false)
	user := bearer(t, "u1", models.RoleUser)
	admin := bearer(t, "a1", models.RoleAdmin)

	w := ts.do(t, http.MethodPost, "/api/comments", user, map[string]string{"postId": "p1", "text": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u1", decode(t, w)["user"])

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/comments", user, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/comments", admin, nil).Code)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/categories", user, map[string]string{"title": "go"}).Code)
	assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/categories", admin, map[string]string{"title": "go"}).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/categories", "", nil).Code)

	ts.categories.err = fmt.Errorf("category not found: %w", common.ErrNotFound)
	w = ts.do(t, http.MethodDelete, "/api/categories/k1", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "category not found", decode(t, w)["message"])
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	ts := newTestServer(false)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, lis) }()

	url := "http://" + lis.Addr().String() + "/api/categories"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
