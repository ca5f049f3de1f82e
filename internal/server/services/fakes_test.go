package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/categories"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/comments"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/prooftokens"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory repositories ---

// memStore backs every fake repository with shared maps, so services see
// each other's writes the way they would against one database.
type memStore struct {
	mu         sync.Mutex
	seq        int
	users      map[string]*models.User
	tokens     map[string]*models.ProofToken
	posts      map[string]*models.Post
	likes      map[string]map[string]bool
	comments   map[string]*models.Comment
	categories map[string]*models.Category

	// fail maps "repo.Method" to an error returned instead of running it.
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*models.User{},
		tokens:     map[string]*models.ProofToken{},
		posts:      map[string]*models.Post{},
		likes:      map[string]map[string]bool{},
		comments:   map[string]*models.Comment{},
		categories: map[string]*models.Category{},
		fail:       map[string]error{},
	}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns strictly increasing timestamps. Callers hold mu.
func (m *memStore) tick() time.Time {
	m.seq++
	return epoch.Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) failure(op string) error {
	return m.fail[op]
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memStore) Users(dbx.DBTX) users.Repository             { return memUsers{m} }
func (m *memStore) ProofTokens(dbx.DBTX) prooftokens.Repository { return memTokens{m} }
func (m *memStore) Posts(dbx.DBTX) posts.Repository             { return memPosts{m} }
func (m *memStore) Comments(dbx.DBTX) comments.Repository       { return memComments{m} }
func (m *memStore) Categories(dbx.DBTX) categories.Repository   { return memCategories{m} }

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, common.ErrDuplicateIdentity
		}
	}
	c := *u
	c.ID = uuid.NewString()
	c.CreatedAt = r.tick()
	c.UpdatedAt = c.CreatedAt
	r.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memUsers) List(context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memUsers) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r memUsers) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (r memUsers) ResetPassword(_ context.Context, id string, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	u.IsVerified = true
	return nil
}

func (r memUsers) UpdateProfile(_ context.Context, id string, upd users.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = r.tick()
	out := *u
	return &out, nil
}

func (r memUsers) SetProfilePhoto(_ context.Context, id string, photo models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("users.SetProfilePhoto"); err != nil {
		return err
	}
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.ProfilePhoto = photo
	return nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("users.Delete"); err != nil {
		return err
	}
	delete(r.users, id)
	return nil
}

type memTokens struct{ *memStore }

func (r memTokens) Find(_ context.Context, userID string, purpose models.ProofPurpose) (*models.ProofToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose {
			out := *t
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memTokens) Create(_ context.Context, t *models.ProofToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tokens {
		if existing.UserID == t.UserID && existing.Purpose == t.Purpose {
			return false, nil
		}
	}
	t.ID = uuid.NewString()
	t.CreatedAt = r.tick()
	c := *t
	r.tokens[c.ID] = &c
	return true, nil
}

func (r memTokens) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.tokens, id)
	return nil
}

func (r memTokens) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

type memPosts struct{ *memStore }

// snapshot copies a post with its current like set. Callers hold mu.
func (r memPosts) snapshot(p *models.Post) *models.Post {
	out := *p
	out.Likes = []string{}
	for userID := range r.likes[p.ID] {
		out.Likes = append(out.Likes, userID)
	}
	sort.Strings(out.Likes)
	return &out
}

func (r memPosts) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("posts.Create"); err != nil {
		return nil, err
	}
	c := *p
	c.ID = uuid.NewString()
	c.CreatedAt = r.tick()
	c.UpdatedAt = c.CreatedAt
	r.posts[c.ID] = &c
	return r.snapshot(&c), nil
}

func (r memPosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.snapshot(p), nil
}

func (r memPosts) sorted(keep func(*models.Post) bool) []*models.Post {
	out := []*models.Post{}
	for _, p := range r.posts {
		if keep(p) {
			out = append(out, r.snapshot(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memPosts) List(_ context.Context, f posts.Filter) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(p *models.Post) bool { return f.Category == "" || p.Category == f.Category })
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return []*models.Post{}, nil
		}
		out = out[f.Offset:min(f.Offset+f.Limit, len(out))]
	}
	return out, nil
}

func (r memPosts) ListByUser(_ context.Context, userID string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(p *models.Post) bool { return p.UserID == userID }), nil
}

func (r memPosts) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.posts)), nil
}

func (r memPosts) Update(_ context.Context, id string, upd posts.Update) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	p.UpdatedAt = r.tick()
	return r.snapshot(p), nil
}

func (r memPosts) SetImage(_ context.Context, id string, image models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("posts.SetImage"); err != nil {
		return err
	}
	p, ok := r.posts[id]
	if !ok {
		return common.ErrNotFound
	}
	p.Image = image
	return nil
}

func (r memPosts) RemoveLike(_ context.Context, postID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.likes[postID][userID] {
		return false, nil
	}
	delete(r.likes[postID], userID)
	return true, nil
}

func (r memPosts) AddLike(_ context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("posts.AddLike"); err != nil {
		return err
	}
	if r.likes[postID] == nil {
		r.likes[postID] = map[string]bool{}
	}
	r.likes[postID][userID] = true
	return nil
}

func (r memPosts) DeleteLikesByPost(_ context.Context, postID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.likes, postID)
	return nil
}

func (r memPosts) DeleteLikesByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.likes {
		delete(set, userID)
	}
	return nil
}

func (r memPosts) DeleteLikesOnPostsOf(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.posts {
		if p.UserID == userID {
			delete(r.likes, id)
		}
	}
	return nil
}

func (r memPosts) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("posts.Delete"); err != nil {
		return err
	}
	delete(r.posts, id)
	return nil
}

func (r memPosts) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("posts.DeleteByUser"); err != nil {
		return err
	}
	for id, p := range r.posts {
		if p.UserID == userID {
			delete(r.posts, id)
		}
	}
	return nil
}

type memComments struct{ *memStore }

func (r memComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc := *c
	cc.ID = uuid.NewString()
	cc.CreatedAt = r.tick()
	cc.UpdatedAt = cc.CreatedAt
	r.comments[cc.ID] = &cc
	out := cc
	return &out, nil
}

func (r memComments) GetByID(_ context.Context, id string) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r memComments) filter(keep func(*models.Comment) bool) []*models.Comment {
	out := []*models.Comment{}
	for _, c := range r.comments {
		if keep(c) {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memComments) List(context.Context) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(*models.Comment) bool { return true }), nil
}

func (r memComments) ListByPost(_ context.Context, postID string) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(c *models.Comment) bool { return c.PostID == postID }), nil
}

func (r memComments) CountByPost(_ context.Context, postID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.filter(func(c *models.Comment) bool { return c.PostID == postID }))), nil
}

func (r memComments) UpdateText(_ context.Context, id, text string) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c.Text = text
	c.UpdatedAt = r.tick()
	out := *c
	return &out, nil
}

func (r memComments) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.comments, id)
	return nil
}

func (r memComments) deleteWhere(match func(*models.Comment) bool) {
	for id, c := range r.comments {
		if match(c) {
			delete(r.comments, id)
		}
	}
}

func (r memComments) DeleteByPost(_ context.Context, postID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("comments.DeleteByPost"); err != nil {
		return err
	}
	r.deleteWhere(func(c *models.Comment) bool { return c.PostID == postID })
	return nil
}

func (r memComments) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteWhere(func(c *models.Comment) bool { return c.UserID == userID })
	return nil
}

func (r memComments) DeleteOnPostsOf(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteWhere(func(c *models.Comment) bool {
		p, ok := r.posts[c.PostID]
		return ok && p.UserID == userID
	})
	return nil
}

type memCategories struct{ *memStore }

func (r memCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc := *c
	cc.ID = uuid.NewString()
	cc.CreatedAt = r.tick()
	cc.UpdatedAt = cc.CreatedAt
	r.categories[cc.ID] = &cc
	out := cc
	return &out, nil
}

func (r memCategories) GetByID(_ context.Context, id string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r memCategories) List(context.Context) ([]*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Category{}
	for _, c := range r.categories {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memCategories) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.categories, id)
	return nil
}

// --- collaborators ---

type fakeImages struct {
	mu         sync.Mutex
	n          int
	uploaded   []string
	deleted    []string
	uploadErr  error
	deleteErr  error
	deleteCall int
}

func (f *fakeImages) Upload(_ context.Context, r io.Reader, _ string) (models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return models.Image{}, f.uploadErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return models.Image{}, err
	}
	f.n++
	id := fmt.Sprintf("images/%d", f.n)
	f.uploaded = append(f.uploaded, id)
	return models.Image{URL: "http://img.local/" + id, PublicID: id}, nil
}

func (f *fakeImages) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCall++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if publicID != "" {
		f.deleted = append(f.deleted, publicID)
	}
	return nil
}

func (f *fakeImages) DeleteMany(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCall++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	stall bool
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.stall {
		<-ctx.Done()
		return common.ExternalError("send email", ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastLink extracts the path segments that follow marker in the most recent
// email, e.g. marker "/verify/" yields the secret.
func (f *fakeMailer) lastLink(t *testing.T, prefix string) (userID, secret string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no email sent")
	body := f.sent[len(f.sent)-1].body
	start := strings.Index(body, prefix)
	require.GreaterOrEqual(t, start, 0, "link %q not found in %q", prefix, body)
	rest := body[start+len(prefix):]
	rest = rest[:strings.IndexByte(rest, '"')]
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 3: // {id}/verify/{token}
		return parts[0], parts[2]
	case 2: // {id}/{token}
		return parts[0], parts[1]
	}
	t.Fatalf("unexpected link layout %q", rest)
	return "", ""
}

type warnEntry struct {
	msg  string
	args []any
}

// recLogger records warnings and errors so tests can assert on swallowed
// failures.
type recLogger struct {
	mu    *sync.Mutex
	warns *[]warnEntry
	args  []any
}

func newRecLogger() *recLogger {
	return &recLogger{mu: &sync.Mutex{}, warns: &[]warnEntry{}}
}

func (l *recLogger) Debug(context.Context, string, ...any) {}
func (l *recLogger) Info(context.Context, string, ...any)  {}
func (l *recLogger) Error(_ context.Context, msg string, args ...any) {
	l.Warn(context.Background(), msg, args...)
}
func (l *recLogger) Warn(_ context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.warns = append(*l.warns, warnEntry{msg: msg, args: append(append([]any{}, l.args...), args...)})
}
func (l *recLogger) With(args ...any) logging.Logger {
	return &recLogger{mu: l.mu, warns: l.warns, args: append(append([]any{}, l.args...), args...)}
}

func (l *recLogger) entries() []warnEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]warnEntry{}, *l.warns...)
}

// --- fixture ---

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	store    *memStore
	images   *fakeImages
	mail     *fakeMailer
	logger   *recLogger
	cfg      *config.Config
	tokens   *TokenIssuer
	identity *IdentityService
	cascade  *CascadeCoordinator
	users    *UserService
	posts    *PostService
	comments *CommentService
	cats     *CategoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		SecretKey:    "test-secret",
		BcryptCost:   bcrypt.MinCost,
		ClientDomain: "http://client.local/",
	}

	f := &fixture{
		db:     db,
		mock:   mock,
		store:  newMemStore(),
		images: &fakeImages{},
		mail:   &fakeMailer{},
		logger: newRecLogger(),
		cfg:    cfg,
	}
	f.tokens = NewTokenIssuer(db, f.store)
	f.identity = NewIdentityService(db, f.store, f.tokens, f.mail, f.logger, cfg)
	f.cascade = NewCascadeCoordinator(db, f.store, f.images, f.logger)
	f.users = NewUserService(db, f.store, f.images, f.cascade, f.logger, cfg.BcryptCost)
	f.posts = NewPostService(db, f.store, f.images, f.cascade, f.logger)
	f.comments = NewCommentService(db, f.store)
	f.cats = NewCategoryService(db, f.store)
	return f
}

const testPassword = "Passw0rd!"

// seedUser stores a user directly, bypassing registration.
func (f *fixture) seedUser(t *testing.T, name string, role models.Role, verified bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := f.store.Users(nil).Create(context.Background(), &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		IsVerified:   verified,
	})
	require.NoError(t, err)
	return u
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

func (f *fixture) seedPost(t *testing.T, author *models.User, category string) *models.Post {
	t.Helper()
	p, err := f.posts.Create(context.Background(), identityOf(author), CreatePostInput{
		Title:       "A post by " + author.Username,
		Description: "long enough description",
		Category:    category,
	}, strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	return p
}

func (f *fixture) seedComment(t *testing.T, author *models.User, postID string) *models.Comment {
	t.Helper()
	c, err := f.comments.Create(context.Background(), identityOf(author), CreateCommentInput{PostID: postID, Text: "nice"})
	require.NoError(t, err)
	return c
}

var errBoom = errors.New("boom")
