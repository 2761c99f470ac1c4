package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/gin-gonic/gin"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/dbx"
	"github.com/lettera/lettera/internal/logging"
	"github.com/lettera/lettera/internal/server/auth"
	"github.com/lettera/lettera/internal/server/models"
	"github.com/lettera/lettera/internal/server/newsletters"
	"github.com/lettera/lettera/internal/server/sessions"
	"github.com/lettera/lettera/internal/server/subscriptions"
	"github.com/lettera/lettera/internal/server/users"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

var httpTestKey = []byte("0123456789abcdef0123456789abcdef0123456789abcdef")

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// memUserRepo is an in-memory users.Repository for handler tests.
type memUserRepo struct {
	mu         sync.Mutex
	byUsername map[string]*models.User
	byID       map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byUsername: map[string]*models.User{},
		byID:       map[uuid.UUID]*models.User{},
	}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUsername[user.Username]; ok {
		return nil, common.ErrAlreadyExists
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	r.byUsername[user.Username] = user
	r.byID[user.ID] = user
	return user, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byUsername[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// recordMailer collects sent mail; safe for the publish fan-out.
type recordMailer struct {
	mu   sync.Mutex
	sent []string
	last string
}

func (m *recordMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.last = textBody
	return nil
}

type testEnv struct {
	server *Server
	mock   sqlmock.Sqlmock
	store  *sessions.MemoryStore
	mailer *recordMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hasher := auth.NewHasher(2)
	t.Cleanup(hasher.Close)

	codec, err := auth.NewTokenCodec(httpTestKey, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}

	store := sessions.NewMemoryStore()
	authn := auth.NewAuthenticator(codec, store)
	logger := discardLogger()
	mailer := &recordMailer{}

	us := users.NewService(newMemUserRepo(), hasher, codec, store, time.Hour)
	ss := subscriptions.NewService(db,
		func(tx dbx.DBTX) subscriptions.Repository { return subscriptions.NewPostgresRepository(tx) },
		mailer, "https://news.example.com")
	ns := newsletters.NewService(ss, mailer, logger)

	server := NewServer(":0", logger, authn, us, ss, ns, time.Hour, false)

	return &testEnv{server: server, mock: mock, store: store, mailer: mailer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/users",
		gin.H{"username": username, "password": password}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("register: decode: %v", err)
	}
	return out.Token
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health_check", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "alice", "correct horse battery")
	if token == "" {
		t.Fatal("no token returned")
	}

	rec := env.do(t, http.MethodPost, "/api/v1/users",
		gin.H{"username": "alice", "password": "a different password"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users", gin.H{"username": "bob"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users",
		gin.H{"username": "bob", "password": "short"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak password: status %d", rec.Code)
	}
}

func TestLoginAndWhoami(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery")

	rec := env.do(t, http.MethodPost, "/api/v1/users/login",
		gin.H{"username": "alice", "password": "correct horse battery"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/whoami", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+out.Token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("whoami: status %d body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("whoami body: %s", rec.Body)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery")

	for _, body := range []gin.H{
		{"username": "alice", "password": "wrong password 123"},
		{"username": "ghost", "password": "whatever password"},
	} {
		rec := env.do(t, http.MethodPost, "/api/v1/users/login", body, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("login %v: status %d", body, rec.Code)
		}
	}
}

func TestWhoami_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/whoami", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no credential: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/whoami", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}
}

func TestSubscribeAndConfirm(t *testing.T) {
	env := newTestEnv(t)

	subID := uuid.New()
	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+subscriptions`).
		WithArgs("bob@example.com", "Bob", models.StatusPendingConfirmation).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subscribed_at"}).AddRow(subID.String(), time.Now()))
	env.mock.ExpectExec(`(?s)^INSERT\s+INTO\s+subscription_tokens`).
		WithArgs(sqlmock.AnyArg(), subID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	form := url.Values{"name": {"Bob"}, "email": {"bob@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe: status %d body %s", rec.Code, rec.Body)
	}

	// Pull the token back out of the confirmation email.
	idx := strings.Index(env.mailer.last, "subscription_token=")
	if idx < 0 {
		t.Fatalf("no confirmation link in %q", env.mailer.last)
	}
	token := env.mailer.last[idx+len("subscription_token=") : idx+len("subscription_token=")+25]

	env.mock.ExpectQuery(`(?s)^SELECT\s+subscriber_id\s+FROM\s+subscription_tokens`).
		WithArgs(token).
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow(subID.String()))
	env.mock.ExpectExec(`(?s)^UPDATE\s+subscriptions\s+SET\s+status`).
		WithArgs(subID, models.StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec = env.do(t, http.MethodGet, "/api/v1/subscriptions/confirm?subscription_token="+token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d body %s", rec.Code, rec.Body)
	}
}

func TestConfirm_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`(?s)^SELECT\s+subscriber_id\s+FROM\s+subscription_tokens`).
		WithArgs("doesnotexist").
		WillReturnError(sql.ErrNoRows)

	rec := env.do(t, http.MethodGet, "/api/v1/subscriptions/confirm?subscription_token=doesnotexist", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d body %s", rec.Code, rec.Body)
	}
}

func TestPublish(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "correct horse battery")

	env.mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,\s*name,\s*status,\s*subscribed_at\s+FROM\s+subscriptions`).
		WithArgs(models.StatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status", "subscribed_at"}).
			AddRow(uuid.NewString(), "a@example.com", "A", models.StatusConfirmed, time.Now()).
			AddRow(uuid.NewString(), "b@example.com", "B", models.StatusConfirmed, time.Now()))

	body := gin.H{"title": "Issue #1", "content": gin.H{"html": "<p>hi</p>", "text": "hi"}}
	rec := env.do(t, http.MethodPost, "/api/v1/newsletters", body, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: status %d body %s", rec.Code, rec.Body)
	}
	if len(env.mailer.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %v", env.mailer.sent)
	}
}

func TestPublish_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	body := gin.H{"title": "Issue #1", "content": gin.H{"html": "<p>hi</p>", "text": "hi"}}
	rec := env.do(t, http.MethodPost, "/api/v1/newsletters", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

// failStore simulates a session backend outage.
type failStore struct{}

func (failStore) Save(ctx context.Context, record *sessions.Record) error {
	return fmt.Errorf("%w: connection refused", common.ErrBackend)
}

func (failStore) Load(ctx context.Context, id string) (*sessions.Record, error) {
	return nil, fmt.Errorf("%w: connection refused", common.ErrBackend)
}

func (failStore) Delete(ctx context.Context, id string) error {
	return fmt.Errorf("%w: connection refused", common.ErrBackend)
}

func TestAuth_BackendOutageIs500(t *testing.T) {
	env := newTestEnv(t)

	// Swap the session backend for a broken one: a session cookie now
	// hits an outage, which must not read as a bad credential.
	codec, err := auth.NewTokenCodec(httpTestKey, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	env.server.authenticator = auth.NewAuthenticator(codec, failStore{})

	rec := env.do(t, http.MethodGet, "/admin/dashboard", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: "deadbeefdeadbeefdeadbeefdeadbeef"})
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on backend outage, got %d", rec.Code)
	}
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == common.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestAdminSessionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin", "correct horse battery")

	login := gin.H{"username": "admin", "password": "correct horse battery"}

	rec := env.do(t, http.MethodPost, "/admin/login", login, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body)
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	rec = env.do(t, http.MethodGet, "/admin/dashboard", nil, func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"username":"admin"`) {
		t.Fatalf("dashboard body: %s", rec.Body)
	}

	// A second login rotates the session id and kills the old one.
	rec = env.do(t, http.MethodPost, "/admin/login", login, func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("re-login: status %d", rec.Code)
	}
	rotated := sessionCookie(rec)
	if rotated == nil || rotated.Value == cookie.Value {
		t.Fatal("session id was not rotated on re-login")
	}
	rec = env.do(t, http.MethodGet, "/admin/dashboard", nil, func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old session still valid: status %d", rec.Code)
	}

	// Logout invalidates the current session.
	rec = env.do(t, http.MethodPost, "/admin/logout", nil, func(r *http.Request) {
		r.AddCookie(rotated)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d body %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/admin/dashboard", nil, func(r *http.Request) {
		r.AddCookie(rotated)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("session survives logout: status %d", rec.Code)
	}
}

func TestAdminChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin", "correct horse battery")

	rec := env.do(t, http.MethodPost, "/admin/login",
		gin.H{"username": "admin", "password": "correct horse battery"}, nil)
	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("no session cookie")
	}
	withCookie := func(r *http.Request) { r.AddCookie(cookie) }

	rec = env.do(t, http.MethodPost, "/admin/password", gin.H{
		"current_password":   "correct horse battery",
		"new_password":       "a fine new password",
		"new_password_check": "a different password",
	}, withCookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched check: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/admin/password", gin.H{
		"current_password":   "not the right password",
		"new_password":       "a fine new password",
		"new_password_check": "a fine new password",
	}, withCookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/admin/password", gin.H{
		"current_password":   "correct horse battery",
		"new_password":       "a fine new password",
		"new_password_check": "a fine new password",
	}, withCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: status %d body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/login",
		gin.H{"username": "admin", "password": "a fine new password"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: status %d", rec.Code)
	}
}
