package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"user_service/internal/auth"
	"user_service/internal/config"
	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "test-access-secret"
	refreshSecret = "test-refresh-secret"
)

type memStore struct {
	mu     sync.Mutex
	users  map[int64]models.User
	nextID int64
}

func (s *memStore) SaveUser(_ context.Context, user models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return 0, storage.ErrUserExists
		}
	}

	user.ID = s.nextID
	user.CreatedAt = time.Now()
	s.nextID++
	s.users[user.ID] = user

	return user.ID, nil
}

func (s *memStore) UpdateRefreshToken(_ context.Context, userID int64, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.RefreshToken = token
	s.users[userID] = u

	return nil
}

func (s *memStore) UserByLogin(_ context.Context, username, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if (username != "" && u.Username == username) || (email != "" && strings.ToLower(u.Email) == email) {
			return u, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (s *memStore) UserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

type memUploader struct{}

func (memUploader) Upload(_ context.Context, category string, _ io.Reader, _ string) (string, error) {
	return "https://cdn.test/" + category + "/object", nil
}

type memPublisher struct{}

func (memPublisher) PublishUserRegistered(context.Context, models.UserRegistered) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()

	store := &memStore{users: map[int64]models.User{}, nextID: 1}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authService := auth.New(log, store, store, memUploader{}, memPublisher{}, config.Tokens{
		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	})

	srv := httptest.NewServer(NewRouter(log, authService, accessSecret, "*"))
	t.Cleanup(srv.Close)

	return srv, store
}

func registerBody(t *testing.T, fields map[string]string, withAvatar bool) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if withAvatar {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake-png"))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func adaFields() map[string]string {
	return map[string]string{
		"fullName": "Ada Lovelace",
		"email":    "ada@x.com",
		"userName": "Ada",
		"password": "s3cret!",
	}
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	b, err := json.Marshal(payload)
	require.NoError(t, err)

	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)

	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))

	return out
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	out := decodeBody(t, res)
	user := out["user"].(map[string]any)
	require.Equal(t, "ada", user["userName"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "refreshToken")

	stored, err := store.UserByLogin(context.Background(), "ada", "")
	require.NoError(t, err)
	require.Equal(t, "ada", stored.Username)
	require.NotContains(t, string(stored.PassHash), "s3cret!")
}

func TestRegister_MissingField(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	fields := adaFields()
	fields["email"] = "   "
	body, contentType := registerBody(t, fields, true)

	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRegister_MissingAvatar(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), false)

	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	fields := adaFields()
	fields["userName"] = "ADA"
	fields["email"] = "other@x.com"
	body, contentType = registerBody(t, fields, true)

	res, err = http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = postJSON(t, srv.URL+"/login", map[string]string{"userName": "ada", "password": "s3cret!"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	access := cookieByName(res, "accessToken")
	refreshC := cookieByName(res, "refreshToken")
	require.NotNil(t, access)
	require.NotNil(t, refreshC)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.True(t, refreshC.HttpOnly)
	require.True(t, refreshC.Secure)

	out := decodeBody(t, res)
	require.NotEmpty(t, out["accessToken"])
	require.NotEmpty(t, out["refreshToken"])
	require.Equal(t, "ada", out["user"].(map[string]any)["userName"])
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	tests := []struct {
		name    string
		payload map[string]string
		status  int
	}{
		{"no identifier", map[string]string{"password": "s3cret!"}, http.StatusBadRequest},
		{"no password", map[string]string{"userName": "ada"}, http.StatusBadRequest},
		{"unknown user", map[string]string{"userName": "nobody", "password": "s3cret!"}, http.StatusNotFound},
		{"wrong password", map[string]string{"userName": "ada", "password": "wrong"}, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := postJSON(t, srv.URL+"/login", tc.payload)
			defer res.Body.Close()
			require.Equal(t, tc.status, res.StatusCode)
		})
	}
}

func TestRefreshToken_Rotation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = postJSON(t, srv.URL+"/login", map[string]string{"userName": "ada", "password": "s3cret!"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	original := decodeBody(t, res)["refreshToken"].(string)

	// refresh via JSON body
	res = postJSON(t, srv.URL+"/refresh-token", map[string]string{"refreshToken": original})
	require.Equal(t, http.StatusOK, res.StatusCode)
	rotated := decodeBody(t, res)
	require.NotEqual(t, original, rotated["refreshToken"])
	require.NotNil(t, cookieByName(res, "accessToken"))
	require.NotNil(t, cookieByName(res, "refreshToken"))

	// the original token is single-use
	res = postJSON(t, srv.URL+"/refresh-token", map[string]string{"refreshToken": original})
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRefreshToken_FromCookie(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = postJSON(t, srv.URL+"/login", map[string]string{"email": "ada@x.com", "password": "s3cret!"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	refreshC := cookieByName(res, "refreshToken")
	require.NotNil(t, refreshC)
	res.Body.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/refresh-token", nil)
	require.NoError(t, err)
	req.AddCookie(refreshC)

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, decodeBody(t, res)["accessToken"])
}

func TestRefreshToken_Absent(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	res, err := http.Post(srv.URL+"/refresh-token", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)

	body, contentType := registerBody(t, adaFields(), true)
	res, err := http.Post(srv.URL+"/register", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = postJSON(t, srv.URL+"/login", map[string]string{"userName": "ada", "password": "s3cret!"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	accessToken := out["accessToken"].(string)
	refreshToken := out["refreshToken"].(string)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	access := cookieByName(res, "accessToken")
	require.NotNil(t, access)
	require.Empty(t, access.Value)
	res.Body.Close()

	stored, err := store.UserByLogin(context.Background(), "ada", "")
	require.NoError(t, err)
	require.Nil(t, stored.RefreshToken)

	// the old refresh token died with the session
	res = postJSON(t, srv.URL+"/refresh-token", map[string]string{"refreshToken": refreshToken})
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogout_Unauthenticated(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	res, err := http.Post(srv.URL+"/logout", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
