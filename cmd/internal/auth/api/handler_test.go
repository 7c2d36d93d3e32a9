package authapi

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

	"github.com/stretchr/testify/require"

	"vidra/cmd/account"
	"vidra/cmd/internal/auth/session"
	"vidra/cmd/security/password"
)

type fakeHost struct {
	mu      sync.Mutex
	uploads int
}

func (f *fakeHost) Upload(_ context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return fmt.Sprintf("https://media.test/vidra/%d", f.uploads), nil
}

func (f *fakeHost) Delete(context.Context, string) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := session.Config{
		Issuer:         "vidra-test",
		AccessSecret:   []byte("access-secret"),
		RefreshSecret:  []byte("refresh-secret"),
		AccessTTL:      time.Minute,
		RefreshTTL:     time.Hour,
		RefreshHashKey: []byte("hash-key"),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := session.NewService(cfg, account.NewMemoryStore(), &fakeHost{}, password.TestConfig(), log)

	h, err := NewHandler(log, Config{UploadDir: t.TempDir()}, svc)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func registerForm(t *testing.T, username string, withCover bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", username))
	require.NoError(t, mw.WriteField("email", username+"@example.com"))
	require.NoError(t, mw.WriteField("fullName", "Test "+username))
	require.NoError(t, mw.WriteField("password", "hunter22"))

	part, err := mw.CreateFormFile("avatar", "avatar.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)

	if withCover {
		part, err = mw.CreateFormFile("coverImage", "cover.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("jpg-bytes"))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func registerUser(t *testing.T, srv *httptest.Server, username string) account.Profile {
	t.Helper()

	body, contentType := registerForm(t, username, false)
	resp, err := http.Post(srv.URL+"/users/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out userResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.User
}

func loginUser(t *testing.T, srv *httptest.Server, identifier, pass string) (*http.Response, sessionResponse) {
	t.Helper()

	payload, err := json.Marshal(loginRequest{Identifier: identifier, Password: pass})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/users/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterLoginCurrentUserFlow(t *testing.T) {
	srv := newTestServer(t)

	p := registerUser(t, srv, "flowuser")
	require.Equal(t, "flowuser", p.Username)
	require.NotEmpty(t, p.AvatarURL)

	resp, sess := loginUser(t, srv, "flowuser", "hunter22")
	require.Equal(t, p.ID, sess.User.ID)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)

	access := cookieByName(resp, "access_token")
	require.NotNil(t, access)
	require.True(t, access.HttpOnly)
	refresh := cookieByName(resp, "refresh_token")
	require.NotNil(t, refresh)
	require.True(t, refresh.HttpOnly)

	// Cookie auth.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/users/current-user", nil)
	require.NoError(t, err)
	req.AddCookie(access)
	got, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)

	var me userResponse
	require.NoError(t, json.NewDecoder(got.Body).Decode(&me))
	require.Equal(t, p.ID, me.User.ID)

	// Bearer auth.
	req, err = http.NewRequest(http.MethodGet, srv.URL+"/users/current-user", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	got2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	got2.Body.Close()
	require.Equal(t, http.StatusOK, got2.StatusCode)

	// No token at all.
	got3, err := http.Get(srv.URL + "/users/current-user")
	require.NoError(t, err)
	got3.Body.Close()
	require.Equal(t, http.StatusUnauthorized, got3.StatusCode)
}

func TestLoginFailures(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "failuser")

	payload, _ := json.Marshal(loginRequest{Identifier: "failuser", Password: "wrong"})
	resp, err := http.Post(srv.URL+"/users/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	payload, _ = json.Marshal(loginRequest{Identifier: "nobody", Password: "hunter22"})
	resp, err = http.Post(srv.URL+"/users/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	srv := newTestServer(t)

	// Missing avatar file.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "noavatar"))
	require.NoError(t, mw.WriteField("email", "noavatar@example.com"))
	require.NoError(t, mw.WriteField("fullName", "No Avatar"))
	require.NoError(t, mw.WriteField("password", "hunter22"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/users/register", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Duplicate username.
	registerUser(t, srv, "dupe")
	body, contentType := registerForm(t, "dupe", false)
	resp, err = http.Post(srv.URL+"/users/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var out errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "conflict", out.Error.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "refresher")
	_, sess := loginUser(t, srv, "refresher", "hunter22")

	// Refresh via body.
	payload, _ := json.Marshal(refreshRequest{RefreshToken: sess.RefreshToken})
	resp, err := http.Post(srv.URL+"/users/refresh-token", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	var rotated sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEqual(t, sess.RefreshToken, rotated.RefreshToken)

	// Old token is dead.
	payload, _ = json.Marshal(refreshRequest{RefreshToken: sess.RefreshToken})
	resp, err = http.Post(srv.URL+"/users/refresh-token", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Refresh via cookie.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/users/refresh-token", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: rotated.RefreshToken})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var viaCookie sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&viaCookie))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Logout clears cookies and kills the refresh token.
	req, err = http.NewRequest(http.MethodPost, srv.URL+"/users/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+viaCookie.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	cleared := cookieByName(resp, "refresh_token")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	payload, _ = json.Marshal(refreshRequest{RefreshToken: viaCookie.RefreshToken})
	resp, err = http.Post(srv.URL+"/users/refresh-token", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Missing token entirely is a credential failure like any other.
	resp, err = http.Post(srv.URL+"/users/refresh-token", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResetPass(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "resetter")
	_, sess := loginUser(t, srv, "resetter", "hunter22")

	do := func(oldPass, newPass, confirm string) int {
		payload, _ := json.Marshal(resetPassRequest{OldPassword: oldPass, NewPassword: newPass, ConfirmPassword: confirm})
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/users/reset-pass", bytes.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusUnauthorized, do("wrong", "newpass99", "newpass99"))
	require.Equal(t, http.StatusBadRequest, do("", "newpass99", "newpass99"))
	require.Equal(t, http.StatusBadRequest, do("hunter22", "newpass1", "newpass2"))
	require.Equal(t, http.StatusNoContent, do("hunter22", "newpass99", "newpass99"))

	loginUser(t, srv, "resetter", "newpass99")
}

func TestUpdateProfileFields(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "updater")
	registerUser(t, srv, "occupied")
	_, sess := loginUser(t, srv, "updater", "hunter22")

	patch := func(path string, body any) (*http.Response, userResponse) {
		payload, _ := json.Marshal(body)
		req, err := http.NewRequest(http.MethodPatch, srv.URL+path, bytes.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out userResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, out := patch("/users/update-email", updateEmailRequest{Email: "fresh@example.com", Password: "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "fresh@example.com", out.User.Email)

	resp, out = patch("/users/update-fullname", updateFullNameRequest{FullName: "Updated Name", Password: "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Updated Name", out.User.FullName)

	resp, _ = patch("/users/update-username", updateUsernameRequest{Username: "occupied", Password: "hunter22"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = patch("/users/update-email", updateEmailRequest{Email: "x@example.com", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateAvatar(t *testing.T) {
	srv := newTestServer(t)
	before := registerUser(t, srv, "pictured")
	_, sess := loginUser(t, srv, "pictured", "hunter22")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", "new.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("new-png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/users/update-avatar", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out userResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEqual(t, before.AvatarURL, out.User.AvatarURL)
}

func TestUpdateCoverImage(t *testing.T) {
	srv := newTestServer(t)
	before := registerUser(t, srv, "scenic")
	_, sess := loginUser(t, srv, "scenic", "hunter22")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("coverImage", "banner.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("new-jpg"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/users/update-coverImage", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out userResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEqual(t, before.CoverImageURL, out.User.CoverImageURL)
}

func TestChannelProfile(t *testing.T) {
	srv := newTestServer(t)
	p := registerUser(t, srv, "channelone")

	resp, err := http.Get(srv.URL + "/users/c/channelone")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out userResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, p.ID, out.User.ID)

	resp2, err := http.Get(srv.URL + "/users/c/nobody")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestMethodGuards(t *testing.T) {
	srv := newTestServer(t)

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusMethodNotAllowed, get("/users/login"))
	require.Equal(t, http.StatusMethodNotAllowed, get("/users/register"))
	require.Equal(t, http.StatusMethodNotAllowed, get("/users/logout"))
	require.Equal(t, http.StatusMethodNotAllowed, get("/users/refresh-token"))
}
