// Package main provides a CI-friendly HTTP smoke test for the vidra auth
// surface.
//
// It validates:
//   - register (multipart with a generated avatar)
//   - login -> access/refresh pair + cookies
//   - current-user via bearer token
//   - refresh rotation (old token rejected afterwards)
//   - logout -> refresh rejected
//   - public channel profile lookup
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

type userPayload struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type sessionPayload struct {
	userPayload
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Minimal valid 1x1 PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "vidra base URL")
		password = flag.String("password", "smoke-pass-22", "password for the throwaway account")
		timeout  = flag.Duration("timeout", 7*time.Second, "per-request timeout")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}
	username := fmt.Sprintf("smoke%06d", rand.Intn(1_000_000))

	logf := func(format string, args ...any) {
		if *verbose {
			fmt.Printf(format+"\n", args...)
		}
	}

	// Register.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("username", username)
	_ = mw.WriteField("email", username+"@smoke.test")
	_ = mw.WriteField("fullName", "Smoke Test")
	_ = mw.WriteField("password", *password)
	part, err := mw.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		fatalf("build form: %v", err)
	}
	if _, err := part.Write(tinyPNG); err != nil {
		fatalf("build form: %v", err)
	}
	_ = mw.Close()

	resp, err := client.Post(*baseURL+"/users/register", mw.FormDataContentType(), &buf)
	if err != nil {
		fatalf("register: %v", err)
	}
	var registered userPayload
	mustStatus(resp, http.StatusCreated, "register")
	decode(resp, &registered)
	logf("registered %s (%s)", registered.User.Username, registered.User.ID)

	// Login.
	sess := postJSON[sessionPayload](client, *baseURL+"/users/login",
		map[string]string{"identifier": username, "password": *password},
		http.StatusOK, "login")
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		fatalf("login: missing tokens in response")
	}
	logf("logged in, got token pair")

	// Current user via bearer.
	req, _ := http.NewRequest(http.MethodGet, *baseURL+"/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	resp, err = client.Do(req)
	if err != nil {
		fatalf("current-user: %v", err)
	}
	mustStatus(resp, http.StatusOK, "current-user")
	var me userPayload
	decode(resp, &me)
	if me.User.ID != registered.User.ID {
		fatalf("current-user: got %s, want %s", me.User.ID, registered.User.ID)
	}
	logf("current-user ok")

	// Refresh rotates the pair.
	rotated := postJSON[sessionPayload](client, *baseURL+"/users/refresh-token",
		map[string]string{"refresh_token": sess.RefreshToken},
		http.StatusOK, "refresh")
	if rotated.RefreshToken == sess.RefreshToken {
		fatalf("refresh: token was not rotated")
	}
	logf("refresh rotated")

	// The old refresh token is single-use.
	postJSON[struct{}](client, *baseURL+"/users/refresh-token",
		map[string]string{"refresh_token": sess.RefreshToken},
		http.StatusUnauthorized, "refresh-reuse")
	logf("old refresh token rejected")

	// Logout.
	req, _ = http.NewRequest(http.MethodPost, *baseURL+"/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+rotated.AccessToken)
	resp, err = client.Do(req)
	if err != nil {
		fatalf("logout: %v", err)
	}
	mustStatus(resp, http.StatusNoContent, "logout")
	_ = resp.Body.Close()
	logf("logged out")

	postJSON[struct{}](client, *baseURL+"/users/refresh-token",
		map[string]string{"refresh_token": rotated.RefreshToken},
		http.StatusUnauthorized, "refresh-after-logout")
	logf("refresh after logout rejected")

	// Public channel profile.
	resp, err = client.Get(*baseURL + "/users/c/" + username)
	if err != nil {
		fatalf("channel: %v", err)
	}
	mustStatus(resp, http.StatusOK, "channel")
	_ = resp.Body.Close()

	fmt.Println("auth smoke: OK")
}

func postJSON[T any](client *http.Client, url string, body any, wantStatus int, step string) T {
	payload, err := json.Marshal(body)
	if err != nil {
		fatalf("%s: marshal: %v", step, err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		fatalf("%s: %v", step, err)
	}
	mustStatus(resp, wantStatus, step)
	var out T
	decode(resp, &out)
	return out
}

func mustStatus(resp *http.Response, want int, step string) {
	if resp.StatusCode != want {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		fatalf("%s: status %d, want %d: %s", step, resp.StatusCode, want, body)
	}
}

func decode(resp *http.Response, dst any) {
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil && err != io.EOF {
		fatalf("decode response: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "auth smoke: "+format+"\n", args...)
	os.Exit(1)
}
