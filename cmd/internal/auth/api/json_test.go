package authapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeString(t *testing.T, body string, maxBytes int64, dst any) error {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return decodeJSON(httptest.NewRecorder(), r, maxBytes, dst)
}

func TestDecodeJSON_ToleratesUnknownFields(t *testing.T) {
	var req resetPassRequest
	err := decodeString(t,
		`{"old_password":"a","new_password":"b","confirm_password":"b","client_hint":"ios"}`,
		1024, &req)
	require.NoError(t, err)
	require.Equal(t, "a", req.OldPassword)
	require.Equal(t, "b", req.NewPassword)
	require.Equal(t, "b", req.ConfirmPassword)
}

func TestDecodeJSON_Failures(t *testing.T) {
	cases := map[string]struct {
		body     string
		maxBytes int64
		wantErr  string
	}{
		"malformed":     {body: `{"old_password":`, maxBytes: 1024, wantErr: "malformed JSON"},
		"wrong type":    {body: `{"old_password":7}`, maxBytes: 1024, wantErr: `field "old_password"`},
		"empty body":    {body: "", maxBytes: 1024, wantErr: "empty body"},
		"oversized":     {body: `{"old_password":"` + strings.Repeat("x", 64) + `"}`, maxBytes: 16, wantErr: "body exceeds 16 bytes"},
		"trailing data": {body: `{"old_password":"a"}{"old_password":"b"}`, maxBytes: 1024, wantErr: "trailing data"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var req resetPassRequest
			err := decodeString(t, tc.body, tc.maxBytes, &req)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestWriteJSON_NoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, userResponse{})

	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}
