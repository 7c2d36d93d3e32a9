package authapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"vidra/cmd/account"
)

// writeServiceError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are logged and hidden behind a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case account.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_request", publicMessage(err, "invalid request"))
	case account.IsAuth(err):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case account.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case account.IsConflict(err):
		msg := "username or email already exists"
		if f := account.ConflictField(err); f != "" {
			msg = f + " already exists"
		}
		writeError(w, http.StatusConflict, "conflict", msg)
	case account.IsExternal(err):
		h.log.Error("auth.upstream.fail", "err", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "please retry later")
	default:
		h.log.Error("auth.request.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// publicMessage exposes the trailing message of a validation error if it
// carries one; validation messages describe caller input, never internals.
func publicMessage(err error, fallback string) string {
	var oe account.OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		return oe.Msg
	}
	return fallback
}

// stageUpload copies one multipart file into the staging dir and returns its
// local path. Missing file returns ok=false with no error.
func (h *Handler) stageUpload(r *http.Request, field string) (string, bool, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer func() { _ = file.Close() }()

	path, err := h.writeStaged(file, header)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

func (h *Handler) writeStaged(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))

	tmp, err := os.CreateTemp(h.cfg.UploadDir, "vidra-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, io.LimitReader(file, h.cfg.MaxUploadBytes)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// removeStaged clears leftover staging files after a failed flow. The media
// host removes staged files it consumed, so a missing file is normal.
func removeStaged(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			continue
		}
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip.String()
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
