package authapi

import "vidra/cmd/account"

type loginRequest struct {
	// Identifier takes precedence; username/email are accepted as aliases
	// for older clients.
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPassRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type updateEmailRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUsernameRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateFullNameRequest struct {
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type userResponse struct {
	User account.Profile `json:"user"`
}

// sessionResponse carries tokens in the body in addition to the cookies, for
// non-browser clients.
type sessionResponse struct {
	User         account.Profile `json:"user"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
}

func (r loginRequest) identifier() string {
	switch {
	case r.Identifier != "":
		return r.Identifier
	case r.Username != "":
		return r.Username
	default:
		return r.Email
	}
}
