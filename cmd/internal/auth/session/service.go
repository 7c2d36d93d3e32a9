package session

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"vidra/cmd/account"
	"vidra/cmd/account/ids"
	"vidra/cmd/internal/media"
	"vidra/cmd/security/password"
	"vidra/cmd/security/token"
)

// TokenPair is an access/refresh token pair freshly minted for one user.
type TokenPair struct {
	Access  string
	Refresh string
}

// Field names a mutable plain-text profile field.
type Field string

const (
	FieldEmail    Field = "email"
	FieldUsername Field = "username"
	FieldFullName Field = "fullName"
)

// MediaSlot names a mutable media-backed profile field.
type MediaSlot string

const (
	SlotAvatar MediaSlot = "avatar"
	SlotCover  MediaSlot = "cover"
)

// RegisterInput carries a registration request. Avatar and cover are local
// staging paths produced by the transport layer; the avatar is mandatory.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string

	AvatarPath string
	CoverPath  string
}

// Service runs the account flows on top of the store, the media host and
// the token issuer. It returns only sanitized profiles; token failures are
// collapsed into undifferentiated auth errors so callers cannot probe which
// check failed.
type Service struct {
	store  account.Store
	media  media.Host
	tokens *Issuer
	pw     password.Config
	rth    token.Hasher
	log    *slog.Logger
}

func NewService(cfg Config, store account.Store, host media.Host, pw password.Config, log *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:  store,
		media:  host,
		tokens: NewIssuer(cfg),
		pw:     pw,
		rth:    token.NewHasher(cfg.RefreshHashKey),
		log:    log,
	}
}

// Gate returns an auth gate sharing this service's issuer and store.
func (s *Service) Gate() *Gate {
	return &Gate{tokens: s.tokens, store: s.store}
}

// Issuer exposes the token issuer (cookie lifetimes in the HTTP layer).
func (s *Service) Issuer() *Issuer { return s.tokens }

// Register creates an account. The username and email are normalized to
// lowercase; an avatar upload is required, a cover image is optional.
func (s *Service) Register(ctx context.Context, in RegisterInput) (account.Profile, error) {
	const op = "session.Service.Register"

	username := account.NormalizeUsername(in.Username)
	email := account.NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	switch {
	case username == "":
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "username is required"}
	case email == "":
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "email is required"}
	case fullName == "":
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "full name is required"}
	case in.Password == "":
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "password is required"}
	case in.AvatarPath == "":
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "avatar is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "email is not valid"}
	}

	// Early conflict check for a friendly error; the unique indexes remain
	// the source of truth under races.
	existing, err := s.store.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		field := "email"
		if existing.Username == username {
			field = "username"
		}
		return account.Profile{}, account.ConflictError{Op: op, Field: field}
	case !account.IsNotFound(err):
		return account.Profile{}, err
	}

	hash, err := s.pw.Hash(in.Password)
	if err != nil {
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "password is required"}
	}

	avatarRef, err := s.uploadStaged(ctx, op, in.AvatarPath)
	if err != nil {
		return account.Profile{}, err
	}

	var coverRef string
	if in.CoverPath != "" {
		coverRef, err = s.uploadStaged(ctx, op, in.CoverPath)
		if err != nil {
			s.discard(ctx, avatarRef)
			return account.Profile{}, err
		}
	}

	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrInternal, Msg: "id generation failed"}
	}

	created, err := s.store.Create(ctx, account.User{
		ID:            id,
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarRef,
		CoverImageURL: coverRef,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		s.discard(ctx, avatarRef)
		s.discard(ctx, coverRef)
		return account.Profile{}, err
	}

	s.log.Info("auth.register.ok", "user_id", created.ID, "username", created.Username)
	return created.Profile(), nil
}

// Login resolves identifier as username or email, verifies the password and
// mints a fresh token pair. Storing the new refresh token hash overwrites any
// previous one, which invalidates the prior session.
//
// A missing account surfaces as not-found; a wrong password as an auth error.
func (s *Service) Login(ctx context.Context, identifier, pass string) (account.Profile, TokenPair, error) {
	const op = "session.Service.Login"

	identifier = account.NormalizeUsername(identifier)
	if identifier == "" || pass == "" {
		return account.Profile{}, TokenPair{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "identifier and password are required"}
	}

	u, err := s.store.FindByUsernameOrEmail(ctx, identifier, identifier)
	if err != nil {
		return account.Profile{}, TokenPair{}, err
	}

	ok, err := s.pw.Verify(u.PasswordHash, pass)
	if err != nil {
		return account.Profile{}, TokenPair{}, account.OpError{Op: op, Kind: account.ErrInternal, Msg: "stored credential unreadable"}
	}
	if !ok {
		s.log.Info("auth.login.fail", "user_id", u.ID)
		return account.Profile{}, TokenPair{}, authFailure(op)
	}

	pair, err := s.mintPair(op, u.ID)
	if err != nil {
		return account.Profile{}, TokenPair{}, err
	}

	hash := s.rth.Sum(pair.Refresh)
	updated, err := s.store.UpdateFields(ctx, u.ID, account.Partial{RefreshTokenHash: &hash})
	if err != nil {
		return account.Profile{}, TokenPair{}, err
	}

	s.log.Info("auth.login.ok", "user_id", u.ID)
	return updated.Profile(), pair, nil
}

// Logout clears the stored refresh token. It is idempotent: logging out an
// already logged-out or unknown user succeeds.
func (s *Service) Logout(ctx context.Context, userID string) error {
	const op = "session.Service.Logout"

	_, err := s.store.UpdateFields(ctx, userID, account.Partial{ClearRefreshToken: true})
	if err != nil && !account.IsNotFound(err) {
		return err
	}

	s.log.Info("auth.logout.ok", "user_id", userID)
	return nil
}

// Refresh rotates the session: the presented refresh token must verify and
// match the stored hash, then a new pair replaces it via a conditional swap
// so concurrent refreshes of the same token cannot both succeed.
//
// Every verification failure collapses into the same auth error.
func (s *Service) Refresh(ctx context.Context, presented string) (account.Profile, TokenPair, error) {
	const op = "session.Service.Refresh"

	uid, err := s.tokens.Verify(presented, KindRefresh)
	if err != nil {
		return account.Profile{}, TokenPair{}, authFailure(op)
	}

	u, err := s.store.FindByID(ctx, uid)
	switch {
	case account.IsNotFound(err):
		return account.Profile{}, TokenPair{}, authFailure(op)
	case err != nil:
		return account.Profile{}, TokenPair{}, err
	}

	if u.RefreshTokenHash == nil || !s.rth.Match(presented, *u.RefreshTokenHash) {
		s.log.Info("auth.refresh.mismatch", "user_id", uid)
		return account.Profile{}, TokenPair{}, authFailure(op)
	}

	pair, err := s.mintPair(op, uid)
	if err != nil {
		return account.Profile{}, TokenPair{}, err
	}

	ok, err := s.store.SwapRefreshTokenHash(ctx, uid, *u.RefreshTokenHash, s.rth.Sum(pair.Refresh))
	if err != nil {
		return account.Profile{}, TokenPair{}, err
	}
	if !ok {
		// Lost the rotation race or the token was revoked in between.
		return account.Profile{}, TokenPair{}, authFailure(op)
	}

	s.log.Info("auth.refresh.ok", "user_id", uid)
	return u.Profile(), pair, nil
}

// ChangePassword verifies the current password and stores a new hash. The
// new password must match its confirmation; all input checks run before any
// credential check, so a mismatch never touches the stored hash.
//
// The active refresh token stays valid: changing the password does not end
// the current session.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPass, newPass, confirmPass string) error {
	const op = "session.Service.ChangePassword"

	switch {
	case oldPass == "":
		return account.OpError{Op: op, Kind: account.ErrValidation, Msg: "current password is required"}
	case newPass == "":
		return account.OpError{Op: op, Kind: account.ErrValidation, Msg: "new password is required"}
	case newPass != confirmPass:
		return account.OpError{Op: op, Kind: account.ErrValidation, Msg: "password confirmation does not match"}
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.pw.Verify(u.PasswordHash, oldPass)
	if err != nil {
		return account.OpError{Op: op, Kind: account.ErrInternal, Msg: "stored credential unreadable"}
	}
	if !ok {
		return authFailure(op)
	}

	hash, err := s.pw.Hash(newPass)
	if err != nil {
		return account.OpError{Op: op, Kind: account.ErrValidation, Msg: "new password is required"}
	}

	if _, err := s.store.UpdateFields(ctx, userID, account.Partial{PasswordHash: &hash}); err != nil {
		return err
	}

	s.log.Info("auth.password.changed", "user_id", userID)
	return nil
}

// UpdateProfileField changes one plain-text field after re-verifying the
// caller's password. Uniqueness conflicts on email/username pass through as
// conflict errors.
func (s *Service) UpdateProfileField(ctx context.Context, userID string, field Field, value, pass string) (account.Profile, error) {
	const op = "session.Service.UpdateProfileField"

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return account.Profile{}, err
	}

	ok, err := s.pw.Verify(u.PasswordHash, pass)
	if err != nil {
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrInternal, Msg: "stored credential unreadable"}
	}
	if !ok {
		return account.Profile{}, authFailure(op)
	}

	var p account.Partial
	switch field {
	case FieldEmail:
		email := account.NormalizeEmail(value)
		if email == "" {
			return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "email is required"}
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "email is not valid"}
		}
		p.Email = &email
	case FieldUsername:
		username := account.NormalizeUsername(value)
		if username == "" {
			return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "username is required"}
		}
		p.Username = &username
	case FieldFullName:
		fullName := strings.TrimSpace(value)
		if fullName == "" {
			return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "full name is required"}
		}
		p.FullName = &fullName
	default:
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "unknown field"}
	}

	updated, err := s.store.UpdateFields(ctx, userID, p)
	if err != nil {
		return account.Profile{}, err
	}
	return updated.Profile(), nil
}

// UpdateMedia replaces a media-backed field in two phases: upload the new
// asset, swap the stored reference, then delete the old asset best-effort.
// A failed cleanup only logs a warning; the new reference has already won.
func (s *Service) UpdateMedia(ctx context.Context, userID string, slot MediaSlot, localPath string) (account.Profile, error) {
	const op = "session.Service.UpdateMedia"

	if localPath == "" {
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "file is required"}
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return account.Profile{}, err
	}

	newRef, err := s.uploadStaged(ctx, op, localPath)
	if err != nil {
		return account.Profile{}, err
	}

	var p account.Partial
	var old string
	switch slot {
	case SlotAvatar:
		p.AvatarURL, old = &newRef, u.AvatarURL
	case SlotCover:
		p.CoverImageURL, old = &newRef, u.CoverImageURL
	default:
		s.discard(ctx, newRef)
		return account.Profile{}, account.OpError{Op: op, Kind: account.ErrValidation, Msg: "unknown media slot"}
	}

	updated, err := s.store.UpdateFields(ctx, userID, p)
	if err != nil {
		s.discard(ctx, newRef)
		return account.Profile{}, err
	}

	if old != "" {
		if derr := s.media.Delete(ctx, old); derr != nil {
			s.log.Warn("media.cleanup.fail", "user_id", userID, "ref", old, "error", derr)
		}
	}

	return updated.Profile(), nil
}

// CurrentUser returns the sanitized profile for an authenticated user id.
func (s *Service) CurrentUser(ctx context.Context, userID string) (account.Profile, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return account.Profile{}, err
	}
	return u.Profile(), nil
}

// ChannelProfile returns the public profile for a username.
func (s *Service) ChannelProfile(ctx context.Context, username string) (account.Profile, error) {
	u, err := s.store.FindByUsername(ctx, account.NormalizeUsername(username))
	if err != nil {
		return account.Profile{}, err
	}
	return u.Profile(), nil
}

func (s *Service) mintPair(op, userID string) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, account.OpError{Op: op, Kind: account.ErrInternal, Msg: "token signing failed"}
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, account.OpError{Op: op, Kind: account.ErrInternal, Msg: "token signing failed"}
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Service) uploadStaged(ctx context.Context, op, localPath string) (string, error) {
	if s.media == nil {
		return "", account.OpError{Op: op, Kind: account.ErrExternal, Msg: "media host not configured"}
	}
	ref, err := s.media.Upload(ctx, localPath)
	if err != nil {
		return "", account.OpError{Op: op, Kind: account.ErrExternal, Msg: "media upload failed"}
	}
	return ref, nil
}

// discard removes an orphaned upload after a later step failed.
func (s *Service) discard(ctx context.Context, ref string) {
	if ref == "" || s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, ref); err != nil {
		s.log.Warn("media.cleanup.fail", "ref", ref, "error", err)
	}
}

// authFailure is the single, deliberately vague credential failure.
func authFailure(op string) error {
	return account.OpError{Op: op, Kind: account.ErrAuth, Msg: "invalid credentials"}
}
