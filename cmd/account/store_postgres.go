package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - The schema identifier is validated and quoted to avoid injection via identifiers.
// - SwapRefreshTokenHash relies on a conditional UPDATE, so concurrent refresh
//   rotations racing on the same user cannot both succeed.
// - Errors are mapped to account sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "vidra").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("account: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "vidra",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("account: nil pool")
	}
	return st, nil
}

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url,
	password_hash, refresh_token_hash, created_at, updated_at`

func (s *PostgresStore) users() string {
	return `"` + s.schema + `"."users"`
}

// FindByUsernameOrEmail matches either identity column (both lowercase-normalized).
func (s *PostgresStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error) {
	const op = "account.FindByUsernameOrEmail"

	username = NormalizeUsername(username)
	email = NormalizeEmail(email)
	if username == "" && email == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM `+s.users()+`
		WHERE ($1 <> '' AND username = $1)
		   OR ($2 <> '' AND email = $2)
		LIMIT 1`,
		username, email,
	)
	return scanUser(op, row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "account.FindByID"

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE id = $1`, id)
	return scanUser(op, row)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	const op = "account.FindByUsername"

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE username = $1`,
		NormalizeUsername(username))
	return scanUser(op, row)
}

// Create inserts a new user record.
func (s *PostgresStore) Create(ctx context.Context, u User) (User, error) {
	const op = "account.Create"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.users()+` (
			id, username, email, full_name, avatar_url, cover_image_url,
			password_hash, refresh_token_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Username, u.Email, u.FullName, u.AvatarURL, u.CoverImageURL,
		u.PasswordHash, u.RefreshTokenHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, storeFailure(op, err)
	}
	return u, nil
}

// UpdateFields applies p in a single UPDATE and returns the updated record.
func (s *PostgresStore) UpdateFields(ctx context.Context, id string, p Partial) (User, error) {
	const op = "account.UpdateFields"

	if p.IsZero() {
		return s.FindByID(ctx, id)
	}

	set := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Username != nil {
		add("username", NormalizeUsername(*p.Username))
	}
	if p.Email != nil {
		add("email", NormalizeEmail(*p.Email))
	}
	if p.FullName != nil {
		add("full_name", strings.TrimSpace(*p.FullName))
	}
	if p.AvatarURL != nil {
		add("avatar_url", *p.AvatarURL)
	}
	if p.CoverImageURL != nil {
		add("cover_image_url", *p.CoverImageURL)
	}
	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
	}
	switch {
	case p.ClearRefreshToken:
		set = append(set, "refresh_token_hash = NULL")
	case p.RefreshTokenHash != nil:
		add("refresh_token_hash", *p.RefreshTokenHash)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	row := s.pool.QueryRow(ctx, `
		UPDATE `+s.users()+`
		SET `+strings.Join(set, ", ")+`
		WHERE id = $`+fmt.Sprint(len(args))+`
		RETURNING `+userColumns,
		args...,
	)

	u, err := scanUser(op, row)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// SwapRefreshTokenHash performs the optimistic rotation check: the UPDATE is
// conditioned on the currently stored hash, so a stale token loses the race.
func (s *PostgresStore) SwapRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	const op = "account.SwapRefreshTokenHash"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		SET refresh_token_hash = $1, updated_at = $2
		WHERE id = $3 AND refresh_token_hash = $4`,
		newHash, time.Now().UTC(), id, oldHash,
	)
	if err != nil {
		return false, storeFailure(op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(op string, row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
		&u.PasswordHash, &u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, storeFailure(op, err)
	}
	return u, nil
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username", true
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email", true
	default:
		return "", true
	}
}

func storeFailure(op string, err error) error {
	return OpError{Op: op, Kind: ErrExternal, Msg: err.Error()}
}
