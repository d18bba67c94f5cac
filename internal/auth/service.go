package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email address is already taken")

	// ErrInvalidTOTPCode is returned when a TOTP code is invalid.
	ErrInvalidTOTPCode = errors.New("invalid TOTP code")

	// ErrTOTPAlreadySetup is returned when 2FA is already configured for a user.
	ErrTOTPAlreadySetup = errors.New("two-factor authentication is already set up")

	// ErrTOTPNotSetup is returned when 2FA has not been set up for a user.
	ErrTOTPNotSetup = errors.New("two-factor authentication is not set up")

	// ErrTOTPRequired is returned when login needs a TOTP code.
	ErrTOTPRequired = errors.New("TOTP code required")

	// ErrInvalidRecoveryCode is returned when a recovery code is invalid.
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
)

// User represents an account from the database. Each user belongs to
// exactly one tenant (the freelancer's administration).
type User struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Email         string
	Name          string
	PasswordHash  string
	TOTPSecret    string
	TOTPEnabled   bool
	RecoveryCodes []string // hashed codes stored in the database
	CreatedAt     time.Time
}

// TokenPair is an access plus refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service handles authentication flows.
type Service struct {
	pool   *pgxpool.Pool
	jwt    *JWTManager
	logger *slog.Logger
	issuer string // TOTP issuer name shown in authenticator apps
}

// NewService creates a new auth service.
func NewService(pool *pgxpool.Pool, jwt *JWTManager, logger *slog.Logger, issuer string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, jwt: jwt, logger: logger, issuer: issuer}
}

// RegisterParams contains the input for creating an administration with
// its first user.
type RegisterParams struct {
	TenantName string `json:"tenant_name"`
	VATNumber  string `json:"vat_number"`
	KVKNumber  string `json:"kvk_number"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
}

// Register creates a tenant and its first user in one transaction.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if params.TenantName == "" || params.Email == "" || params.Name == "" {
		return nil, fmt.Errorf("tenant name, email and name are required")
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, params.Email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var vatNumber, kvkNumber *string
	if params.VATNumber != "" {
		vatNumber = &params.VATNumber
	}
	if params.KVKNumber != "" {
		kvkNumber = &params.KVKNumber
	}

	user := &User{Email: params.Email, Name: params.Name, PasswordHash: hash}
	err = tx.QueryRow(ctx, `
		INSERT INTO tenants (name, vat_number, kvk_number) VALUES ($1, $2, $3) RETURNING id
	`, params.TenantName, vatNumber, kvkNumber).Scan(&user.TenantID)
	if err != nil {
		return nil, fmt.Errorf("creating tenant: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (tenant_id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, user.TenantID, user.Email, user.Name, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	s.logger.Info("tenant registered", "tenant_id", user.TenantID, "user_id", user.ID)
	return user, nil
}

// Login authenticates with email and password, plus a TOTP or recovery
// code when 2FA is enabled. Returns a token pair on success.
func (s *Service) Login(ctx context.Context, email, password, totpCode string) (*TokenPair, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Don't leak whether the email exists. Still do a dummy hash comparison
			// to prevent timing attacks.
			_ = VerifyPassword("$2a$12$000000000000000000000000000000000000000000000000000000", password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("failed login attempt",
			slog.String("email", email),
			slog.String("error", "invalid password"),
		)
		return nil, ErrInvalidCredentials
	}

	if user.TOTPEnabled {
		if totpCode == "" {
			return nil, ErrTOTPRequired
		}
		if !ValidateTOTPCode(totpCode, user.TOTPSecret) {
			if idx := ValidateRecoveryCode(totpCode, user.RecoveryCodes); idx >= 0 {
				if err := s.burnRecoveryCode(ctx, user.ID, idx); err != nil {
					return nil, err
				}
			} else {
				s.logger.Warn("failed 2FA attempt", slog.String("user_id", user.ID.String()))
				return nil, ErrInvalidTOTPCode
			}
		}
	}

	return s.tokenPair(user)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	// Reload the user: a removed account must not refresh forever.
	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.tokenPair(user)
}

func (s *Service) tokenPair(user *User) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.TenantID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID, user.TenantID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SetupTOTP generates a secret and QR code for a user who has no 2FA yet.
// The secret is stored but not enabled until ConfirmTOTP succeeds.
func (s *Service) SetupTOTP(ctx context.Context, userID uuid.UUID) (*TOTPSetup, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadySetup
	}

	setup, err := GenerateTOTPSecret(s.issuer, user.Email)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `UPDATE users SET totp_secret = $1 WHERE id = $2`, setup.Secret, userID)
	if err != nil {
		return nil, fmt.Errorf("storing TOTP secret: %w", err)
	}
	return setup, nil
}

// ConfirmTOTP verifies a first code against the pending secret, enables
// 2FA and returns freshly generated recovery codes (plaintext, shown once).
func (s *Service) ConfirmTOTP(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadySetup
	}
	if user.TOTPSecret == "" {
		return nil, ErrTOTPNotSetup
	}
	if !ValidateTOTPCode(code, user.TOTPSecret) {
		return nil, ErrInvalidTOTPCode
	}

	codes, err := GenerateRecoveryCodes()
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE users SET totp_enabled = true, recovery_codes = $1 WHERE id = $2
	`, codes.Hashed, userID)
	if err != nil {
		return nil, fmt.Errorf("enabling TOTP: %w", err)
	}

	s.logger.Info("2FA enabled", "user_id", userID)
	return codes.Plaintext, nil
}

// DisableTOTP turns 2FA off after validating a current code.
func (s *Service) DisableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled {
		return ErrTOTPNotSetup
	}
	if !ValidateTOTPCode(code, user.TOTPSecret) {
		return ErrInvalidTOTPCode
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE users SET totp_enabled = false, totp_secret = NULL, recovery_codes = NULL WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("disabling TOTP: %w", err)
	}
	return nil
}

// burnRecoveryCode removes a used recovery code so it cannot be replayed.
func (s *Service) burnRecoveryCode(ctx context.Context, userID uuid.UUID, index int) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	remaining := make([]string, 0, len(user.RecoveryCodes)-1)
	for i, hashed := range user.RecoveryCodes {
		if i != index {
			remaining = append(remaining, hashed)
		}
	}
	_, err = s.pool.Exec(ctx, `UPDATE users SET recovery_codes = $1 WHERE id = $2`, remaining, userID)
	if err != nil {
		return fmt.Errorf("burning recovery code: %w", err)
	}
	s.logger.Info("recovery code used", "user_id", userID, "remaining", len(remaining))
	return nil
}

const userColumns = `
	id, tenant_id, email, name, password_hash, COALESCE(totp_secret, ''),
	totp_enabled, COALESCE(recovery_codes, '{}'), created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.PasswordHash,
		&u.TOTPSecret, &u.TOTPEnabled, &u.RecoveryCodes, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail returns a user by email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// GetUserByID returns a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}
