package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrEmailTaken      = errors.New("email is already in use")
	ErrUsernameTaken   = errors.New("username is already in use")
	ErrUnauthorized    = errors.New("unauthorized")
)

// UserStore is the user directory consumed by the auth flows.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, user User) (User, error)
}

// RefreshTokenStore persists at most one refresh token per user.
type RefreshTokenStore interface {
	UpsertByUserID(ctx context.Context, userID, token string) error
	UpdateByUserID(ctx context.Context, userID, token string) error
	FindByUserAndToken(ctx context.Context, userID, token string) (RefreshTokenRecord, error)
	DeleteByToken(ctx context.Context, token string) error
}

// ErrRecordNotFound is returned by stores when no row matches.
var ErrRecordNotFound = errors.New("record not found")

// Service composes the credential hasher, the token service, and the two
// stores into the four user-facing auth operations.
type Service struct {
	users  UserStore
	tokens RefreshTokenStore
	signer *TokenService
}

func NewService(users UserStore, tokens RefreshTokenStore, signer *TokenService) *Service {
	return &Service{users: users, tokens: tokens, signer: signer}
}

// Register validates the input, rejects duplicate email or username, creates
// the user and issues its first token pair. Both existence checks run before
// either is reported, matching the order of the checks: email first.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, TokenPair, error) {
	if err := in.Validate(); err != nil {
		return User{}, TokenPair{}, err
	}

	emailInUse, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("check email: %w", err)
	}
	usernameInUse, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("check username: %w", err)
	}
	if emailInUse {
		return User{}, TokenPair{}, ErrEmailTaken
	}
	if usernameInUse {
		return User{}, TokenPair{}, ErrUsernameTaken
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Insert(ctx, User{
		Username:     in.Username,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("insert user: %w", err)
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	return user, pair, nil
}

// Login verifies the credentials and rotates the user's refresh-token slot.
// Unknown usernames and wrong passwords fail with distinct errors; the
// handler surfaces both as 401.
func (s *Service) Login(ctx context.Context, in LoginInput) (User, TokenPair, error) {
	if err := in.Validate(); err != nil {
		return User{}, TokenPair{}, err
	}

	user, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return User{}, TokenPair{}, ErrInvalidUsername
		}
		return User{}, TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	if err := VerifyPassword(user.PasswordHash, in.Password); err != nil {
		return User{}, TokenPair{}, ErrInvalidPassword
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	return user, pair, nil
}

// Logout revokes the session tied to the presented refresh token. A missing
// or already-rotated token is a no-op success: logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// Refresh exchanges a valid, still-stored refresh token for a fresh pair.
// A cryptographically valid token that no longer matches the stored slot has
// been rotated or revoked and is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (User, TokenPair, error) {
	userID, err := s.signer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return User{}, TokenPair{}, ErrUnauthorized
	}

	if _, err := s.tokens.FindByUserAndToken(ctx, userID, refreshToken); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return User{}, TokenPair{}, ErrUnauthorized
		}
		return User{}, TokenPair{}, fmt.Errorf("find refresh token: %w", err)
	}

	access, err := s.signer.SignAccessToken(userID)
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.signer.SignRefreshToken(userID)
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.tokens.UpdateByUserID(ctx, userID, refresh); err != nil {
		return User{}, TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return User{}, TokenPair{}, ErrUnauthorized
		}
		return User{}, TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	return user, TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	access, err := s.signer.SignAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.signer.SignRefreshToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.tokens.UpsertByUserID(ctx, userID, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
