// Package service provides the business logic of the API sandbox,
// delegating persistence to the repository package.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/repository"
	"github.com/atinyakov/MedKeeper/internal/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	// Issue returns a signed token for the given account.
	Issue(userID int64, username string) (string, error)
	// Parse verifies a token and returns its claims.
	Parse(tokenString string) (*token.Claims, error)
}

// AuthService implements account registration, login and token checks by
// delegating to a UserRepository.
type AuthService struct {
	// repo performs the data-layer operations.
	repo   repository.UserRepository
	tokens Tokens
	log    *zap.Logger
}

// NewAuthService constructs a new AuthService.
// repo must implement repository.UserRepository; tokens signs access tokens.
func NewAuthService(repo repository.UserRepository, tokens Tokens, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{repo: repo, tokens: tokens, log: log}
}

// Signup registers a regular account.
// Returns an *InputError for a malformed request and ErrUsernameTaken if the
// login is in use.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (int64, error) {
	return s.create(ctx, req, false)
}

// CreateUser lets an administrator register an account, optionally an
// administrator one. Returns ErrAdminRequired when actorID is not an admin.
func (s *AuthService) CreateUser(ctx context.Context, actorID int64, req models.NewUserRequest) (int64, error) {
	actor, err := s.repo.UserByID(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrAdminRequired
	}
	if err != nil {
		return 0, err
	}
	if !actor.IsAdmin {
		return 0, ErrAdminRequired
	}
	return s.create(ctx, req.SignupRequest, req.IsAdmin)
}

// SeedAdmin creates an administrator account unless the username exists.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) error {
	_, err := s.repo.UserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err = s.create(ctx, models.SignupRequest{Username: username, Password: password, DisplayName: username}, true)
	return err
}

func (s *AuthService) create(ctx context.Context, req models.SignupRequest, admin bool) (int64, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := models.Validator().Struct(req); err != nil {
		return 0, inputError(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.repo.CreateUser(ctx, repository.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		IsAdmin:      admin,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, err
	}
	s.log.Info("user registered", zap.String("username", req.Username), zap.Bool("admin", admin))
	return id, nil
}

// Login verifies the credentials and issues an access token.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	u, err := s.repo.UserByUsername(ctx, req.Username)
	if errors.Is(err, repository.ErrNotFound) {
		return models.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResponse{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return models.LoginResponse{}, ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}
	return models.LoginResponse{AccessToken: tok, IsAdmin: u.IsAdmin}, nil
}

// Authenticate resolves a bearer token to the id of an existing account.
// Returns token.ErrInvalid for bad tokens and tokens of deleted accounts.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (int64, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return 0, err
	}
	if _, err := s.repo.UserByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, token.ErrInvalid
		}
		return 0, err
	}
	return claims.UserID, nil
}
