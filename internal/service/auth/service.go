package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/patient-records/internal/config"
	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/pkg/auth"
	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
	"github.com/jwalitptl/patient-records/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenType = "Bearer"

// unknownUserPassword is hashed once so logins for unknown usernames still
// pay for a bcrypt comparison
const unknownUserPassword = "no-such-user-placeholder"

type AuthService interface {
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

type Service struct {
	users     map[string]config.UserConfig
	hasher    security.PasswordHasher
	jwtSvc    auth.JWTService
	ttl       time.Duration
	dummyHash string
}

// NewService serves the users configured under auth.users
func NewService(users []config.UserConfig, hasher security.PasswordHasher, jwtSvc auth.JWTService, ttl time.Duration) *Service {
	byName := make(map[string]config.UserConfig, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	// a failed hash leaves dummyHash empty; Compare then rejects without the bcrypt cost
	dummyHash, _ := hasher.Hash(unknownUserPassword)
	return &Service{
		users:     byName,
		hasher:    hasher,
		jwtSvc:    jwtSvc,
		ttl:       ttl,
		dummyHash: dummyHash,
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, ok := s.users[req.Username]
	if !ok {
		_ = s.hasher.Compare(s.dummyHash, req.Password)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials.Error(), ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials.Error(), err)
	}

	pid := ""
	if model.Role(user.Role) == model.RolePatient {
		pid = user.PID
	}

	token, _, err := s.jwtSvc.GenerateAccessToken(user.Username, user.Role, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// Authenticate resolves a bearer token to the calling principal
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token", err)
	}

	role := model.Role(claims.Role)
	if !role.Valid() {
		return nil, apperrors.Unauthorized("invalid or expired token", fmt.Errorf("unknown role %q", claims.Role))
	}
	if role == model.RolePatient && claims.PID == "" {
		return nil, apperrors.Unauthorized("invalid or expired token", errors.New("patient token without pid"))
	}

	return &model.Principal{
		Subject: claims.Subject,
		Role:    role,
		PID:     claims.PID,
	}, nil
}
