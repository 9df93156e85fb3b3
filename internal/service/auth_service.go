package service

import (
	"context"
	"errors"

	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"
	"go-resto-inventory/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is inactive")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*model.UserResponse, error)
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewAuthService(store repository.Store, logger *zap.Logger) AuthService {
	return &authService{store: store, logger: logger}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// Single session: a fresh token version invalidates earlier tokens
	user.TokenVersion = uuid.New().String()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, errors.New("failed to update session")
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.FullName, user.TokenVersion)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	s.logger.Info("user logged in", zap.String("email", user.Email))
	return &LoginResponse{Token: token, User: user.ToResponse()}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*model.UserResponse, error) {
	claims, err := jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, jwt.ErrInvalidToken
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, jwt.ErrInvalidToken
	}
	resp := user.ToResponse()
	return &resp, nil
}
