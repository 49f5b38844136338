package service

import (
	"context"

	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/core/utils"
	"github.com/kdvornichenko/weika-students/modules/auth/dto"
	"github.com/kdvornichenko/weika-students/modules/auth/entity"
	"github.com/kdvornichenko/weika-students/modules/auth/repository"

	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.LoginResponse, *errors.AppError)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, *errors.AppError)
	VerifyToken(ctx context.Context, token string) (*middleware.Identity, *errors.AppError)
	Me(ctx context.Context, identity middleware.Identity) (*dto.UserProfile, *errors.AppError)
}

type authService struct {
	repo repository.AuthRepository
}

func NewAuthService(repo repository.AuthRepository) AuthService {
	return &authService{repo: repo}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.LoginResponse, *errors.AppError) {
	existing, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		logger.Error("AuthService:Register:GetUserByEmail:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to check existing user", err)
	}
	if existing != nil {
		return nil, errors.NewAppError(errors.ErrAlreadyExists, "user already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("AuthService:Register:HashPassword:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to hash password", err)
	}

	user, err := s.repo.CreateUser(ctx, &entity.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	})
	if err != nil {
		logger.Error("AuthService:Register:CreateUser:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to create user", err)
	}

	return s.issueToken(user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, *errors.AppError) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		logger.Error("AuthService:Login:GetUserByEmail:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to get user", err)
	}
	if user == nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "invalid credentials", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "invalid credentials", nil)
	}

	return s.issueToken(user)
}

// VerifyToken implements middleware.TokenVerifier: it turns a Bearer token
// into the caller's verified identity (user id + email).
func (s *authService) VerifyToken(_ context.Context, token string) (*middleware.Identity, *errors.AppError) {
	claims, err := utils.ValidateAndParseToken(token)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "invalid token", err)
	}
	return &middleware.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

func (s *authService) Me(ctx context.Context, identity middleware.Identity) (*dto.UserProfile, *errors.AppError) {
	user, err := s.repo.GetUserByID(ctx, identity.UserID)
	if err != nil {
		logger.Error("AuthService:Me:GetUserByID:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to get user", err)
	}
	if user == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "user not found", nil)
	}
	return &dto.UserProfile{ID: user.ID.String(), Email: user.Email, Name: user.Name}, nil
}

func (s *authService) issueToken(user *entity.User) (*dto.LoginResponse, *errors.AppError) {
	token, err := utils.GenerateToken(user.ID, user.Email)
	if err != nil {
		logger.Error("AuthService:IssueToken:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to issue token", err)
	}
	return &dto.LoginResponse{
		Token: token,
		User:  dto.UserProfile{ID: user.ID.String(), Email: user.Email, Name: user.Name},
	}, nil
}
