package service

import (
	"context"
	"errors"
	"strings"

	"PPChat/logger"
	usermodel "PPChat/module/user/model"
	"PPChat/tools/errs"
	jwtlib "PPChat/tools/security"

	"go.uber.org/zap"
)

const (
	minNameLen     = 2
	minPasswordLen = 6
)

// UserStore 认证流程用到的用户持久化操作
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*usermodel.User, error)
	FindByEmail(ctx context.Context, email string) (*usermodel.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*usermodel.User, error)
	Create(ctx context.Context, u *usermodel.User) error
	LinkGoogle(ctx context.Context, id, googleID, avatar string) error
}

// RegisterParams 注册入参
type RegisterParams struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginParams 登录入参
type LoginParams struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	User  usermodel.PublicUser `json:"user"`
	Token string               `json:"token"`
}

type Service struct {
	users  UserStore
	jwt    jwtlib.Options
	google GoogleVerifier // 可为 nil（未配置 Google 登录）
}

func NewService(users UserStore, jwt jwtlib.Options, google GoogleVerifier) *Service {
	return &Service{users: users, jwt: jwt, google: google}
}

func (s *Service) issue(u *usermodel.User) (*AuthResult, error) {
	token, _, err := jwtlib.Generate(s.jwt, u.UserID())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u.Public(), Token: token}, nil
}

func (s *Service) Register(ctx context.Context, in RegisterParams) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	if len([]rune(name)) < minNameLen {
		return nil, errs.ErrArgs.WrapMsg("Name must be at least 2 characters")
	}
	email := usermodel.NormalizeEmail(in.Email)
	if !strings.Contains(email, "@") {
		return nil, errs.ErrArgs.WrapMsg("Please provide a valid email")
	}
	if len(in.Password) < minPasswordLen {
		return nil, errs.ErrArgs.WrapMsg("Password must be at least 6 characters")
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errs.ErrUserExists.WrapMsg("User already exists")
	case !errors.Is(err, errs.ErrRecordNotFound):
		return nil, err
	}

	hash, err := jwtlib.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &usermodel.User{Name: name, Email: email, Password: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.Info("user registered", zap.String("user", u.UserID()))
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, in LoginParams) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrInvalidCredentials.WrapMsg("Invalid credentials")
		}
		return nil, err
	}
	if !jwtlib.CheckPassword(u.Password, in.Password) {
		return nil, errs.ErrInvalidCredentials.WrapMsg("Invalid credentials")
	}
	return s.issue(u)
}

// GoogleSignIn 前端拿到的 Google ID token 换本系统 token
func (s *Service) GoogleSignIn(ctx context.Context, credential string) (*AuthResult, error) {
	if s.google == nil {
		return nil, errs.ErrNoPermission.WrapMsg("google sign-in is not configured")
	}
	p, err := s.google.VerifyIDToken(ctx, credential)
	if err != nil {
		return nil, err
	}
	return s.SignInWithGoogle(ctx, p)
}

// SignInWithGoogle 按 googleId、再按邮箱查找用户，都没有则创建
func (s *Service) SignInWithGoogle(ctx context.Context, p *GoogleProfile) (*AuthResult, error) {
	u, err := s.users.FindByGoogleID(ctx, p.Subject)
	if err != nil && !errors.Is(err, errs.ErrRecordNotFound) {
		return nil, err
	}
	if u == nil {
		u, err = s.users.FindByEmail(ctx, p.Email)
		if err != nil && !errors.Is(err, errs.ErrRecordNotFound) {
			return nil, err
		}
	}

	if u == nil {
		u = &usermodel.User{
			Name:     strings.TrimSpace(p.Name),
			Email:    usermodel.NormalizeEmail(p.Email),
			GoogleID: p.Subject,
			Avatar:   p.Picture,
		}
		if u.Name == "" {
			u.Name = usermodel.FallbackName(u)
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		logger.Info("user created from google", zap.String("user", u.UserID()))
		return s.issue(u)
	}

	if u.GoogleID != p.Subject || (p.Picture != "" && u.Avatar != p.Picture) {
		if err := s.users.LinkGoogle(ctx, u.UserID(), p.Subject, p.Picture); err != nil {
			return nil, err
		}
		u.GoogleID = p.Subject
		if p.Picture != "" {
			u.Avatar = p.Picture
		}
	}
	return s.issue(u)
}

func (s *Service) Me(ctx context.Context, id string) (*usermodel.User, error) {
	return s.users.FindUserByID(ctx, id)
}

func (s *Service) Verify(token string) (*jwtlib.JWTClaims, error) {
	return jwtlib.Verify(s.jwt, token)
}
