package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/trackhub/backend-go/internal/auth"
	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService 用户服务
type UserService struct {
	db         *gorm.DB
	jwtService *auth.JWTService
	sessions   *SessionService
	validate   *validator.Validate
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB, jwtService *auth.JWTService, sessions *SessionService) *UserService {
	return &UserService{
		db:         db,
		jwtService: jwtService,
		sessions:   sessions,
		validate:   validator.New(),
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Session *Session     `json:"-"`
}

// Register 注册新用户
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			field := strings.ToLower(errs[0].Field())
			return nil, apperrors.NewInvalidInputError(field, "failed "+errs[0].Tag()+" validation")
		}
		return nil, apperrors.NewValidationError("invalid registration request")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&count).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to check user").WithCause(err)
	}
	if count > 0 {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeConflict, "username or email already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to hash password").WithCause(err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "user",
		IsActive:     true,
		CreateTime:   time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create user").WithCause(err)
	}

	logger.Info("user registered", zap.Uint("user_id", user.UserID), zap.String("username", user.Username))
	return user, nil
}

// Login 登录并签发token
func (s *UserService) Login(ctx context.Context, usernameOrEmail, password, userAgent, clientIP string) (*LoginResult, error) {
	usernameOrEmail = strings.TrimSpace(usernameOrEmail)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, strings.ToLower(usernameOrEmail)).
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewBusinessError(apperrors.ErrCodeUnauthorized, "invalid credentials")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query user").WithCause(err)
	}

	if !user.IsActive {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeAccessDenied, "account disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeUnauthorized, "invalid credentials")
	}

	token, err := s.jwtService.GenerateToken(user.UserID, user.Username, user.Email, []string{user.Role})
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to generate token").WithCause(err)
	}

	var session *Session
	if s.sessions != nil {
		session, err = s.sessions.CreateSession(ctx, user.UserID, user.Username, user.Email, user.Role, userAgent, clientIP)
		if err != nil {
			// 会话存储失败不阻断登录，token本身仍可用
			logger.Warn("session creation failed", zap.Uint("user_id", user.UserID), zap.Error(err))
		}
	}

	now := time.Now()
	s.db.WithContext(ctx).Model(&user).Update("last_login_at", now)

	return &LoginResult{Token: token, User: &user, Session: session}, nil
}

// Logout 登出：拉黑当前token并删除会话
func (s *UserService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtService.ValidateToken(tokenString)
	if err != nil {
		return apperrors.NewBusinessError(apperrors.ErrCodeUnauthorized, "invalid token")
	}

	if s.sessions != nil {
		var expiresAt time.Time
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		if err := s.sessions.BlacklistToken(ctx, claims.ID, expiresAt); err != nil {
			logger.Warn("token blacklist failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
		}
		if err := s.sessions.DeleteUserSessions(ctx, claims.UserID); err != nil {
			logger.Warn("session cleanup failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
		}
	}

	logger.Info("user logged out", zap.Uint("user_id", claims.UserID))
	return nil
}

// GetUser 按ID查询用户
func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("user")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query user").WithCause(err)
	}
	return &user, nil
}

// ChangePassword 修改密码并使所有既有会话失效
func (s *UserService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.NewInvalidInputError("password", "must be at least 8 characters")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperrors.NewBusinessError(apperrors.ErrCodeUnauthorized, "wrong password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to hash password").WithCause(err)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password_hash": string(hash),
		"update_time":   now,
	}).Error; err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to update password").WithCause(err)
	}

	if s.sessions != nil {
		if err := s.sessions.DeleteUserSessions(ctx, userID); err != nil {
			logger.Warn("session cleanup after password change failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return nil
}
