package services

import (
	"context"
	"strings"
	"time"

	"github.com/huangang/projecthub/internal/config"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/internal/utils"
	"github.com/huangang/projecthub/pkg/logger"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// Login authenticates a local user and issues a JWT.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.localAuth(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return nil, err
	}

	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, hours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("[Auth] failed to record last login")
	}
	user.LastLogin = &now

	return &LoginResponse{
		Token:    token,
		User:     user,
		ExpireAt: now.Add(time.Duration(hours) * time.Hour),
	}, nil
}

func (s *AuthService) localAuth(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, dbError(err, ErrInvalidCredentials)
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, dbError(err, ErrUserNotFound)
	}
	return &user, nil
}

// CreateAdminIfNotExists seeds a system administrator when none exists.
func (s *AuthService) CreateAdminIfNotExists(cfg *config.AdminConfig) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username, password := cfg.Username, cfg.Password
	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = "admin"
		logger.Warnf("[Auth] Seeding admin %q with the default password, change it after first login", username)
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username: username,
		Password: hashedPassword,
		Nickname: "Administrator",
		Role:     models.UserRoleAdmin,
		IsActive: true,
	}
	return s.db.Create(&admin).Error
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return ErrInvalidCredentials
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password", hashedPassword).Error; err != nil {
		return dbError(err, nil)
	}
	return nil
}
