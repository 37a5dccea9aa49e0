package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/logger"
	"github.com/studyshare/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB      *gorm.DB
	Tokens  *services.TokenService
	Storage *storage.MinIOClient
}

func NewAuthHandler(db *gorm.DB, tokens *services.TokenService, store *storage.MinIOClient) *AuthHandler {
	return &AuthHandler{DB: db, Tokens: tokens, Storage: store}
}

type registerRequest struct {
	FullName string `json:"fullName" form:"fullName"`
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))

	if req.FullName == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		return apperr.Validation("all fields are required")
	}
	if len(req.FullName) < 3 {
		return apperr.Validation("full name must be at least 3 characters long")
	}
	if len(req.Username) < 3 {
		return apperr.Validation("username must be at least 3 characters long")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperr.Validation("please provide a valid email address")
	}
	if len(req.Password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}

	var existing models.User
	err := h.DB.First(&existing, "username = ? OR email = ?", req.Username, req.Email).Error
	if err == nil {
		return apperr.Conflict("user with username or email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Internal("failed checking existing user", err)
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return apperr.Internal("failed hashing password", err)
	}

	user := models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: passwordHash,
		Role:         models.UserRoleUser,
	}

	// avatar is optional at registration
	if fileHeader, err := c.FormFile("avatar"); err == nil {
		avatarURL, err := h.uploadAvatar(c, fileHeader, uuid.New().String())
		if err != nil {
			return err
		}
		user.AvatarURL = &avatarURL
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return apperr.FromDB(err, "user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
	})

	return utils.Success(c, fiber.StatusCreated, "user created successfully", user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return apperr.Validation("email and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return apperr.Authentication("invalid credentials")
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		logger.WarnWithUser(user.ID.String(), "login_failed_bad_password", map[string]interface{}{
			"ip": c.IP(),
		})
		return apperr.Authentication("invalid credentials")
	}

	if user.IsBlocked {
		return apperr.Authorization("your account has been blocked")
	}

	pair, err := h.Tokens.IssuePair(c.Context(), &user)
	if err != nil {
		return apperr.Internal("failed issuing tokens", err)
	}

	setAuthCookies(c, pair)

	logger.InfoWithUser(user.ID.String(), "user_logged_in", map[string]interface{}{
		"ip": c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, "login successful", fiber.Map{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	if err := h.Tokens.Revoke(c.Context(), user.ID); err != nil {
		return apperr.Internal("failed revoking refresh token", err)
	}

	clearAuthCookies(c)

	logger.InfoWithUser(user.ID.String(), "user_logged_out", nil)

	return utils.Success(c, fiber.StatusOK, "logged out successfully", nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the refresh token: the presented token must equal the
// user's stored slot, and both credentials are reissued.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	incoming := c.Cookies("refreshToken")
	if incoming == "" {
		var req refreshRequest
		if err := c.BodyParser(&req); err == nil {
			incoming = req.RefreshToken
		}
	}
	if incoming == "" {
		return apperr.Authentication("refresh token is required")
	}

	pair, user, err := h.Tokens.Rotate(c.Context(), incoming)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenExpired),
			errors.Is(err, services.ErrTokenInvalid),
			errors.Is(err, services.ErrPrincipalNotFound),
			errors.Is(err, services.ErrRefreshMismatch):
			return apperr.Authentication("invalid or expired refresh token")
		default:
			return apperr.Internal("failed rotating tokens", err)
		}
	}

	setAuthCookies(c, pair)

	logger.InfoWithUser(user.ID.String(), "tokens_rotated", nil)

	return utils.Success(c, fiber.StatusOK, "token refreshed successfully", fiber.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, "current user fetched successfully", middleware.GetCurrentUser(c))
}

type updateMeRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Bio = strings.TrimSpace(req.Bio)

	if req.FullName == "" || req.Email == "" || req.Bio == "" {
		return apperr.Validation("full name, email, and bio are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperr.Validation("please provide a valid email address")
	}

	user.FullName = req.FullName
	user.Email = req.Email
	user.Bio = req.Bio
	err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"full_name": req.FullName,
		"email":     req.Email,
		"bio":       req.Bio,
	}).Error
	if err != nil {
		return apperr.FromDB(err, "user")
	}

	return utils.Success(c, fiber.StatusOK, "account updated successfully", user)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	// the gate strips the hash from the principal, so reload it
	var credentials models.User
	if err := h.DB.Select("password_hash").First(&credentials, "id = ?", user.ID).Error; err != nil {
		return apperr.Internal("failed fetching credentials", err)
	}

	if !utils.CheckPassword(credentials.PasswordHash, req.OldPassword) {
		return apperr.Validation("old password is incorrect")
	}
	if len(req.NewPassword) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal("failed hashing password", err)
	}

	err = h.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("password_hash", hash).Error
	if err != nil {
		return apperr.Internal("failed updating password", err)
	}

	return utils.Success(c, fiber.StatusOK, "password changed successfully", nil)
}

// UpdateAvatar stores a new avatar in object storage and saves its URL.
func (h *AuthHandler) UpdateAvatar(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return apperr.Validation("avatar file is missing")
	}

	avatarURL, err := h.uploadAvatar(c, fileHeader, user.ID.String())
	if err != nil {
		return err
	}

	user.AvatarURL = &avatarURL
	err = h.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("avatar_url", avatarURL).Error
	if err != nil {
		return apperr.Internal("failed saving avatar", err)
	}

	return utils.Success(c, fiber.StatusOK, "avatar updated successfully", user)
}

func (h *AuthHandler) uploadAvatar(c *fiber.Ctx, fileHeader *multipart.FileHeader, stem string) (string, error) {
	if h.Storage == nil {
		return "", apperr.Internal("file storage is not configured", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", apperr.Internal("failed reading uploaded file", err)
	}
	defer file.Close()

	objectName := fmt.Sprintf("avatars/%s%s", stem, filepath.Ext(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")

	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return "", apperr.Internal("failed uploading avatar", err)
	}

	return h.Storage.PublicURL(objectName), nil
}
