package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"lifelessons/backend/apperr"
	"lifelessons/backend/config"
	"lifelessons/backend/models"
	"lifelessons/backend/services"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Log   *utils.Logger
	Trash *services.TrashService
}

func NewUserController(db *gorm.DB, cfg *config.Config, log *utils.Logger, trash *services.TrashService) *UserController {
	return &UserController{DB: db, Cfg: cfg, Log: log, Trash: trash}
}

type UpdateUserRequest struct {
	Name        string `json:"name" example:"Jane Reader"`
	PhotoURL    string `json:"photoURL"`
	OldPassword string `json:"oldPassword" minLength:"6"`
	NewPassword string `json:"newPassword" minLength:"6"`
}

type UpgradeRequest struct {
	PaymentRef string `json:"paymentRef" example:"pi_3Nx..."`
}

func (uc *UserController) currentUser(c *fiber.Ctx) (*models.User, error) {
	claims := utils.CurrentClaims(c)
	if claims == nil {
		return nil, apperr.Permission("unauthenticated", "login required")
	}
	var user models.User
	if err := uc.DB.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user_not_found", "User not found")
		}
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

// GetProfile godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile data with lesson stats
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/profile [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	user, err := uc.currentUser(c)
	if err != nil {
		return utils.AppError(c, err)
	}

	// lesson stats for the profile header
	var stats struct {
		Lessons   int64 `json:"lessons"`
		Likes     int64 `json:"likes"`
		Favorites int64 `json:"favorites"`
		Views     int64 `json:"views"`
	}
	err = uc.DB.WithContext(c.UserContext()).Model(&models.Lesson{}).
		Select("COUNT(*) AS lessons, COALESCE(SUM(likes_count), 0) AS likes, " +
			"COALESCE(SUM(favorites_count), 0) AS favorites, COALESCE(SUM(views), 0) AS views").
		Where("creator_email = ?", user.Email).
		Scan(&stats).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not load lesson stats")
	}

	var reportsFiled int64
	err = uc.DB.WithContext(c.UserContext()).Model(&models.Report{}).
		Where("reporter_email = ?", user.Email).
		Count(&reportsFiled).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not load report stats")
	}

	return c.JSON(fiber.Map{
		"id":           user.ID,
		"email":        user.Email,
		"name":         user.Name,
		"photoURL":     user.PhotoURL,
		"role":         user.Role,
		"isPremium":    user.IsPremium,
		"premiumSince": user.PremiumSince,
		"createdAt":    user.CreatedAt,
		"stats":        stats,
		"reportsFiled": reportsFiled,
	})
}

// UpdateProfile godoc
// @Summary Update user profile
// @Tags users
// @Accept json
// @Produce json
// @Param input body UpdateUserRequest true "Profile update data"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/profile [put]
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	var input UpdateUserRequest
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	user, err := uc.currentUser(c)
	if err != nil {
		return utils.AppError(c, err)
	}

	nameChanged := false
	if name := strings.TrimSpace(input.Name); name != "" && name != user.Name {
		user.Name = name
		nameChanged = true
	}
	photoChanged := false
	if photo := strings.TrimSpace(input.PhotoURL); photo != "" && photo != user.PhotoURL {
		user.PhotoURL = photo
		photoChanged = true
	}

	// password change
	if input.NewPassword != "" {
		if input.OldPassword == "" {
			return utils.BadRequest(c, "Old password is required to set new password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
			return utils.Unauthorized(c, "Invalid old password")
		}
		if len(input.NewPassword) < minPasswordLength {
			return utils.ValidationError(c, map[string]string{"newPassword": "password must be at least 6 characters"})
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return utils.InternalServerError(c, "Could not hash password")
		}
		user.PasswordHash = string(hashedPassword)
	}

	err = uc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		// denormalized author fields on lessons and comments follow the profile
		if nameChanged || photoChanged {
			if err := tx.Model(&models.Lesson{}).Where("creator_email = ?", user.Email).
				Updates(map[string]interface{}{"creator_name": user.Name, "creator_photo": user.PhotoURL}).Error; err != nil {
				return err
			}
			return tx.Model(&models.LessonComment{}).Where("user_email = ?", user.Email).
				Updates(map[string]interface{}{"user_name": user.Name, "user_photo": user.PhotoURL}).Error
		}
		return nil
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not update user")
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user":    userJSON(user),
	})
}

// UpgradePremium godoc
// @Summary Upgrade to premium
// @Description Marks the user premium once the payment provider confirmed the payment
// @Tags users
// @Accept json
// @Produce json
// @Param input body UpgradeRequest true "Payment reference"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/upgrade [post]
func (uc *UserController) UpgradePremium(c *fiber.Ctx) error {
	var input UpgradeRequest
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	if strings.TrimSpace(input.PaymentRef) == "" {
		return utils.AppError(c, apperr.Validation("payment_required", "paymentRef is required"))
	}
	user, err := uc.currentUser(c)
	if err != nil {
		return utils.AppError(c, err)
	}

	now := time.Now().UTC()
	res := uc.DB.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ? AND is_premium = ?", user.ID, false).
		Updates(map[string]interface{}{
			"is_premium":    true,
			"premium_since": now,
			"payment_ref":   strings.TrimSpace(input.PaymentRef),
		})
	if res.Error != nil {
		return utils.AppError(c, apperr.Internal(res.Error))
	}
	if res.RowsAffected == 0 {
		return utils.AppError(c, apperr.Conflict("already_premium", "You are already a premium member"))
	}
	uc.Log.Info("premium upgrade", "user_id", user.ID)

	user.IsPremium = true
	user.PremiumSince = &now
	return c.JSON(fiber.Map{
		"message": "Welcome to premium",
		"user":    userJSON(user),
	})
}

// ListUsers godoc
// @Summary List users (admin)
// @Tags admin
// @Produce json
// @Param search query string false "Search by name or email"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} utils.PaginatedResponse
// @Security ApiKeyAuth
// @Router /admin/users [get]
func (uc *UserController) ListUsers(c *fiber.Ctx) error {
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := uc.DB.WithContext(c.UserContext()).Model(&models.User{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.InternalServerError(c, "Could not count users")
	}

	var users []models.User
	if err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch users")
	}
	return utils.Paginate(c, users, total, page, pageSize)
}

// UpdateRole godoc
// @Summary Change a user's role (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /admin/users/{id}/role [patch]
func (uc *UserController) UpdateRole(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	var input struct {
		Role string `json:"role"`
	}
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	if input.Role != models.RoleUser && input.Role != models.RoleAdmin {
		return utils.AppError(c, apperr.Validation("invalid_role", "role must be user or admin"))
	}
	if claims := utils.CurrentClaims(c); claims != nil && claims.UserID == id && input.Role != models.RoleAdmin {
		return utils.AppError(c, apperr.Permission("self_demote", "admins cannot demote themselves"))
	}

	var user models.User
	if err := uc.DB.WithContext(c.UserContext()).First(&user, id).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}
	if err := uc.DB.WithContext(c.UserContext()).Model(&user).Update("role", input.Role).Error; err != nil {
		return utils.InternalServerError(c, "Could not update role")
	}
	return c.JSON(fiber.Map{"message": "Role updated", "user": userJSON(&user)})
}

// DeleteUser godoc
// @Summary Delete a profile (admin)
// @Description Moves the profile to the trash
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /admin/users/{id} [delete]
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	item, err := uc.Trash.SoftDelete(c.UserContext(), utils.CurrentClaims(c), models.TrashProfile, id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Profile moved to trash", "item": item})
}
