package controllers

import (
	"errors"
	"net/mail"
	"strings"

	"lifelessons/backend/apperr"
	"lifelessons/backend/config"
	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AuthController struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *utils.Logger
}

func NewAuthController(db *gorm.DB, cfg *config.Config, log *utils.Logger) *AuthController {
	return &AuthController{DB: db, Cfg: cfg, Log: log}
}

type RegisterRequest struct {
	Email    string `json:"email" example:"reader@example.com"`
	Name     string `json:"name" example:"Jane Reader"`
	Password string `json:"password" example:"secret123" minLength:"6"`
	PhotoURL string `json:"photoURL"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userJSON is the public shape of a user returned next to a token.
func userJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"photoURL":  u.PhotoURL,
		"role":      u.Role,
		"isPremium": u.IsPremium,
	}
}

// Register godoc
// @Summary Register a new user
// @Description Creates a new user account and returns a token
// @Tags auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "User registration data"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /auth/register [post]
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input RegisterRequest
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	problems := map[string]string{}
	if _, err := mail.ParseAddress(email); err != nil {
		problems["email"] = "valid email is required"
	}
	if name == "" {
		problems["name"] = "name is required"
	}
	if len(input.Password) < minPasswordLength {
		problems["password"] = "password must be at least 6 characters"
	}
	if len(problems) > 0 {
		return utils.ValidationError(c, problems)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.InternalServerError(c, "Could not hash password")
	}

	user := models.User{
		Email:        email,
		Name:         name,
		PhotoURL:     strings.TrimSpace(input.PhotoURL),
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
	}
	if err := ac.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.AppError(c, apperr.Conflict("email_taken", "Email already registered"))
		}
		return utils.AppError(c, apperr.Internal(err))
	}

	token, err := utils.GenerateJWTToken(&user, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}
	ac.Log.Info("user registered", "user_id", user.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  userJSON(&user),
	})
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input LoginRequest
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}

	// Find user
	var user models.User
	err := ac.DB.WithContext(c.UserContext()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Unauthorized(c, "Invalid credentials")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return utils.Unauthorized(c, "Invalid credentials")
	}

	token, err := utils.GenerateJWTToken(&user, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  userJSON(&user),
	})
}

// EnsureAdmin creates the bootstrap admin account, or promotes it if the
// email is already registered. It does nothing when email is empty.
func (ac *AuthController) EnsureAdmin(email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	var user models.User
	err := ac.DB.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.Role == models.RoleAdmin {
			return nil
		}
		if err := ac.DB.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
			return err
		}
		ac.Log.Info("promoted bootstrap admin", "user_id", user.ID)
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if len(password) < minPasswordLength {
		return errors.New("ADMIN_PASSWORD must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user = models.User{
		Email:        email,
		Name:         "Admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		return err
	}
	ac.Log.Info("created bootstrap admin", "user_id", user.ID)
	return nil
}
