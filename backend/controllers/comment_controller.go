package controllers

import (
	"lifelessons/backend/apperr"
	"lifelessons/backend/config"
	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CommentsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewCommentsController(db *gorm.DB, cfg *config.Config) *CommentsController {
	return &CommentsController{DB: db, Cfg: cfg}
}

// AddCommentRequest defines the request body for adding a comment
type AddCommentRequest struct {
	Text string `json:"text" example:"This one hit home." maxLength:"1000"`
}

// AddLessonComment godoc
// @Summary Add comment to lesson
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param input body AddCommentRequest true "Comment data"
// @Success 201 {object} models.LessonComment
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /lessons/{id}/comments [post]
func (cc *CommentsController) AddLessonComment(c *fiber.Ctx) error {
	lessonID, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}

	var input AddCommentRequest
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}

	text := models.SanitizeText(input.Text)
	switch n := models.TextLength(text); {
	case n == 0:
		return utils.AppError(c, apperr.Validation("text_required", "Comment cannot be empty"))
	case n > models.MaxCommentLength:
		return utils.AppError(c, apperr.Validation("text_too_long", "Comment must be at most 1000 characters"))
	}

	db := cc.DB.WithContext(c.UserContext())
	var lesson models.Lesson
	if err := db.Select("id").First(&lesson, lessonID).Error; err != nil {
		return utils.NotFound(c, "Lesson not found")
	}

	// Get user info
	claims := utils.CurrentClaims(c)
	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	comment := models.LessonComment{
		LessonID:  lessonID,
		UserEmail: user.Email,
		UserName:  user.Name,
		UserPhoto: user.PhotoURL,
		Text:      text,
	}
	if err := db.Create(&comment).Error; err != nil {
		return utils.InternalServerError(c, "Could not create comment")
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetLessonComments godoc
// @Summary Get lesson comments
// @Description Returns all comments for a lesson, newest first
// @Tags comments
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {array} models.LessonComment
// @Router /lessons/{id}/comments [get]
func (cc *CommentsController) GetLessonComments(c *fiber.Ctx) error {
	lessonID, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}

	comments := []models.LessonComment{}
	result := cc.DB.WithContext(c.UserContext()).
		Where("lesson_id = ?", lessonID).
		Order("created_at DESC").
		Find(&comments)
	if result.Error != nil {
		return utils.InternalServerError(c, "Could not fetch comments")
	}

	return c.JSON(comments)
}

// DeleteLessonComment lets the comment author or an admin remove a comment.
func (cc *CommentsController) DeleteLessonComment(c *fiber.Ctx) error {
	commentID, err := paramID(c, "commentId")
	if err != nil {
		return utils.AppError(c, err)
	}
	claims := utils.CurrentClaims(c)

	db := cc.DB.WithContext(c.UserContext())
	var comment models.LessonComment
	if err := db.First(&comment, commentID).Error; err != nil {
		return utils.NotFound(c, "Comment not found")
	}
	if comment.UserEmail != claims.Email && !claims.IsAdmin() {
		return utils.Forbidden(c, "You can only delete your own comments")
	}
	if err := db.Delete(&comment).Error; err != nil {
		return utils.InternalServerError(c, "Could not delete comment")
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}
