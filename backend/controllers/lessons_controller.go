package controllers

import (
	"strconv"

	"lifelessons/backend/models"
	"lifelessons/backend/services"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type LessonsController struct {
	Lessons *services.LessonService
	Trash   *services.TrashService
}

func NewLessonsController(lessons *services.LessonService, trash *services.TrashService) *LessonsController {
	return &LessonsController{Lessons: lessons, Trash: trash}
}

// GetLessons godoc
// @Summary Public lesson feed
// @Tags lessons
// @Produce json
// @Param category query string false "Category"
// @Param tone query string false "Emotional tone"
// @Param search query string false "Search in title and description"
// @Param sort query string false "newest|oldest|most-liked|most-saved" default(newest)
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(9)
// @Success 200 {object} utils.PaginatedResponse
// @Router /lessons [get]
func (lc *LessonsController) GetLessons(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", strconv.Itoa(services.DefaultPageSize)))

	feed, err := lc.Lessons.Feed(c.UserContext(), utils.CurrentClaims(c), services.FeedQuery{
		Category: c.Query("category"),
		Tone:     c.Query("tone"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     page,
		Limit:    pageSize,
	})
	if err != nil {
		return utils.AppError(c, err)
	}
	return utils.Paginate(c, feed.Lessons, feed.Total, feed.Page, feed.Limit)
}

// GetLesson godoc
// @Summary Lesson details
// @Tags lessons
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} services.LessonView
// @Failure 403 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /lessons/{id} [get]
func (lc *LessonsController) GetLesson(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	view, err := lc.Lessons.Get(c.UserContext(), utils.CurrentClaims(c), id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(view)
}

// CreateLesson godoc
// @Summary Publish a lesson
// @Tags lessons
// @Accept json
// @Produce json
// @Param input body services.LessonInput true "Lesson"
// @Success 201 {object} models.Lesson
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /lessons [post]
func (lc *LessonsController) CreateLesson(c *fiber.Ctx) error {
	var input services.LessonInput
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	lesson, err := lc.Lessons.Create(c.UserContext(), utils.CurrentClaims(c), input)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(lesson)
}

// UpdateLesson godoc
// @Summary Edit own lesson
// @Tags lessons
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param input body services.LessonUpdate true "Changed fields"
// @Success 200 {object} models.Lesson
// @Security ApiKeyAuth
// @Router /lessons/{id} [put]
func (lc *LessonsController) UpdateLesson(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	var input services.LessonUpdate
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	lesson, err := lc.Lessons.Update(c.UserContext(), utils.CurrentClaims(c), id, input)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(lesson)
}

// DeleteLesson godoc
// @Summary Delete a lesson
// @Description Moves the lesson to the trash. Allowed for the author and admins.
// @Tags lessons
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /lessons/{id} [delete]
func (lc *LessonsController) DeleteLesson(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	item, err := lc.Trash.SoftDelete(c.UserContext(), utils.CurrentClaims(c), models.TrashLesson, id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Lesson moved to trash", "item": item})
}

func (lc *LessonsController) GetMyLessons(c *fiber.Ctx) error {
	lessons, err := lc.Lessons.Mine(c.UserContext(), utils.CurrentClaims(c))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"lessons": lessons})
}

func (lc *LessonsController) GetFavorites(c *fiber.Ctx) error {
	lessons, err := lc.Lessons.Favorites(c.UserContext(), utils.CurrentClaims(c))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"lessons": lessons})
}

func (lc *LessonsController) ToggleLike(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	liked, count, err := lc.Lessons.ToggleLike(c.UserContext(), utils.CurrentClaims(c), id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked, "likesCount": count})
}

func (lc *LessonsController) ToggleFavorite(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	saved, count, err := lc.Lessons.ToggleFavorite(c.UserContext(), utils.CurrentClaims(c), id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"favorited": saved, "favoritesCount": count})
}

// RecordView godoc
// @Summary Count an engaged view
// @Description Called once per reading session after the reader spent long enough on the page
// @Tags lessons
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /lessons/{id}/view [post]
func (lc *LessonsController) RecordView(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	views, err := lc.Lessons.RecordView(c.UserContext(), utils.CurrentClaims(c), id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"views": views})
}

// SetLessonFlags lets an admin feature a lesson or mark it reviewed.
func (lc *LessonsController) SetLessonFlags(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	var input struct {
		IsFeatured *bool `json:"isFeatured"`
		IsReviewed *bool `json:"isReviewed"`
	}
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	lesson, err := lc.Lessons.SetFlags(c.UserContext(), utils.CurrentClaims(c), id, input.IsFeatured, input.IsReviewed)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(lesson)
}
