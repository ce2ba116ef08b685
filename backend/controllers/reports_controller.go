package controllers

import (
	"lifelessons/backend/models"
	"lifelessons/backend/services"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type ReportsController struct {
	Reports *services.ReportService
	Trash   *services.TrashService
}

func NewReportsController(reports *services.ReportService, trash *services.TrashService) *ReportsController {
	return &ReportsController{Reports: reports, Trash: trash}
}

type ReviewRequest struct {
	Status       string `json:"status" enums:"resolved,rejected"`
	AdminMessage string `json:"adminMessage"`
}

// SubmitReport godoc
// @Summary Report a lesson
// @Tags reports
// @Accept json
// @Produce json
// @Param input body models.ReportInput true "Report"
// @Success 201 {object} models.Report
// @Failure 403 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse "Already reported"
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /reports [post]
func (rc *ReportsController) SubmitReport(c *fiber.Ctx) error {
	var input models.ReportInput
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	report, err := rc.Reports.Submit(c.UserContext(), utils.CurrentClaims(c), input)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetMyReports godoc
// @Summary Reports filed by the caller
// @Tags reports
// @Produce json
// @Param status query string false "pending|reviewing|resolved|rejected|withdrawn|all"
// @Success 200 {object} models.MyReports
// @Security ApiKeyAuth
// @Router /reports/mine [get]
func (rc *ReportsController) GetMyReports(c *fiber.Ctx) error {
	mine, err := rc.Reports.ListMine(c.UserContext(), utils.CurrentClaims(c), c.Query("status"))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(mine)
}

// WithdrawReport godoc
// @Summary Withdraw an open report
// @Tags reports
// @Produce json
// @Param id path int true "Report ID"
// @Success 200 {object} models.Report
// @Failure 409 {object} utils.ErrorResponse "Report is no longer open"
// @Security ApiKeyAuth
// @Router /reports/{id}/withdraw [post]
func (rc *ReportsController) WithdrawReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	report, err := rc.Reports.Withdraw(c.UserContext(), utils.CurrentClaims(c), id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(report)
}

// GetAllReports godoc
// @Summary All reports grouped by lesson (admin)
// @Tags reports
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} models.AllReports
// @Security ApiKeyAuth
// @Router /reports/all [get]
func (rc *ReportsController) GetAllReports(c *fiber.Ctx) error {
	all, err := rc.Reports.ListAll(c.UserContext(), utils.CurrentClaims(c), c.Query("status"))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(all)
}

// ReviewReport godoc
// @Summary Resolve or reject a report (admin)
// @Tags reports
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param input body ReviewRequest true "Outcome"
// @Success 200 {object} models.Report
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /reports/{id}/review [post]
func (rc *ReportsController) ReviewReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	var input ReviewRequest
	if err := parseBody(c, &input); err != nil {
		return utils.AppError(c, err)
	}
	report, err := rc.Reports.Review(c.UserContext(), utils.CurrentClaims(c), id, input.Status, input.AdminMessage)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(report)
}

func (rc *ReportsController) MarkReviewing(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.AppError(c, err)
	}
	report, err := rc.Reports.MarkReviewing(c.UserContext(), utils.CurrentClaims(c), id)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(report)
}

// DismissLessonReports resolves every pending report against one lesson.
func (rc *ReportsController) DismissLessonReports(c *fiber.Ctx) error {
	lessonID, err := paramID(c, "lessonId")
	if err != nil {
		return utils.AppError(c, err)
	}
	var input struct {
		AdminMessage string `json:"adminMessage"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &input); err != nil {
			return utils.AppError(c, err)
		}
	}
	n, err := rc.Reports.DismissLessonReports(c.UserContext(), utils.CurrentClaims(c), lessonID, input.AdminMessage)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"updatedCount": n})
}

// DeleteReportedLesson trashes a reported lesson. Its reports drop out of
// the grouped admin list.
func (rc *ReportsController) DeleteReportedLesson(c *fiber.Ctx) error {
	lessonID, err := paramID(c, "lessonId")
	if err != nil {
		return utils.AppError(c, err)
	}
	item, err := rc.Trash.SoftDelete(c.UserContext(), utils.CurrentClaims(c), models.TrashLesson, lessonID)
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Lesson moved to trash", "item": item})
}
