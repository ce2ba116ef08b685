package controllers

import (
	"time"

	"lifelessons/backend/config"
	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type AnalyticsController struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *utils.Logger
}

func NewAnalyticsController(db *gorm.DB, cfg *config.Config, log *utils.Logger) *AnalyticsController {
	return &AnalyticsController{DB: db, Cfg: cfg, Log: log}
}

// GetPlatformAnalytics godoc
// @Summary Platform totals (admin)
// @Description Users, lessons, reports and trash totals plus lessons per category
// @Tags admin
// @Produce json
// @Success 200 {object} models.PlatformAnalytics
// @Security ApiKeyAuth
// @Router /admin/analytics [get]
func (ac *AnalyticsController) GetPlatformAnalytics(c *fiber.Ctx) error {
	db := ac.DB.WithContext(c.UserContext())
	var out models.PlatformAnalytics

	// independent counters run concurrently
	g, _ := errgroup.WithContext(c.UserContext())
	count := func(dst *int64, model interface{}, where ...interface{}) {
		g.Go(func() error {
			q := db.Model(model)
			if len(where) > 0 {
				q = q.Where(where[0], where[1:]...)
			}
			return q.Count(dst).Error
		})
	}
	count(&out.TotalUsers, &models.User{})
	count(&out.PremiumUsers, &models.User{}, "is_premium = ?", true)
	count(&out.TotalLessons, &models.Lesson{})
	count(&out.PublicLessons, &models.Lesson{}, "visibility = ?", models.VisibilityPublic)
	count(&out.PendingReports, &models.Report{}, "status = ?", models.StatusPending)
	count(&out.TrashItems, &models.TrashItem{})

	var byCategory []models.CategoryCount
	g.Go(func() error {
		return db.Model(&models.Lesson{}).
			Select("category, COUNT(*) AS count").
			Group("category").
			Scan(&byCategory).Error
	})

	if err := g.Wait(); err != nil {
		ac.Log.Error("analytics query failed", "error", err)
		return utils.InternalServerError(c, "Failed to load analytics")
	}

	out.LessonsByCategory = make(map[string]int64, len(models.Categories))
	for _, cat := range models.Categories {
		out.LessonsByCategory[string(cat)] = 0
	}
	for _, row := range byCategory {
		out.LessonsByCategory[row.Category] = row.Count
	}
	return c.JSON(out)
}

// GetGrowthAnalytics godoc
// @Summary Daily sign-ups and new lessons (admin)
// @Tags admin
// @Produce json
// @Param start_date query string false "YYYY-MM-DD, defaults to one month ago"
// @Param end_date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /admin/analytics/growth [get]
func (ac *AnalyticsController) GetGrowthAnalytics(c *fiber.Ctx) error {
	// parse dates or fall back to the last month
	var start, end time.Time
	var err error
	if s := c.Query("start_date"); s == "" {
		start = time.Now().UTC().AddDate(0, -1, 0)
	} else if start, err = time.Parse("2006-01-02", s); err != nil {
		return utils.BadRequest(c, "Invalid start_date format. Use YYYY-MM-DD")
	}
	if e := c.Query("end_date"); e == "" {
		end = time.Now().UTC()
	} else if end, err = time.Parse("2006-01-02", e); err != nil {
		return utils.BadRequest(c, "Invalid end_date format. Use YYYY-MM-DD")
	} else {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return utils.BadRequest(c, "end_date must not be before start_date")
	}

	type daily struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}
	db := ac.DB.WithContext(c.UserContext())
	g, _ := errgroup.WithContext(c.UserContext())
	var users, lessons []daily
	perDay := func(dst *[]daily, model interface{}) {
		g.Go(func() error {
			return db.Model(model).
				Select("DATE(created_at) AS date, COUNT(*) AS count").
				Where("created_at BETWEEN ? AND ?", start, end).
				Group("DATE(created_at)").
				Order("date").
				Scan(dst).Error
		})
	}
	perDay(&users, &models.User{})
	perDay(&lessons, &models.Lesson{})
	if err := g.Wait(); err != nil {
		return utils.InternalServerError(c, "Failed to load growth analytics")
	}

	return c.JSON(fiber.Map{
		"users":   users,
		"lessons": lessons,
		"period": fiber.Map{
			"start_date": start.Format("2006-01-02"),
			"end_date":   end.Format("2006-01-02"),
		},
	})
}
