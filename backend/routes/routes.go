package routes

import (
	"lifelessons/backend/config"
	"lifelessons/backend/controllers"
	"lifelessons/backend/middleware"
	"lifelessons/backend/services"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *utils.Logger, trash *services.TrashService) {
	lessonService := services.NewLessonService(db, logger)
	reportService := services.NewReportService(db, logger)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg, logger)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	optionalAuth := middleware.OptionalAuth(cfg)
	adminMiddleware := middleware.AdminMiddleware()

	// User routes
	userController := controllers.NewUserController(db, cfg, logger, trash)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)
	app.Post("/api/user/upgrade", authMiddleware, userController.UpgradePremium)

	// Lessons routes
	lessonsController := controllers.NewLessonsController(lessonService, trash)
	commentsController := controllers.NewCommentsController(db, cfg)
	lessons := app.Group("/api/lessons")
	lessons.Get("/", optionalAuth, lessonsController.GetLessons)
	lessons.Post("/", authMiddleware, lessonsController.CreateLesson)
	lessons.Get("/mine", authMiddleware, lessonsController.GetMyLessons)
	lessons.Get("/favorites", authMiddleware, lessonsController.GetFavorites)
	lessons.Get("/:id", optionalAuth, lessonsController.GetLesson)
	lessons.Put("/:id", authMiddleware, lessonsController.UpdateLesson)
	lessons.Delete("/:id", authMiddleware, lessonsController.DeleteLesson)
	lessons.Post("/:id/like", authMiddleware, lessonsController.ToggleLike)
	lessons.Post("/:id/favorite", authMiddleware, lessonsController.ToggleFavorite)
	lessons.Post("/:id/view", authMiddleware, lessonsController.RecordView)
	lessons.Get("/:id/comments", commentsController.GetLessonComments)
	lessons.Post("/:id/comments", authMiddleware, commentsController.AddLessonComment)
	lessons.Delete("/:id/comments/:commentId", authMiddleware, commentsController.DeleteLessonComment)

	// Reports routes
	reportsController := controllers.NewReportsController(reportService, trash)
	reports := app.Group("/api/reports", authMiddleware)
	reports.Post("/", reportsController.SubmitReport)
	reports.Get("/mine", reportsController.GetMyReports)
	reports.Post("/:id/withdraw", reportsController.WithdrawReport)
	reports.Get("/all", adminMiddleware, reportsController.GetAllReports)
	reports.Post("/:id/review", adminMiddleware, reportsController.ReviewReport)
	reports.Post("/:id/reviewing", adminMiddleware, reportsController.MarkReviewing)
	reports.Post("/lesson/:lessonId/dismiss", adminMiddleware, reportsController.DismissLessonReports)
	reports.Delete("/lesson/:lessonId", adminMiddleware, reportsController.DeleteReportedLesson)

	// Admin routes
	trashController := controllers.NewTrashController(trash)
	analyticsController := controllers.NewAnalyticsController(db, cfg, logger)
	admin := app.Group("/api/admin", authMiddleware, adminMiddleware)
	admin.Get("/users", userController.ListUsers)
	admin.Patch("/users/:id/role", userController.UpdateRole)
	admin.Delete("/users/:id", userController.DeleteUser)
	admin.Patch("/lessons/:id", lessonsController.SetLessonFlags)
	admin.Get("/trash", trashController.GetTrash)
	admin.Post("/trash/empty", trashController.EmptyTrash)
	admin.Post("/trash/:id/restore", trashController.RestoreItem)
	admin.Delete("/trash/:id/permanent", trashController.DeleteItemPermanently)
	admin.Get("/analytics", analyticsController.GetPlatformAnalytics)
	admin.Get("/analytics/growth", analyticsController.GetGrowthAnalytics)
}
