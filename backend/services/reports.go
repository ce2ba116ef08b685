package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"lifelessons/backend/apperr"
	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"gorm.io/gorm"
)

type ReportService struct {
	DB    *gorm.DB
	Log   *utils.Logger
	clock clock
}

func NewReportService(db *gorm.DB, log *utils.Logger) *ReportService {
	return &ReportService{DB: db, Log: log}
}

var openStatuses = []models.ReportStatus{models.StatusPending, models.StatusReviewing}

// Submit files a report against a live lesson. Each user can report a
// lesson once, and never their own.
func (s *ReportService) Submit(ctx context.Context, actor *utils.Claims, in models.ReportInput) (*models.Report, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var report models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lesson models.Lesson
		if err := tx.First(&lesson, in.LessonID).Error; err != nil {
			return dbError(err, "lesson")
		}
		if strings.EqualFold(lesson.CreatorEmail, actor.Email) {
			return apperr.Permission("own_lesson", "you cannot report your own lesson")
		}

		var existing int64
		if err := tx.Model(&models.Report{}).
			Where("lesson_id = ? AND reporter_email = ?", in.LessonID, actor.Email).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return duplicateReport()
		}

		report = models.Report{
			LessonID:      in.LessonID,
			ReporterEmail: actor.Email,
			ReporterName:  displayName(actor),
			Reason:        models.ReportReason(in.Reason),
			Description:   in.Description,
			Status:        models.StatusPending,
		}
		if err := tx.Create(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateReport()
			}
			return err
		}
		report.LessonTitle = lesson.Title
		return nil
	})
	if err != nil {
		return nil, dbError(err, "report")
	}
	s.Log.Info("report submitted", "report_id", report.ID, "lesson_id", report.LessonID, "reason", report.Reason)
	return &report, nil
}

func duplicateReport() error {
	return apperr.Conflict("duplicate_report", "you can only report a lesson once")
}

// parseStatusFilter accepts "", "all" or one report status.
func parseStatusFilter(raw string) (models.ReportStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return "", nil
	}
	st, ok := models.ParseReportStatus(raw)
	if !ok {
		return "", apperr.Validation("invalid_status", "unknown report status")
	}
	return st, nil
}

func (s *ReportService) ListMine(ctx context.Context, actor *utils.Claims, status string) (*models.MyReports, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	filter, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	query := db.Where("reporter_email = ?", actor.Email)
	if filter != "" {
		query = query.Where("status = ?", filter)
	}
	reports := []models.Report{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&reports).Error; err != nil {
		return nil, dbError(err, "report")
	}
	if err := s.attachTitles(ctx, reports); err != nil {
		return nil, err
	}

	counts, err := s.statusCounts(db.Model(&models.Report{}).Where("reporter_email = ?", actor.Email))
	if err != nil {
		return nil, err
	}
	return &models.MyReports{Reports: reports, StatusCounts: counts}, nil
}

// Withdraw retracts the caller's own open report. Withdrawn is terminal.
func (s *ReportService) Withdraw(ctx context.Context, actor *utils.Claims, id uint) (*models.Report, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	var report models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&report, id).Error; err != nil {
			return err
		}
		if report.ReporterEmail != actor.Email {
			return apperr.Permission("not_reporter", "you can only withdraw your own reports")
		}
		return transition(tx, &report, models.StatusWithdrawn, nil)
	})
	if err != nil {
		return nil, dbError(err, "report")
	}
	s.Log.Info("report withdrawn", "report_id", report.ID)
	return &report, nil
}

// ListAll groups reports by the lesson they target, most reported first.
// Reports whose lesson is gone are left out.
func (s *ReportService) ListAll(ctx context.Context, actor *utils.Claims, status string) (*models.AllReports, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	filter, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	live := db.Model(&models.Lesson{}).Select("id").Where("deleted_at IS NULL")

	query := db.Where("lesson_id IN (?)", live)
	if filter != "" {
		query = query.Where("status = ?", filter)
	}
	reports := []models.Report{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&reports).Error; err != nil {
		return nil, dbError(err, "report")
	}

	groups, err := s.group(ctx, reports)
	if err != nil {
		return nil, err
	}

	counts, err := s.statusCounts(db.Model(&models.Report{}).Where("lesson_id IN (?)", live))
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &models.AllReports{
		Lessons: groups,
		Reports: reports,
		Stats:   models.ReportStats{Total: total, ReportedLessons: len(groups), ByStatus: counts},
	}, nil
}

func (s *ReportService) group(ctx context.Context, reports []models.Report) ([]models.LessonReportGroup, error) {
	lessons, err := s.lessonsFor(ctx, reports, false)
	if err != nil {
		return nil, err
	}

	byLesson := map[uint]*models.LessonReportGroup{}
	var order []uint
	for i := range reports {
		r := &reports[i]
		l, ok := lessons[r.LessonID]
		if !ok {
			continue
		}
		r.LessonTitle = l.Title
		g, ok := byLesson[r.LessonID]
		if !ok {
			g = &models.LessonReportGroup{
				LessonID:     l.ID,
				LessonTitle:  l.Title,
				CreatorEmail: l.CreatorEmail,
			}
			byLesson[r.LessonID] = g
			order = append(order, r.LessonID)
		}
		g.Reports = append(g.Reports, *r)
		g.ReportCount++
	}

	groups := make([]models.LessonReportGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byLesson[id])
	}
	// reports arrive newest first, so the stable sort keeps the lesson with
	// the most recent report ahead on ties
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].ReportCount > groups[j].ReportCount
	})
	return groups, nil
}

// Review closes an open report as resolved or rejected.
func (s *ReportService) Review(ctx context.Context, actor *utils.Claims, id uint, status, adminMessage string) (*models.Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	target, ok := models.ParseReportStatus(status)
	if !ok || !target.ReviewOutcome() {
		return nil, apperr.Validation("invalid_status", "status must be resolved or rejected")
	}

	var report models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&report, id).Error; err != nil {
			return err
		}
		now := s.clock.now()
		return transition(tx, &report, target, map[string]interface{}{
			"admin_message": models.SanitizeText(adminMessage),
			"reviewer_name": displayName(actor),
			"reviewed_at":   now,
		})
	})
	if err != nil {
		return nil, dbError(err, "report")
	}
	s.Log.Info("report reviewed", "report_id", report.ID, "status", report.Status)
	return &report, nil
}

// MarkReviewing moves a pending report to reviewing.
func (s *ReportService) MarkReviewing(ctx context.Context, actor *utils.Claims, id uint) (*models.Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var report models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&report, id).Error; err != nil {
			return err
		}
		if report.Status != models.StatusPending {
			return invalidState(report.Status)
		}
		return transition(tx, &report, models.StatusReviewing, map[string]interface{}{
			"reviewer_name": displayName(actor),
		})
	})
	if err != nil {
		return nil, dbError(err, "report")
	}
	return &report, nil
}

// DismissLessonReports resolves every pending report of one lesson at once.
func (s *ReportService) DismissLessonReports(ctx context.Context, actor *utils.Claims, lessonID uint, adminMessage string) (int64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	res := s.DB.WithContext(ctx).Model(&models.Report{}).
		Where("lesson_id = ? AND status = ?", lessonID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":        models.StatusResolved,
			"admin_message": models.SanitizeText(adminMessage),
			"reviewer_name": displayName(actor),
			"reviewed_at":   s.clock.now(),
		})
	if res.Error != nil {
		return 0, dbError(res.Error, "report")
	}
	s.Log.Info("lesson reports dismissed", "lesson_id", lessonID, "count", res.RowsAffected)
	return res.RowsAffected, nil
}

// transition moves an open report to target. The status guard sits in the
// UPDATE itself so two admins racing on one report cannot both win.
func transition(tx *gorm.DB, report *models.Report, target models.ReportStatus, extra map[string]interface{}) error {
	if !report.Status.Open() {
		return invalidState(report.Status)
	}
	updates := map[string]interface{}{"status": target}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Report{}).
		Where("id = ? AND status IN ?", report.ID, openStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("invalid_state", "report was changed by someone else")
	}
	return tx.First(report, report.ID).Error
}

func invalidState(current models.ReportStatus) error {
	return apperr.Conflict("invalid_state", "report is already "+string(current))
}

func (s *ReportService) statusCounts(query *gorm.DB) (models.ReportStatusCounts, error) {
	var rows []struct {
		Status models.ReportStatus
		Count  int64
	}
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, dbError(err, "report")
	}
	counts := models.NewReportStatusCounts()
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *ReportService) attachTitles(ctx context.Context, reports []models.Report) error {
	lessons, err := s.lessonsFor(ctx, reports, true)
	if err != nil {
		return err
	}
	for i := range reports {
		if l, ok := lessons[reports[i].LessonID]; ok {
			reports[i].LessonTitle = l.Title
		}
	}
	return nil
}

func (s *ReportService) lessonsFor(ctx context.Context, reports []models.Report, includeTrashed bool) (map[uint]models.Lesson, error) {
	out := map[uint]models.Lesson{}
	if len(reports) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.LessonID)
	}
	db := s.DB.WithContext(ctx)
	if includeTrashed {
		db = db.Unscoped()
	}
	var lessons []models.Lesson
	if err := db.Select("id", "title", "creator_email").Where("id IN ?", ids).Find(&lessons).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	for _, l := range lessons {
		out[l.ID] = l
	}
	return out, nil
}
