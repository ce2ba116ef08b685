package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"lifelessons/backend/apperr"
	"lifelessons/backend/client"
	"lifelessons/backend/config"
	"lifelessons/backend/engagement"
	"lifelessons/backend/models"
	"lifelessons/backend/routes"
	"lifelessons/backend/services"
	"lifelessons/backend/testutil"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stack struct {
	db  *gorm.DB
	cfg *config.Config
	url string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := &config.Config{JWTSecret: "roundtrip-secret"}
	db := testutil.NewDB(t)
	log := utils.NopLogger()

	app := fiber.New()
	routes.SetupRoutes(app, db, cfg, log, services.NewTrashService(db, log, services.NewMemoryLocker(), 0))
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return &stack{db: db, cfg: cfg, url: srv.URL}
}

func (s *stack) clientFor(t *testing.T, u *models.User) *client.Client {
	t.Helper()
	tok, err := utils.GenerateJWTToken(u, s.cfg)
	require.NoError(t, err)
	return client.New(context.Background(), s.url, client.StaticToken(tok))
}

func TestReportLifecycleThroughClient(t *testing.T) {
	s := newStack(t)
	author := testutil.SeedUser(t, s.db, "author@example.com")
	lesson := testutil.SeedLesson(t, s.db, author, "Say no more often")
	reader := s.clientFor(t, testutil.SeedUser(t, s.db, "reader@example.com"))
	admin := s.clientFor(t, testutil.SeedUser(t, s.db, "admin@example.com", testutil.Admin()))
	ctx := context.Background()

	report, err := reader.SubmitReport(ctx, models.ReportInput{
		LessonID:    lesson.ID,
		Reason:      string(models.ReasonMisinformation),
		Description: "The quote is misattributed",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, report.Status)

	_, err = reader.SubmitReport(ctx, models.ReportInput{
		LessonID:    lesson.ID,
		Reason:      string(models.ReasonSpam),
		Description: "again",
	})
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "duplicate_report", apperr.CodeOf(err))

	_, err = reader.ListAllReports(ctx, "")
	assert.True(t, apperr.IsPermission(err))

	all, err := admin.ListAllReports(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, all.Lessons, 1)
	assert.Equal(t, "Say no more often", all.Lessons[0].LessonTitle)
	assert.Equal(t, int64(1), all.Stats.Total)

	reviewed, err := admin.ReviewReport(ctx, report.ID, models.StatusRejected, "Quote checks out")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, reviewed.Status)

	_, err = reader.WithdrawReport(ctx, report.ID, client.Always)
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "invalid_state", apperr.CodeOf(err))

	mine, err := reader.ListMyReports(ctx, "all")
	require.NoError(t, err)
	require.Len(t, mine.Reports, 1)
	assert.Equal(t, "Quote checks out", mine.Reports[0].AdminMessage)
	assert.Equal(t, int64(1), mine.StatusCounts[models.StatusRejected])
}

func TestTrashLifecycleThroughClient(t *testing.T) {
	s := newStack(t)
	author := testutil.SeedUser(t, s.db, "author@example.com")
	lesson := testutil.SeedLesson(t, s.db, author, "L123")
	admin := s.clientFor(t, testutil.SeedUser(t, s.db, "admin@example.com", testutil.Admin()))
	ctx := context.Background()

	item, err := admin.DeleteLesson(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrashLesson, item.ItemType)

	list, err := admin.ListTrash(ctx, "lesson")
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(1), list.Counts.Lesson)

	_, err = admin.RestoreTrashItem(ctx, item.ID)
	require.NoError(t, err)

	var restored models.Lesson
	require.NoError(t, s.db.First(&restored, lesson.ID).Error)
	assert.Equal(t, "L123", restored.Title)

	item, err = admin.DeleteLesson(ctx, lesson.ID)
	require.NoError(t, err)
	require.NoError(t, admin.PermanentlyDeleteTrashItem(ctx, item.ID, client.Always))

	_, err = admin.RestoreTrashItem(ctx, item.ID)
	assert.True(t, apperr.IsNotFound(err))

	n, err := admin.EmptyTrash(ctx, client.Always)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTrackerRecordsViewThroughClient(t *testing.T) {
	s := newStack(t)
	author := testutil.SeedUser(t, s.db, "author@example.com")
	lesson := testutil.SeedLesson(t, s.db, author, "Slow down")
	reader := s.clientFor(t, testutil.SeedUser(t, s.db, "reader@example.com"))
	ctx := context.Background()

	tracker := engagement.NewTracker(reader)
	tracker.Reset(lesson.ID)
	tracker.SetReadingTime(1)
	tracker.SetAuthenticated(true)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, tracker.Visible(ctx, t0))
	assert.False(t, tracker.Hidden(ctx, t0.Add(20*time.Second)))
	assert.False(t, tracker.Visible(ctx, t0.Add(time.Minute)))
	assert.True(t, tracker.Check(ctx, t0.Add(time.Minute+22*time.Second)))
	assert.False(t, tracker.Check(ctx, t0.Add(5*time.Minute)))

	var got models.Lesson
	require.NoError(t, s.db.First(&got, lesson.ID).Error)
	assert.Equal(t, 1, got.Views)
}
