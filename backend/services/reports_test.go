package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"lifelessons/backend/apperr"
	"lifelessons/backend/models"
	"lifelessons/backend/testutil"
	"lifelessons/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type reportFixture struct {
	db       *gorm.DB
	svc      *ReportService
	admin    *utils.Claims
	author   *models.User
	reporter *utils.Claims
	other    *utils.Claims
	lesson   *models.Lesson
}

func newReportFixture(t *testing.T) *reportFixture {
	db := testutil.NewDB(t)
	author := testutil.SeedUser(t, db, "author@example.com")
	f := &reportFixture{
		db:       db,
		svc:      NewReportService(db, utils.NopLogger()),
		admin:    testutil.Claims(testutil.SeedUser(t, db, "admin@example.com", testutil.Admin())),
		author:   author,
		reporter: testutil.Claims(testutil.SeedUser(t, db, "reader@example.com")),
		other:    testutil.Claims(testutil.SeedUser(t, db, "other@example.com")),
		lesson:   testutil.SeedLesson(t, db, author, "Quitting my job"),
	}
	return f
}

func (f *reportFixture) submit(t *testing.T, who *utils.Claims, lessonID uint) *models.Report {
	t.Helper()
	r, err := f.svc.Submit(context.Background(), who, models.ReportInput{
		LessonID:    lessonID,
		Reason:      string(models.ReasonSpam),
		Description: "this is an advert",
	})
	require.NoError(t, err)
	return r
}

func TestSubmitReportCreatesPending(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	r, err := f.svc.Submit(ctx, f.reporter, models.ReportInput{
		LessonID:    f.lesson.ID,
		Reason:      "spam",
		Description: "  <b>buy</b> my course <script>alert(1)</script> ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, "buy my course", r.Description)
	assert.Equal(t, f.reporter.Email, r.ReporterEmail)
	assert.Equal(t, "Quitting my job", r.LessonTitle)

	mine, err := f.svc.ListMine(ctx, f.reporter, "")
	require.NoError(t, err)
	require.Len(t, mine.Reports, 1)
	assert.Equal(t, r.ID, mine.Reports[0].ID)
	assert.Equal(t, int64(1), mine.StatusCounts[models.StatusPending])
	assert.Equal(t, int64(0), mine.StatusCounts[models.StatusResolved])
}

func TestSubmitReportRejections(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	owner := testutil.Claims(f.author)

	cases := []struct {
		name  string
		actor *utils.Claims
		in    models.ReportInput
		check func(error) bool
		code  string
	}{
		{"anonymous", nil, models.ReportInput{LessonID: f.lesson.ID, Reason: "spam", Description: "x"}, apperr.IsPermission, "unauthenticated"},
		{"missing reason", f.reporter, models.ReportInput{LessonID: f.lesson.ID, Description: "x"}, apperr.IsValidation, "reason_required"},
		{"unknown reason", f.reporter, models.ReportInput{LessonID: f.lesson.ID, Reason: "boring", Description: "x"}, apperr.IsValidation, "invalid_reason"},
		{"markup only", f.reporter, models.ReportInput{LessonID: f.lesson.ID, Reason: "spam", Description: "<img src=x>"}, apperr.IsValidation, "description_required"},
		{"too long", f.reporter, models.ReportInput{LessonID: f.lesson.ID, Reason: "spam", Description: strings.Repeat("a", 501)}, apperr.IsValidation, "description_too_long"},
		{"missing lesson", f.reporter, models.ReportInput{LessonID: 9999, Reason: "spam", Description: "x"}, apperr.IsNotFound, "lesson_not_found"},
		{"own lesson", owner, models.ReportInput{LessonID: f.lesson.ID, Reason: "spam", Description: "x"}, apperr.IsPermission, "own_lesson"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.actor, tc.in)
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected kind %s", apperr.KindOf(err))
			assert.Equal(t, tc.code, apperr.CodeOf(err))
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Report{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSubmitReportAcceptsExactlyFiveHundredChars(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.svc.Submit(context.Background(), f.reporter, models.ReportInput{
		LessonID:    f.lesson.ID,
		Reason:      "other",
		Description: strings.Repeat("é", 500),
	})
	assert.NoError(t, err)
}

func TestSubmitReportDuplicateIsConflict(t *testing.T) {
	f := newReportFixture(t)
	f.submit(t, f.reporter, f.lesson.ID)

	_, err := f.svc.Submit(context.Background(), f.reporter, models.ReportInput{
		LessonID:    f.lesson.ID,
		Reason:      "harassment",
		Description: "second try",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "duplicate_report", apperr.CodeOf(err))

	// a different reporter may still report the same lesson
	f.submit(t, f.other, f.lesson.ID)
}

func TestWithdrawReport(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	r := f.submit(t, f.reporter, f.lesson.ID)

	_, err := f.svc.Withdraw(ctx, f.other, r.ID)
	assert.True(t, apperr.IsPermission(err))

	got, err := f.svc.Withdraw(ctx, f.reporter, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, got.Status)

	_, err = f.svc.Withdraw(ctx, f.reporter, r.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "invalid_state", apperr.CodeOf(err))

	_, err = f.svc.Withdraw(ctx, f.reporter, 4242)
	assert.True(t, apperr.IsNotFound(err))
}

func TestWithdrawAfterReviewIsConflict(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	r := f.submit(t, f.reporter, f.lesson.ID)

	_, err := f.svc.Review(ctx, f.admin, r.ID, "rejected", "")
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, f.reporter, r.ID)
	assert.True(t, apperr.IsConflict(err))
}

func TestReviewReport(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.clock = func() time.Time { return fixed }
	r := f.submit(t, f.reporter, f.lesson.ID)

	_, err := f.svc.Review(ctx, f.reporter, r.ID, "resolved", "")
	assert.True(t, apperr.IsPermission(err))

	for _, bad := range []string{"pending", "reviewing", "withdrawn", "closed"} {
		_, err := f.svc.Review(ctx, f.admin, r.ID, bad, "")
		assert.True(t, apperr.IsValidation(err), bad)
	}

	got, err := f.svc.Review(ctx, f.admin, r.ID, "resolved", "Removed the <i>link</i>")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, "Removed the link", got.AdminMessage)
	assert.NotEmpty(t, got.ReviewerName)
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, fixed.Equal(*got.ReviewedAt))

	_, err = f.svc.Review(ctx, f.admin, r.ID, "rejected", "")
	assert.True(t, apperr.IsConflict(err))

	mine, err := f.svc.ListMine(ctx, f.reporter, "resolved")
	require.NoError(t, err)
	require.Len(t, mine.Reports, 1)
	assert.Equal(t, "Removed the link", mine.Reports[0].AdminMessage)
}

func TestMarkReviewingThenReview(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	r := f.submit(t, f.reporter, f.lesson.ID)

	got, err := f.svc.MarkReviewing(ctx, f.admin, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, got.Status)

	_, err = f.svc.MarkReviewing(ctx, f.admin, r.ID)
	assert.True(t, apperr.IsConflict(err))

	got, err = f.svc.Review(ctx, f.admin, r.ID, "rejected", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestListMineStatusFilter(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	second := testutil.SeedLesson(t, f.db, f.author, "Second lesson")
	r1 := f.submit(t, f.reporter, f.lesson.ID)
	f.submit(t, f.reporter, second.ID)
	_, err := f.svc.Withdraw(ctx, f.reporter, r1.ID)
	require.NoError(t, err)

	all, err := f.svc.ListMine(ctx, f.reporter, "all")
	require.NoError(t, err)
	assert.Len(t, all.Reports, 2)
	assert.Equal(t, int64(1), all.StatusCounts[models.StatusPending])
	assert.Equal(t, int64(1), all.StatusCounts[models.StatusWithdrawn])

	pending, err := f.svc.ListMine(ctx, f.reporter, "pending")
	require.NoError(t, err)
	require.Len(t, pending.Reports, 1)
	assert.Equal(t, "Second lesson", pending.Reports[0].LessonTitle)

	_, err = f.svc.ListMine(ctx, f.reporter, "bogus")
	assert.True(t, apperr.IsValidation(err))
}

func TestListAllGroupsByLesson(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	quiet := testutil.SeedLesson(t, f.db, f.author, "Quiet lesson")
	third := testutil.Claims(testutil.SeedUser(t, f.db, "third@example.com"))

	f.submit(t, f.reporter, quiet.ID)
	f.submit(t, f.reporter, f.lesson.ID)
	f.submit(t, f.other, f.lesson.ID)
	f.submit(t, third, f.lesson.ID)

	_, err := f.svc.ListAll(ctx, f.reporter, "")
	assert.True(t, apperr.IsPermission(err))

	all, err := f.svc.ListAll(ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, all.Lessons, 2)
	assert.Equal(t, f.lesson.ID, all.Lessons[0].LessonID)
	assert.Equal(t, 3, all.Lessons[0].ReportCount)
	assert.Len(t, all.Lessons[0].Reports, 3)
	assert.Equal(t, quiet.ID, all.Lessons[1].LessonID)
	assert.Equal(t, 1, all.Lessons[1].ReportCount)
	assert.Equal(t, int64(4), all.Stats.Total)
	assert.Equal(t, 2, all.Stats.ReportedLessons)
	assert.Equal(t, int64(4), all.Stats.ByStatus[models.StatusPending])

	// trashed lessons drop out of the grouping
	trash := NewTrashService(f.db, utils.NopLogger(), nil, 0)
	_, err = trash.SoftDelete(ctx, f.admin, models.TrashLesson, f.lesson.ID)
	require.NoError(t, err)

	all, err = f.svc.ListAll(ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, all.Lessons, 1)
	assert.Equal(t, quiet.ID, all.Lessons[0].LessonID)
	assert.Equal(t, int64(1), all.Stats.Total)

	// the reporter still sees their report, with the lesson title
	mine, err := f.svc.ListMine(ctx, f.other, "")
	require.NoError(t, err)
	require.Len(t, mine.Reports, 1)
	assert.Equal(t, "Quitting my job", mine.Reports[0].LessonTitle)
}

func TestDismissLessonReports(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	r1 := f.submit(t, f.reporter, f.lesson.ID)
	f.submit(t, f.other, f.lesson.ID)
	_, err := f.svc.Withdraw(ctx, f.reporter, r1.ID)
	require.NoError(t, err)

	n, err := f.svc.DismissLessonReports(ctx, f.admin, f.lesson.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := f.svc.ListAll(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.Stats.ByStatus[models.StatusResolved])
	assert.Equal(t, int64(1), all.Stats.ByStatus[models.StatusWithdrawn])
	assert.Equal(t, int64(0), all.Stats.ByStatus[models.StatusPending])
}
