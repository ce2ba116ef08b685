package models

import (
	"strings"
	"time"

	"lifelessons/backend/apperr"
)

const MaxReportDescription = 500

type ReportReason string

const (
	ReasonInappropriate  ReportReason = "inappropriate-content"
	ReasonSpam           ReportReason = "spam"
	ReasonMisinformation ReportReason = "misinformation"
	ReasonCopyright      ReportReason = "copyright"
	ReasonHarassment     ReportReason = "harassment"
	ReasonOther          ReportReason = "other"
)

var ReportReasons = []ReportReason{
	ReasonInappropriate,
	ReasonSpam,
	ReasonMisinformation,
	ReasonCopyright,
	ReasonHarassment,
	ReasonOther,
}

func (r ReportReason) Valid() bool {
	for _, v := range ReportReasons {
		if r == v {
			return true
		}
	}
	return false
}

type ReportStatus string

const (
	StatusPending   ReportStatus = "pending"
	StatusReviewing ReportStatus = "reviewing"
	StatusResolved  ReportStatus = "resolved"
	StatusRejected  ReportStatus = "rejected"
	StatusWithdrawn ReportStatus = "withdrawn"
)

var ReportStatuses = []ReportStatus{
	StatusPending,
	StatusReviewing,
	StatusResolved,
	StatusRejected,
	StatusWithdrawn,
}

func ParseReportStatus(s string) (ReportStatus, bool) {
	st := ReportStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ReportStatuses {
		if st == v {
			return st, true
		}
	}
	return "", false
}

// Open reports may still be reviewed by an admin or withdrawn by the reporter.
func (s ReportStatus) Open() bool {
	return s == StatusPending || s == StatusReviewing
}

// ReviewOutcome reports whether s is a status an admin review may set.
func (s ReportStatus) ReviewOutcome() bool {
	return s == StatusResolved || s == StatusRejected
}

type Report struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	LessonID      uint         `gorm:"not null;uniqueIndex:idx_reports_lesson_reporter" json:"lessonId"`
	ReporterEmail string       `gorm:"not null;uniqueIndex:idx_reports_lesson_reporter;index" json:"reporterEmail"`
	ReporterName  string       `json:"reporterName"`
	Reason        ReportReason `gorm:"not null;index" json:"reason"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	Status        ReportStatus `gorm:"not null;default:pending;index" json:"status"`
	AdminMessage  string       `json:"adminMessage,omitempty"`
	ReviewerName  string       `json:"reviewerName,omitempty"`
	ReviewedAt    *time.Time   `json:"reviewedAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`

	LessonTitle string `gorm:"-" json:"lessonTitle,omitempty"`
}

type ReportInput struct {
	LessonID    uint   `json:"lessonId"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// Validate checks and normalizes the input in place. The description is
// stripped of all markup before its length is measured.
func (in *ReportInput) Validate() error {
	if in.LessonID == 0 {
		return apperr.Validation("lesson_required", "lesson id is required")
	}
	reason := ReportReason(strings.TrimSpace(in.Reason))
	if reason == "" {
		return apperr.Validation("reason_required", "please select a reason")
	}
	if !reason.Valid() {
		return apperr.Validation("invalid_reason", "unknown report reason")
	}
	desc := SanitizeText(in.Description)
	n := TextLength(desc)
	if n == 0 {
		return apperr.Validation("description_required", "please describe the problem")
	}
	if n > MaxReportDescription {
		return apperr.Validation("description_too_long", "description must be at most 500 characters")
	}
	in.Reason = string(reason)
	in.Description = desc
	return nil
}

type ReportStatusCounts map[ReportStatus]int64

func NewReportStatusCounts() ReportStatusCounts {
	counts := make(ReportStatusCounts, len(ReportStatuses))
	for _, s := range ReportStatuses {
		counts[s] = 0
	}
	return counts
}

// LessonReportGroup is one row of the admin review screen.
type LessonReportGroup struct {
	LessonID     uint     `json:"lessonId"`
	LessonTitle  string   `json:"lessonTitle"`
	CreatorEmail string   `json:"creatorEmail"`
	ReportCount  int      `json:"reportCount"`
	Reports      []Report `json:"reports"`
}

type MyReports struct {
	Reports      []Report           `json:"reports"`
	StatusCounts ReportStatusCounts `json:"statusCounts"`
}

// AllReports is the admin review screen: reports grouped per lesson plus the
// same reports as one flat list.
type AllReports struct {
	Lessons []LessonReportGroup `json:"lessons"`
	Reports []Report            `json:"reports"`
	Stats   ReportStats         `json:"stats"`
}

type ReportStats struct {
	Total           int64              `json:"total"`
	ReportedLessons int                `json:"reportedLessons"`
	ByStatus        ReportStatusCounts `json:"byStatus"`
}
