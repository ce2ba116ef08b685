package models

// PlatformAnalytics is computed on demand for the admin dashboard; it is not persisted.
type PlatformAnalytics struct {
	TotalUsers        int64            `json:"totalUsers"`
	PremiumUsers      int64            `json:"premiumUsers"`
	TotalLessons      int64            `json:"totalLessons"`
	PublicLessons     int64            `json:"publicLessons"`
	PendingReports    int64            `json:"pendingReports"`
	TrashItems        int64            `json:"trashItems"`
	LessonsByCategory map[string]int64 `json:"lessonsByCategory"`
}

type CategoryCount struct {
	Category string
	Count    int64
}
