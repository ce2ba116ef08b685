package services

import (
	"context"
	"errors"
	"strings"

	"lifelessons/backend/apperr"
	"lifelessons/backend/engagement"
	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 9
	MaxPageSize     = 50
	maxTitleLength  = 150
)

type LessonService struct {
	DB  *gorm.DB
	Log *utils.Logger
}

func NewLessonService(db *gorm.DB, log *utils.Logger) *LessonService {
	return &LessonService{DB: db, Log: log}
}

type LessonInput struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	EmotionalTone string `json:"emotionalTone"`
	Image         string `json:"image"`
	Visibility    string `json:"visibility"`
	AccessLevel   string `json:"accessLevel"`
}

// LessonUpdate carries only the fields the owner changed.
type LessonUpdate struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Category      *string `json:"category"`
	EmotionalTone *string `json:"emotionalTone"`
	Image         *string `json:"image"`
	Visibility    *string `json:"visibility"`
	AccessLevel   *string `json:"accessLevel"`
}

type FeedQuery struct {
	Category string
	Tone     string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

// LessonView is a lesson as one particular viewer sees it.
type LessonView struct {
	models.Lesson
	ReadingTime int  `json:"readingTime"`
	Locked      bool `json:"locked"`
	Liked       bool `json:"liked"`
	Favorited   bool `json:"favorited"`
}

type FeedPage struct {
	Lessons []LessonView
	Total   int64
	Page    int
	Limit   int
}

func (s *LessonService) Create(ctx context.Context, actor *utils.Claims, in LessonInput) (*models.Lesson, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	lesson := models.Lesson{
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Category:      models.Category(in.Category),
		EmotionalTone: models.EmotionalTone(in.EmotionalTone),
		Image:         strings.TrimSpace(in.Image),
		Visibility:    models.Visibility(in.Visibility),
		AccessLevel:   models.AccessLevel(in.AccessLevel),
	}
	if lesson.Visibility == "" {
		lesson.Visibility = models.VisibilityPublic
	}
	if lesson.AccessLevel == "" {
		lesson.AccessLevel = models.AccessFree
	}
	if err := validateLesson(&lesson); err != nil {
		return nil, err
	}

	author, err := s.loadUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	if lesson.AccessLevel == models.AccessPremium && !author.IsPremium && !author.IsAdmin() {
		return nil, apperr.Permission("premium_required", "only premium members can publish premium lessons")
	}
	lesson.CreatorID = author.ID
	lesson.CreatorEmail = author.Email
	lesson.CreatorName = author.Name
	lesson.CreatorPhoto = author.PhotoURL

	if err := s.DB.WithContext(ctx).Create(&lesson).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	s.Log.Info("lesson created", "lesson_id", lesson.ID, "category", lesson.Category)
	return &lesson, nil
}

func validateLesson(l *models.Lesson) error {
	switch {
	case l.Title == "":
		return apperr.Validation("title_required", "title is required")
	case len([]rune(l.Title)) > maxTitleLength:
		return apperr.Validation("title_too_long", "title must be at most 150 characters")
	case l.Description == "":
		return apperr.Validation("description_required", "description is required")
	case !l.Category.Valid():
		return apperr.Validation("invalid_category", "unknown category")
	case !l.EmotionalTone.Valid():
		return apperr.Validation("invalid_tone", "unknown emotional tone")
	case !l.Visibility.Valid():
		return apperr.Validation("invalid_visibility", "visibility must be public or private")
	case !l.AccessLevel.Valid():
		return apperr.Validation("invalid_access_level", "access level must be free or premium")
	}
	return nil
}

// Feed lists public lessons. Premium lessons are included but locked for
// viewers without a premium membership.
func (s *LessonService) Feed(ctx context.Context, viewer *utils.Claims, q FeedQuery) (*FeedPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}

	query := s.DB.WithContext(ctx).Model(&models.Lesson{}).
		Where("visibility = ?", models.VisibilityPublic)

	if q.Category != "" {
		if !models.Category(q.Category).Valid() {
			return nil, apperr.Validation("invalid_category", "unknown category")
		}
		query = query.Where("category = ?", q.Category)
	}
	if q.Tone != "" {
		if !models.EmotionalTone(q.Tone).Valid() {
			return nil, apperr.Validation("invalid_tone", "unknown emotional tone")
		}
		query = query.Where("emotional_tone = ?", q.Tone)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, dbError(err, "lesson")
	}

	switch q.Sort {
	case "oldest":
		query = query.Order("created_at ASC").Order("id ASC")
	case "most-liked":
		query = query.Order("likes_count DESC").Order("created_at DESC")
	case "most-saved":
		query = query.Order("favorites_count DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC").Order("id DESC")
	}

	var lessons []models.Lesson
	if err := query.Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&lessons).Error; err != nil {
		return nil, dbError(err, "lesson")
	}

	views, err := s.views(ctx, viewer, lessons)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Lessons: views, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *LessonService) Get(ctx context.Context, viewer *utils.Claims, id uint) (*LessonView, error) {
	var lesson models.Lesson
	if err := s.DB.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	if lesson.Visibility == models.VisibilityPrivate && !canManage(viewer, &lesson) {
		return nil, apperr.Permission("private_lesson", "this lesson is private")
	}
	views, err := s.views(ctx, viewer, []models.Lesson{lesson})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *LessonService) Mine(ctx context.Context, actor *utils.Claims) ([]models.Lesson, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	var lessons []models.Lesson
	err := s.DB.WithContext(ctx).
		Where("creator_email = ?", actor.Email).
		Order("created_at DESC").
		Find(&lessons).Error
	if err != nil {
		return nil, dbError(err, "lesson")
	}
	return lessons, nil
}

func (s *LessonService) Update(ctx context.Context, actor *utils.Claims, id uint, in LessonUpdate) (*models.Lesson, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	var lesson models.Lesson
	if err := s.DB.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	if lesson.CreatorEmail != actor.Email {
		return nil, apperr.Permission("not_owner", "only the author can edit this lesson")
	}

	if in.Title != nil {
		lesson.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		lesson.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		lesson.Category = models.Category(*in.Category)
	}
	if in.EmotionalTone != nil {
		lesson.EmotionalTone = models.EmotionalTone(*in.EmotionalTone)
	}
	if in.Image != nil {
		lesson.Image = strings.TrimSpace(*in.Image)
	}
	if in.Visibility != nil {
		lesson.Visibility = models.Visibility(*in.Visibility)
	}
	if in.AccessLevel != nil {
		lesson.AccessLevel = models.AccessLevel(*in.AccessLevel)
	}
	if err := validateLesson(&lesson); err != nil {
		return nil, err
	}
	if in.AccessLevel != nil && lesson.AccessLevel == models.AccessPremium {
		author, err := s.loadUser(ctx, actor)
		if err != nil {
			return nil, err
		}
		if !author.IsPremium && !author.IsAdmin() {
			return nil, apperr.Permission("premium_required", "only premium members can publish premium lessons")
		}
	}

	if err := s.DB.WithContext(ctx).Save(&lesson).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	return &lesson, nil
}

// SetFlags lets an admin feature a lesson or mark it reviewed.
func (s *LessonService) SetFlags(ctx context.Context, actor *utils.Claims, id uint, featured, reviewed *bool) (*models.Lesson, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var lesson models.Lesson
	if err := s.DB.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	updates := map[string]interface{}{}
	if featured != nil {
		updates["is_featured"] = *featured
	}
	if reviewed != nil {
		updates["is_reviewed"] = *reviewed
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("nothing_to_update", "set isFeatured or isReviewed")
	}
	if err := s.DB.WithContext(ctx).Model(&lesson).Updates(updates).Error; err != nil {
		return nil, dbError(err, "lesson")
	}
	return &lesson, nil
}

// ToggleLike adds or removes the caller from the lesson's like set and
// returns the new membership and count.
func (s *LessonService) ToggleLike(ctx context.Context, actor *utils.Claims, id uint) (bool, int, error) {
	return s.toggle(ctx, actor, id, likeSet)
}

func (s *LessonService) ToggleFavorite(ctx context.Context, actor *utils.Claims, id uint) (bool, int, error) {
	return s.toggle(ctx, actor, id, favoriteSet)
}

type memberSet struct {
	table   string
	counter string
	model   interface{}
	row     func(lessonID uint, email string) interface{}
}

var (
	likeSet = memberSet{
		table:   "lesson_likes",
		counter: "likes_count",
		model:   &models.LessonLike{},
		row: func(lessonID uint, email string) interface{} {
			return &models.LessonLike{LessonID: lessonID, UserEmail: email}
		},
	}
	favoriteSet = memberSet{
		table:   "lesson_favorites",
		counter: "favorites_count",
		model:   &models.LessonFavorite{},
		row: func(lessonID uint, email string) interface{} {
			return &models.LessonFavorite{LessonID: lessonID, UserEmail: email}
		},
	}
)

func (s *LessonService) toggle(ctx context.Context, actor *utils.Claims, id uint, set memberSet) (bool, int, error) {
	if err := requireUser(actor); err != nil {
		return false, 0, err
	}
	var active bool
	var count int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lesson models.Lesson
		if err := tx.First(&lesson, id).Error; err != nil {
			return dbError(err, "lesson")
		}

		res := tx.Where("lesson_id = ? AND user_email = ?", id, actor.Email).Delete(set.model)
		if res.Error != nil {
			return res.Error
		}
		delta := " - 1"
		if res.RowsAffected == 0 {
			if err := tx.Create(set.row(id, actor.Email)).Error; err != nil {
				return err
			}
			delta = " + 1"
			active = true
		}
		if err := tx.Model(&models.Lesson{}).Where("id = ?", id).
			UpdateColumn(set.counter, gorm.Expr(set.counter+delta)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Lesson{}).Select(set.counter).Where("id = ?", id).Scan(&count).Error
	})
	if err != nil {
		return false, 0, dbError(err, "lesson")
	}
	return active, count, nil
}

func (s *LessonService) Favorites(ctx context.Context, actor *utils.Claims) ([]models.Lesson, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	var lessons []models.Lesson
	err := s.DB.WithContext(ctx).
		Joins("JOIN lesson_favorites ON lesson_favorites.lesson_id = lessons.id").
		Where("lesson_favorites.user_email = ?", actor.Email).
		Order("lesson_favorites.created_at DESC").
		Find(&lessons).Error
	if err != nil {
		return nil, dbError(err, "lesson")
	}
	return lessons, nil
}

// RecordView counts one engaged view and returns the new total.
func (s *LessonService) RecordView(ctx context.Context, actor *utils.Claims, id uint) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	db := s.DB.WithContext(ctx)
	res := db.Model(&models.Lesson{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return 0, dbError(res.Error, "lesson")
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("lesson_not_found", "lesson not found")
	}
	var views int
	if err := db.Model(&models.Lesson{}).Select("views").Where("id = ?", id).Scan(&views).Error; err != nil {
		return 0, dbError(err, "lesson")
	}
	return views, nil
}

func (s *LessonService) views(ctx context.Context, viewer *utils.Claims, lessons []models.Lesson) ([]LessonView, error) {
	out := make([]LessonView, 0, len(lessons))
	if len(lessons) == 0 {
		return out, nil
	}

	premium := false
	liked := map[uint]bool{}
	favorited := map[uint]bool{}
	if viewer != nil && viewer.Email != "" {
		user, err := s.loadUser(ctx, viewer)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
		premium = user != nil && (user.IsPremium || user.IsAdmin())

		ids := make([]uint, len(lessons))
		for i, l := range lessons {
			ids[i] = l.ID
		}
		if err := s.members(ctx, likeSet, viewer.Email, ids, liked); err != nil {
			return nil, err
		}
		if err := s.members(ctx, favoriteSet, viewer.Email, ids, favorited); err != nil {
			return nil, err
		}
	}

	for _, l := range lessons {
		v := LessonView{
			Lesson:      l,
			ReadingTime: engagement.ReadingTimeMinutes(l.Description),
			Liked:       liked[l.ID],
			Favorited:   favorited[l.ID],
		}
		if l.AccessLevel == models.AccessPremium && !premium && !canManage(viewer, &l) {
			v.Locked = true
			v.Description = ""
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *LessonService) members(ctx context.Context, set memberSet, email string, ids []uint, into map[uint]bool) error {
	var hits []uint
	err := s.DB.WithContext(ctx).Table(set.table).
		Where("user_email = ? AND lesson_id IN ?", email, ids).
		Pluck("lesson_id", &hits).Error
	if err != nil {
		return dbError(err, "lesson")
	}
	for _, id := range hits {
		into[id] = true
	}
	return nil
}

func (s *LessonService) loadUser(ctx context.Context, actor *utils.Claims) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", actor.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

func canManage(viewer *utils.Claims, l *models.Lesson) bool {
	if viewer == nil {
		return false
	}
	return viewer.IsAdmin() || viewer.Email == l.CreatorEmail
}
