package models

import (
	"time"

	"gorm.io/gorm"
)

type Category string

const (
	CategoryPersonalGrowth Category = "personal-growth"
	CategoryCareer         Category = "career"
	CategoryRelationships  Category = "relationships"
	CategoryMindset        Category = "mindset"
	CategoryMistakes       Category = "mistakes-learned"
)

var Categories = []Category{
	CategoryPersonalGrowth,
	CategoryCareer,
	CategoryRelationships,
	CategoryMindset,
	CategoryMistakes,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type EmotionalTone string

const (
	ToneMotivational EmotionalTone = "motivational"
	ToneSad          EmotionalTone = "sad"
	ToneRealization  EmotionalTone = "realization"
	ToneGratitude    EmotionalTone = "gratitude"
)

var EmotionalTones = []EmotionalTone{ToneMotivational, ToneSad, ToneRealization, ToneGratitude}

func (t EmotionalTone) Valid() bool {
	for _, v := range EmotionalTones {
		if t == v {
			return true
		}
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

type AccessLevel string

const (
	AccessFree    AccessLevel = "free"
	AccessPremium AccessLevel = "premium"
)

func (a AccessLevel) Valid() bool {
	return a == AccessFree || a == AccessPremium
}

type Lesson struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"not null" json:"title"`
	Description    string         `gorm:"type:text;not null" json:"description"`
	Category       Category       `gorm:"index;not null" json:"category"`
	EmotionalTone  EmotionalTone  `gorm:"index;not null" json:"emotionalTone"`
	Image          string         `json:"image,omitempty"`
	Visibility     Visibility     `gorm:"index;not null;default:public" json:"visibility"`
	AccessLevel    AccessLevel    `gorm:"not null;default:free" json:"accessLevel"`
	CreatorID      uint           `gorm:"index" json:"creatorId"`
	CreatorEmail   string         `gorm:"index;not null" json:"creatorEmail"`
	CreatorName    string         `json:"creatorName"`
	CreatorPhoto   string         `json:"creatorPhoto,omitempty"`
	LikesCount     int            `gorm:"default:0" json:"likesCount"`
	FavoritesCount int            `gorm:"default:0" json:"favoritesCount"`
	Views          int            `gorm:"default:0" json:"views"`
	IsFeatured     bool           `gorm:"default:false" json:"isFeatured"`
	IsReviewed     bool           `gorm:"default:false" json:"isReviewed"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// LessonLike and LessonFavorite hold the per-user membership sets behind
// Lesson.LikesCount and Lesson.FavoritesCount.
type LessonLike struct {
	ID        uint      `gorm:"primaryKey"`
	LessonID  uint      `gorm:"not null;uniqueIndex:idx_lesson_likes_member"`
	UserEmail string    `gorm:"not null;uniqueIndex:idx_lesson_likes_member"`
	CreatedAt time.Time
}

type LessonFavorite struct {
	ID        uint      `gorm:"primaryKey"`
	LessonID  uint      `gorm:"not null;uniqueIndex:idx_lesson_favorites_member"`
	UserEmail string    `gorm:"not null;uniqueIndex:idx_lesson_favorites_member"`
	CreatedAt time.Time
}
