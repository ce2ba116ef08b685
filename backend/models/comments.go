package models

import "gorm.io/gorm"

const MaxCommentLength = 1000

type LessonComment struct {
	gorm.Model
	LessonID  uint   `gorm:"index;not null" json:"lessonId"`
	UserEmail string `gorm:"not null" json:"userEmail"`
	UserName  string `json:"userName"`
	UserPhoto string `json:"userPhoto,omitempty"`
	Text      string `gorm:"type:text;not null" json:"text"`
}
