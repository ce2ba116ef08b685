package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Name         string         `gorm:"not null" json:"name"`
	PhotoURL     string         `json:"photoURL,omitempty"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         string         `gorm:"default:user;not null" json:"role"` // user, admin
	IsPremium    bool           `gorm:"default:false" json:"isPremium"`
	PremiumSince *time.Time     `json:"premiumSince,omitempty"`
	PaymentRef   string         `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
