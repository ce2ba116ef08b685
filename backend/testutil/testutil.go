// Package testutil sets up throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const Password = "password123"

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:lifelessons_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, utils.Migrate(db))
	return db
}

type UserOption func(*models.User)

func Admin() UserOption {
	return func(u *models.User) { u.Role = models.RoleAdmin }
}

func Premium() UserOption {
	return func(u *models.User) { u.IsPremium = true }
}

// SeedUser creates a user whose password is Password.
func SeedUser(t testing.TB, db *gorm.DB, email string, opts ...UserOption) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Email:        email,
		Name:         "User " + email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

type LessonOption func(*models.Lesson)

func Private() LessonOption {
	return func(l *models.Lesson) { l.Visibility = models.VisibilityPrivate }
}

func PremiumLesson() LessonOption {
	return func(l *models.Lesson) { l.AccessLevel = models.AccessPremium }
}

func SeedLesson(t testing.TB, db *gorm.DB, owner *models.User, title string, opts ...LessonOption) *models.Lesson {
	t.Helper()
	l := &models.Lesson{
		Title:         title,
		Description:   "What I learned from " + title,
		Category:      models.CategoryCareer,
		EmotionalTone: models.ToneRealization,
		Visibility:    models.VisibilityPublic,
		AccessLevel:   models.AccessFree,
		CreatorID:     owner.ID,
		CreatorEmail:  owner.Email,
		CreatorName:   owner.Name,
	}
	for _, opt := range opts {
		opt(l)
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

// Claims is the verified identity of u, as the auth middleware would see it.
func Claims(u *models.User) *utils.Claims {
	return &utils.Claims{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}
