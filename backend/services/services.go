// Package services holds the lesson, report and trash workflows. Every
// operation takes the caller identity explicitly and returns *apperr.Error
// values so controllers and the client agree on failure kinds.
package services

import (
	"errors"
	"time"

	"lifelessons/backend/apperr"
	"lifelessons/backend/utils"

	"gorm.io/gorm"
)

func requireUser(actor *utils.Claims) error {
	if actor == nil || actor.Email == "" {
		return apperr.Permission("unauthenticated", "login required")
	}
	return nil
}

func requireAdmin(actor *utils.Claims) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperr.Permission("admin_required", "admin access required")
	}
	return nil
}

func displayName(actor *utils.Claims) string {
	if actor.Name != "" {
		return actor.Name
	}
	return actor.Email
}

// dbError maps gorm errors onto the error taxonomy.
func dbError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(what+"_not_found", what+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict("duplicate_"+what, what+" already exists")
	default:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Internal(err)
	}
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
