package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lifelessons/backend/apperr"
	"lifelessons/backend/models"
	"lifelessons/backend/utils"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultTrashRetention = 30 * 24 * time.Hour

	restoreLockTTL = 30 * time.Second
	purgeLockTTL   = 5 * time.Minute
	purgeBatchSize = 100
)

type TrashService struct {
	DB        *gorm.DB
	Log       *utils.Logger
	Locker    Locker
	Retention time.Duration

	purge singleflight.Group
	clock clock
}

func NewTrashService(db *gorm.DB, log *utils.Logger, locker Locker, retention time.Duration) *TrashService {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if retention <= 0 {
		retention = DefaultTrashRetention
	}
	return &TrashService{DB: db, Log: log, Locker: locker, Retention: retention}
}

// SoftDelete moves a live lesson or profile into the trash. Lessons may be
// trashed by their author or an admin, profiles only by an admin.
func (s *TrashService) SoftDelete(ctx context.Context, actor *utils.Claims, itemType models.TrashItemType, id uint) (*models.TrashItem, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if !itemType.Valid() {
		return nil, apperr.Validation("invalid_item_type", "item type must be lesson or profile")
	}

	var item *models.TrashItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch itemType {
		case models.TrashLesson:
			item, err = s.trashLesson(tx, actor, id)
		case models.TrashProfile:
			item, err = s.trashProfile(tx, actor, id)
		}
		if err != nil {
			return err
		}
		item.ID = ulid.Make().String()
		item.DeletedBy = actor.Email
		item.CreatedAt = s.clock.now()
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, dbError(err, string(itemType))
	}
	s.Log.Info("moved to trash", "item_type", item.ItemType, "item_id", item.ItemID, "trash_id", item.ID)
	return item, nil
}

func (s *TrashService) trashLesson(tx *gorm.DB, actor *utils.Claims, id uint) (*models.TrashItem, error) {
	var lesson models.Lesson
	if err := tx.First(&lesson, id).Error; err != nil {
		return nil, err
	}
	if !canManage(actor, &lesson) {
		return nil, apperr.Permission("not_owner", "only the author or an admin can delete this lesson")
	}
	data, err := snapshot(lesson)
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(&lesson).Error; err != nil {
		return nil, err
	}
	return &models.TrashItem{
		ItemType:  models.TrashLesson,
		ItemID:    lesson.ID,
		ItemTitle: lesson.Title,
		ItemData:  data,
		ItemOwner: lesson.CreatorEmail,
	}, nil
}

func (s *TrashService) trashProfile(tx *gorm.DB, actor *utils.Claims, id uint) (*models.TrashItem, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Permission("admin_required", "admin access required")
	}
	var user models.User
	if err := tx.First(&user, id).Error; err != nil {
		return nil, err
	}
	if user.Email == actor.Email {
		return nil, apperr.Permission("self_delete", "admins cannot delete their own profile")
	}
	data, err := snapshot(user)
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(&user).Error; err != nil {
		return nil, err
	}
	return &models.TrashItem{
		ItemType:  models.TrashProfile,
		ItemID:    user.ID,
		ItemTitle: user.Name,
		ItemData:  data,
		ItemOwner: user.Email,
	}, nil
}

func snapshot(v interface{}) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func (s *TrashService) List(ctx context.Context, actor *utils.Claims, itemType string) (*models.TrashList, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	query := db.Order("created_at DESC").Order("id DESC")
	if itemType != "" && itemType != "all" {
		t := models.TrashItemType(itemType)
		if !t.Valid() {
			return nil, apperr.Validation("invalid_item_type", "item type must be lesson or profile")
		}
		query = query.Where("item_type = ?", t)
	}
	var items []models.TrashItem
	if err := query.Find(&items).Error; err != nil {
		return nil, dbError(err, "trash_item")
	}

	var rows []struct {
		ItemType models.TrashItemType
		Count    int64
	}
	if err := db.Model(&models.TrashItem{}).Select("item_type, COUNT(*) AS count").Group("item_type").Scan(&rows).Error; err != nil {
		return nil, dbError(err, "trash_item")
	}
	var counts models.TrashCounts
	for _, r := range rows {
		counts.Total += r.Count
		switch r.ItemType {
		case models.TrashLesson:
			counts.Lesson = r.Count
		case models.TrashProfile:
			counts.Profile = r.Count
		}
	}
	return &models.TrashList{Items: items, Counts: counts}, nil
}

// Restore brings the entity back under its original id and drops the trash
// item. A failed restore leaves the item in place so it can be retried.
func (s *TrashService) Restore(ctx context.Context, actor *utils.Claims, trashID string) (*models.TrashItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	unlock, err := s.lockItem(ctx, trashID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var item models.TrashItem
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", trashID).Error; err != nil {
			return err
		}
		switch item.ItemType {
		case models.TrashLesson:
			if err := revive(tx, &models.Lesson{}, item); err != nil {
				return err
			}
		case models.TrashProfile:
			if err := revive(tx, &models.User{}, item); err != nil {
				return err
			}
		default:
			return apperr.Internal(fmt.Errorf("unknown trash item type %q", item.ItemType))
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return nil, dbError(err, "trash_item")
	}
	s.Log.Info("restored from trash", "item_type", item.ItemType, "item_id", item.ItemID, "trash_id", item.ID)
	return &item, nil
}

// revive clears deleted_at on the soft-deleted row, or recreates the row
// from the snapshot when it no longer exists.
func revive(tx *gorm.DB, dest interface{}, item models.TrashItem) error {
	res := tx.Unscoped().Model(dest).Where("id = ?", item.ItemID).Update("deleted_at", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if err := json.Unmarshal(item.ItemData, dest); err != nil {
		return apperr.Internal(fmt.Errorf("decode %s snapshot %s: %w", item.ItemType, item.ID, err))
	}
	return tx.Create(dest).Error
}

// PermanentlyDelete removes the trash item and the row behind it for good.
func (s *TrashService) PermanentlyDelete(ctx context.Context, actor *utils.Claims, trashID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	unlock, err := s.lockItem(ctx, trashID)
	if err != nil {
		return err
	}
	defer unlock()

	var item models.TrashItem
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", trashID).Error; err != nil {
			return err
		}
		return purgeItem(tx, item)
	})
	if err != nil {
		return dbError(err, "trash_item")
	}
	s.Log.Info("permanently deleted", "item_type", item.ItemType, "item_id", item.ItemID, "trash_id", item.ID)
	return nil
}

func purgeItem(tx *gorm.DB, item models.TrashItem) error {
	switch item.ItemType {
	case models.TrashLesson:
		for _, model := range []interface{}{&models.LessonLike{}, &models.LessonFavorite{}, &models.LessonComment{}} {
			if err := tx.Unscoped().Where("lesson_id = ?", item.ItemID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Delete(&models.Lesson{}, item.ItemID).Error; err != nil {
			return err
		}
	case models.TrashProfile:
		if err := tx.Unscoped().Delete(&models.User{}, item.ItemID).Error; err != nil {
			return err
		}
	}
	return tx.Delete(&models.TrashItem{}, "id = ?", item.ID).Error
}

func (s *TrashService) lockItem(ctx context.Context, trashID string) (func(), error) {
	unlock, ok, err := s.Locker.TryLock(ctx, "trash:"+trashID, restoreLockTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.Conflict("in_progress", "this item is already being processed")
	}
	return unlock, nil
}

// EmptyTrash purges every item older than the retention window. Concurrent
// callers in this process share one run; other instances are kept out by
// the purge lock.
func (s *TrashService) EmptyTrash(ctx context.Context, actor *utils.Claims) (int64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	return s.PurgeExpired(ctx)
}

// PurgeExpired is EmptyTrash without the caller check, for the sweeper.
func (s *TrashService) PurgeExpired(ctx context.Context) (int64, error) {
	v, err, shared := s.purge.Do("purge", func() (interface{}, error) {
		return s.purgeExpired(ctx)
	})
	if err != nil {
		return 0, err
	}
	n := v.(int64)
	if shared {
		s.Log.Debug("trash purge shared with a concurrent caller", "deleted", n)
	}
	return n, nil
}

func (s *TrashService) purgeExpired(ctx context.Context) (int64, error) {
	unlock, ok, err := s.Locker.TryLock(ctx, "trash:purge", purgeLockTTL)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if !ok {
		return 0, apperr.Conflict("in_progress", "trash is already being emptied")
	}
	defer unlock()

	cutoff := s.clock.now().Add(-s.Retention)
	var total int64
	for {
		var items []models.TrashItem
		err := s.DB.WithContext(ctx).
			Where("created_at < ?", cutoff).
			Order("created_at ASC").
			Limit(purgeBatchSize).
			Find(&items).Error
		if err != nil {
			return total, dbError(err, "trash_item")
		}
		if len(items) == 0 {
			break
		}
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, item := range items {
				if err := purgeItem(tx, item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, dbError(err, "trash_item")
		}
		total += int64(len(items))
		if len(items) < purgeBatchSize {
			break
		}
	}
	if total > 0 {
		s.Log.Info("trash emptied", "deleted", total, "cutoff", cutoff)
	}
	return total, nil
}

// IsPurgeBusy reports whether err only means another purge was running.
func IsPurgeBusy(err error) bool {
	return apperr.IsConflict(err) && apperr.CodeOf(err) == "in_progress"
}
