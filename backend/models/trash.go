package models

import (
	"time"

	"gorm.io/datatypes"
)

type TrashItemType string

const (
	TrashLesson  TrashItemType = "lesson"
	TrashProfile TrashItemType = "profile"
)

func (t TrashItemType) Valid() bool {
	return t == TrashLesson || t == TrashProfile
}

// TrashItem is the recovery record of a soft-deleted lesson or profile.
// ItemData holds the full row as it was at deletion time.
type TrashItem struct {
	ID        string         `gorm:"primaryKey;size:26" json:"id"`
	ItemType  TrashItemType  `gorm:"not null;uniqueIndex:idx_trash_item" json:"itemType"`
	ItemID    uint           `gorm:"not null;uniqueIndex:idx_trash_item" json:"itemId"`
	ItemTitle string         `json:"itemTitle"`
	ItemData  datatypes.JSON `json:"itemData"`
	ItemOwner string         `gorm:"index" json:"itemOwner"`
	DeletedBy string         `json:"deletedBy"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

type TrashCounts struct {
	Total   int64 `json:"total"`
	Lesson  int64 `json:"lesson"`
	Profile int64 `json:"profile"`
}

type TrashList struct {
	Items  []TrashItem `json:"items"`
	Counts TrashCounts `json:"counts"`
}
