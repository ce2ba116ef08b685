package client

import (
	"context"
	"fmt"
	"net/url"

	"lifelessons/backend/models"
)

type itemResponse struct {
	Message string            `json:"message"`
	Item    *models.TrashItem `json:"item"`
}

// DeleteLesson moves a lesson to the trash and returns its trash record.
func (c *Client) DeleteLesson(ctx context.Context, lessonID uint) (*models.TrashItem, error) {
	release, err := c.acquire(fmt.Sprintf("lesson:%d", lessonID))
	if err != nil {
		return nil, err
	}
	defer release()

	var out itemResponse
	if err := c.do(ctx, "DELETE", fmt.Sprintf("/api/lessons/%d", lessonID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

// ListTrash lists trashed items; itemType is "lesson", "profile" or empty
// for everything.
func (c *Client) ListTrash(ctx context.Context, itemType string) (*models.TrashList, error) {
	var q url.Values
	if itemType != "" {
		q = url.Values{"itemType": {itemType}}
	}
	var out models.TrashList
	if err := c.do(ctx, "GET", "/api/admin/trash", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RestoreTrashItem(ctx context.Context, id string) (*models.TrashItem, error) {
	release, err := c.acquire("trash:" + id)
	if err != nil {
		return nil, err
	}
	defer release()

	var out itemResponse
	if err := c.do(ctx, "POST", "/api/admin/trash/"+url.PathEscape(id)+"/restore", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *Client) PermanentlyDeleteTrashItem(ctx context.Context, id string, confirm Confirm) error {
	if !confirmed(confirm, "Delete this item forever? This cannot be undone.") {
		return ErrCancelled
	}
	release, err := c.acquire("trash:" + id)
	if err != nil {
		return err
	}
	defer release()

	return c.do(ctx, "DELETE", "/api/admin/trash/"+url.PathEscape(id)+"/permanent", nil, nil, nil)
}

// EmptyTrash purges every item past the retention window.
func (c *Client) EmptyTrash(ctx context.Context, confirm Confirm) (int64, error) {
	if !confirmed(confirm, "Permanently delete all expired items in the trash?") {
		return 0, ErrCancelled
	}
	release, err := c.acquire("trash:empty")
	if err != nil {
		return 0, err
	}
	defer release()

	var out struct {
		DeletedCount int64 `json:"deletedCount"`
	}
	if err := c.do(ctx, "POST", "/api/admin/trash/empty", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}
