package controllers

import (
	"lifelessons/backend/services"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type TrashController struct {
	Trash *services.TrashService
}

func NewTrashController(trash *services.TrashService) *TrashController {
	return &TrashController{Trash: trash}
}

// GetTrash godoc
// @Summary List trashed lessons and profiles (admin)
// @Tags trash
// @Produce json
// @Param itemType query string false "lesson|profile"
// @Success 200 {object} models.TrashList
// @Security ApiKeyAuth
// @Router /admin/trash [get]
func (tc *TrashController) GetTrash(c *fiber.Ctx) error {
	list, err := tc.Trash.List(c.UserContext(), utils.CurrentClaims(c), c.Query("itemType"))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(list)
}

// RestoreItem godoc
// @Summary Restore a trashed item (admin)
// @Tags trash
// @Produce json
// @Param id path string true "Trash item ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse "Restore already in progress"
// @Security ApiKeyAuth
// @Router /admin/trash/{id}/restore [post]
func (tc *TrashController) RestoreItem(c *fiber.Ctx) error {
	item, err := tc.Trash.Restore(c.UserContext(), utils.CurrentClaims(c), c.Params("id"))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item restored", "item": item})
}

// DeleteItemPermanently godoc
// @Summary Permanently delete a trashed item (admin)
// @Tags trash
// @Produce json
// @Param id path string true "Trash item ID"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /admin/trash/{id}/permanent [delete]
func (tc *TrashController) DeleteItemPermanently(c *fiber.Ctx) error {
	if err := tc.Trash.PermanentlyDelete(c.UserContext(), utils.CurrentClaims(c), c.Params("id")); err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item permanently deleted"})
}

// EmptyTrash godoc
// @Summary Purge items past the retention window (admin)
// @Tags trash
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /admin/trash/empty [post]
func (tc *TrashController) EmptyTrash(c *fiber.Ctx) error {
	n, err := tc.Trash.EmptyTrash(c.UserContext(), utils.CurrentClaims(c))
	if err != nil {
		return utils.AppError(c, err)
	}
	return c.JSON(fiber.Map{"deletedCount": n})
}
