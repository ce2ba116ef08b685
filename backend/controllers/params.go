package controllers

import (
	"strconv"

	"lifelessons/backend/apperr"

	"github.com/gofiber/fiber/v2"
)

// paramID reads a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid_id", "invalid "+name)
	}
	return uint(id), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("invalid_body", "Cannot parse JSON")
	}
	return nil
}
