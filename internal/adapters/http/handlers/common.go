package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mortgageos/internal/adapters/http/middleware"
	"mortgageos/internal/core/domain"
)

var errInvalidBody = domain.Validation("Invalid request body")

// parseBody decodes the JSON body into dst
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errInvalidBody.Wrap(err)
	}
	return nil
}

// actorOf returns the principal the gate attached to the request
func actorOf(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return domain.Actor{}, domain.ErrMissingToken
	}
	return actor, nil
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
