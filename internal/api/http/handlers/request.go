package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	apperrors "github.com/fixbench/repair-desk/pkg/util/errorutil"
)

// ActorHeader identifies the staff member making the request.
const ActorHeader = "X-Actor-ID"

func actorFrom(c *fiber.Ctx) events.Actor {
	if id := strings.TrimSpace(c.Get(ActorHeader)); id != "" {
		return events.StaffActor(id)
	}
	return events.SystemActor()
}

// parseBody decodes the JSON body. Non-canonical enum values surface as
// UNKNOWN_KEY rather than a generic validation failure.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		if errors.Is(err, domain.ErrUnknownKey) {
			return err
		}
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}
