package services

import (
	"github.com/gofiber/fiber/v2"
)

// Platform roles as forwarded by the Gateway in X-User-Roles.
const (
	RoleAdmin  = "admin"
	RoleClub   = "club"
	RolePlayer = "player"
)

// Actor identifies who is performing a state-machine operation.
// Every entry/verification operation takes the actor explicitly and
// authorizes internally instead of trusting route-level guards.
type Actor struct {
	ID    string
	Name  string
	Email string
	Roles []string
}

// ActorFromCtx builds the actor from the user context set by the Gateway.
func ActorFromCtx(c *fiber.Ctx) Actor {
	actor := Actor{}
	if id, ok := c.Locals("user_id").(string); ok {
		actor.ID = id
	}
	if name, ok := c.Locals("user_name").(string); ok {
		actor.Name = name
	}
	if email, ok := c.Locals("user_email").(string); ok {
		actor.Email = email
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		actor.Roles = roles
	}
	return actor
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanAdjudicate reports whether the actor may accept or reject claims.
func (a Actor) CanAdjudicate() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleClub)
}

// CanActOnEntry reports whether the actor may report outcomes or submit
// evidence for the given player's entry.
func (a Actor) CanActOnEntry(playerID string) bool {
	return a.ID == playerID || a.HasRole(RoleAdmin)
}
