package health

import (
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes liveness and the detailed health report.
type Handlers struct {
	Service  *Service
	AdminKey string
}

func NewHandlers(service *Service, adminKey string) *Handlers {
	return &Handlers{Service: service, AdminKey: adminKey}
}

// Live is the unauthenticated liveness probe.
func (h *Handlers) Live(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{"alive": true})
}

// Report returns the full health document. Guarded by a shared key so the
// probe works without a session.
func (h *Handlers) Report(c *fiber.Ctx) error {
	if h.AdminKey == "" || c.Get("X-Health-Key") != h.AdminKey {
		return response.Unauthorized(c, "Unauthorized")
	}
	return response.Success(c, h.Service.Collect(c.UserContext()))
}
