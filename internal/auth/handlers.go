package auth

import (
	"errors"

	"orus-backend/internal/domain"
	"orus-backend/internal/middleware"
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers exposes auth routes: register, login, me, logout.
type Handlers struct {
	Service      *Service
	RDB          *redis.Client
	CrossSiteDev bool
}

func NewHandlers(service *Service, rdb *redis.Client, crossSiteDev bool) *Handlers {
	return &Handlers{Service: service, RDB: rdb, CrossSiteDev: crossSiteDev}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *Handlers) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	user, err := h.Service.Register(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return response.Conflict(c, err.Error())
		case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
			return response.BadRequest(c, err.Error())
		}
		return response.Internal(c, "Failed to create account")
	}

	if err := middleware.CreateSession(c, h.RDB, sessionUserFrom(user), h.CrossSiteDev); err != nil {
		return response.Internal(c, "Failed to create session")
	}
	return response.Created(c, user)
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	user, err := h.Service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return response.Unauthorized(c, err.Error())
		}
		return response.Internal(c, "Login failed")
	}

	if err := middleware.CreateSession(c, h.RDB, sessionUserFrom(user), h.CrossSiteDev); err != nil {
		return response.Internal(c, "Failed to create session")
	}
	return response.Success(c, user)
}

func (h *Handlers) Me(c *fiber.Ctx) error {
	sessionUser := middleware.GetUser(c)
	user, err := h.Service.GetUser(c.UserContext(), sessionUser.UserID)
	if err != nil {
		return response.NotFound(c, "Account not found")
	}
	return response.Success(c, user)
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	middleware.DestroySession(c, h.RDB, h.CrossSiteDev)
	return response.Success(c, fiber.Map{"logged_out": true})
}

func sessionUserFrom(u *domain.User) middleware.SessionUser {
	return middleware.SessionUser{
		UserID:   u.ID.String(),
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}
