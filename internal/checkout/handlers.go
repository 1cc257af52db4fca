package checkout

import (
	"errors"

	"orus-backend/internal/domain"
	"orus-backend/internal/middleware"
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes purchase routes.
type Handlers struct {
	Service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{Service: service}
}

func mapCheckoutError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Not found")
	case errors.Is(err, domain.ErrForbidden):
		return response.Forbidden(c, "Forbidden")
	case errors.Is(err, domain.ErrDuplicatePurchase):
		return response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrWrongState):
		return response.Conflict(c, "Listing is not available for purchase")
	case errors.Is(err, domain.ErrInsufficientFunds):
		return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
	case errors.Is(err, domain.ErrInvalidAmount):
		return response.BadRequest(c, err.Error())
	}
	return response.Internal(c, fallback)
}

func (h *Handlers) BuyNow(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	transaction, err := h.Service.BuyNow(c.UserContext(), middleware.GetUserID(c), listingID)
	if err != nil {
		return mapCheckoutError(c, err, "Purchase failed")
	}
	return response.Created(c, transaction)
}

func (h *Handlers) PayOffer(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid offer id")
	}
	transaction, err := h.Service.PayOffer(c.UserContext(), middleware.GetUserID(c), offerID)
	if err != nil {
		return mapCheckoutError(c, err, "Payment failed")
	}
	return response.Created(c, transaction)
}
