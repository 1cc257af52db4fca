package negotiation

import (
	"errors"

	"orus-backend/internal/domain"
	"orus-backend/internal/middleware"
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes chat and offer routes.
type Handlers struct {
	Service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{Service: service}
}

func mapNegotiationError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Not found")
	case errors.Is(err, domain.ErrForbidden):
		return response.Forbidden(c, "You are not part of this conversation")
	case errors.Is(err, domain.ErrWrongState):
		return response.Conflict(c, "Operation not allowed in current state")
	case errors.Is(err, domain.ErrInvalidAmount):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, ErrOfferPending):
		return response.Conflict(c, err.Error())
	case errors.Is(err, ErrSelfChat):
		return response.BadRequest(c, err.Error())
	}
	return response.Internal(c, fallback)
}

type startConversationRequest struct {
	ListingID string `json:"product_id"`
}

func (h *Handlers) StartConversation(c *fiber.Ctx) error {
	var req startConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	conv, err := h.Service.FindOrCreateConversation(c.UserContext(), middleware.GetUserID(c), listingID)
	if err != nil {
		return mapNegotiationError(c, err, "Failed to open conversation")
	}
	return response.Success(c, conv)
}

func (h *Handlers) MyConversations(c *fiber.Ctx) error {
	convs, err := h.Service.MyConversations(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load conversations")
	}
	return response.Success(c, convs)
}

func (h *Handlers) GetMessages(c *fiber.Ctx) error {
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}
	messages, err := h.Service.GetMessages(c.UserContext(), middleware.GetUserID(c), convID)
	if err != nil {
		return mapNegotiationError(c, err, "Failed to load messages")
	}
	return response.Success(c, messages)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	message, err := h.Service.SendMessage(c.UserContext(), middleware.GetUserID(c), convID, req.Content)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			return mapNegotiationError(c, err, "")
		}
		return response.BadRequest(c, err.Error())
	}
	return response.Created(c, message)
}

type makeOfferRequest struct {
	Amount float64 `json:"amount"`
}

func (h *Handlers) MakeOffer(c *fiber.Ctx) error {
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}
	var req makeOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	offer, err := h.Service.MakeOffer(c.UserContext(), middleware.GetUserID(c), convID, req.Amount)
	if err != nil {
		return mapNegotiationError(c, err, "Failed to make offer")
	}
	return response.Created(c, offer)
}

func (h *Handlers) ListOffers(c *fiber.Ctx) error {
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}
	offers, err := h.Service.ListOffers(c.UserContext(), middleware.GetUserID(c), convID)
	if err != nil {
		return mapNegotiationError(c, err, "Failed to load offers")
	}
	return response.Success(c, offers)
}

func (h *Handlers) RespondToOffer(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid offer id")
	}
	var in RespondInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	offer, err := h.Service.RespondToOffer(c.UserContext(), middleware.GetUserID(c), offerID, in)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return response.Forbidden(c, "Only the offer's receiver can respond")
		}
		if err.Error() == "Action must be 'accept', 'decline' or 'counter'" {
			return response.BadRequest(c, err.Error())
		}
		return mapNegotiationError(c, err, "Failed to respond to offer")
	}
	return response.Success(c, offer)
}
