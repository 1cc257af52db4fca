package listings

import (
	"errors"

	"orus-backend/internal/domain"
	"orus-backend/internal/middleware"
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes listing routes.
type Handlers struct {
	Service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{Service: service}
}

// forViewer strips the logistics codes a viewer is not entitled to see.
// The deposit code belongs to the seller, the withdrawal code to the buyer.
func forViewer(l domain.Listing, viewerID uuid.UUID) domain.Listing {
	if l.SellerID != viewerID {
		l.DepositCode = nil
	}
	if l.BuyerID == nil || *l.BuyerID != viewerID {
		l.WithdrawalCode = nil
	}
	return l
}

func forViewerAll(list []domain.Listing, viewerID uuid.UUID) []domain.Listing {
	out := make([]domain.Listing, len(list))
	for i, l := range list {
		out[i] = forViewer(l, viewerID)
	}
	return out
}

func listingIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

func (h *Handlers) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	listing, err := h.Service.CreateListing(c.UserContext(), middleware.GetUserID(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			return response.BadRequest(c, err.Error())
		}
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Account not found")
		}
		return response.BadRequest(c, err.Error())
	}
	return response.Created(c, forViewer(*listing, middleware.GetUserID(c)))
}

func (h *Handlers) Browse(c *fiber.Ctx) error {
	results, err := h.Service.BrowseListings(c.UserContext(), BrowseFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
	})
	if err != nil {
		return response.Internal(c, "Failed to load listings")
	}
	return response.Success(c, forViewerAll(results, middleware.GetUserID(c)))
}

func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	listing, err := h.Service.GetListing(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Listing not found")
		}
		return response.Internal(c, "Failed to load listing")
	}
	return response.Success(c, forViewer(*listing, middleware.GetUserID(c)))
}

func (h *Handlers) Mine(c *fiber.Ctx) error {
	results, err := h.Service.MyListings(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load listings")
	}
	return response.Success(c, results)
}

func (h *Handlers) MyPurchases(c *fiber.Ctx) error {
	results, err := h.Service.MyPurchases(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load purchases")
	}
	return response.Success(c, forViewerAll(results, middleware.GetUserID(c)))
}

func (h *Handlers) Withdraw(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	listing, err := h.Service.WithdrawListing(c.UserContext(), middleware.GetUserID(c), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Listing not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "Only the seller can withdraw a listing")
		case errors.Is(err, domain.ErrWrongState):
			return response.Conflict(c, "Listing can no longer be withdrawn")
		}
		return response.Internal(c, "Failed to withdraw listing")
	}
	return response.Success(c, listing)
}

func (h *Handlers) Like(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	if err := h.Service.LikeListing(c.UserContext(), middleware.GetUserID(c), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Listing not found")
		}
		return response.Internal(c, "Failed to like listing")
	}
	return response.Success(c, fiber.Map{"liked": true})
}

func (h *Handlers) Unlike(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	if err := h.Service.UnlikeListing(c.UserContext(), middleware.GetUserID(c), id); err != nil {
		return response.Internal(c, "Failed to unlike listing")
	}
	return response.Success(c, fiber.Map{"liked": false})
}

func (h *Handlers) MyLikes(c *fiber.Ctx) error {
	results, err := h.Service.MyLikes(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load likes")
	}
	return response.Success(c, forViewerAll(results, middleware.GetUserID(c)))
}

// Admin routes below.

func (h *Handlers) ModerationQueue(c *fiber.Ctx) error {
	results, err := h.Service.ModerationQueue(c.UserContext())
	if err != nil {
		return response.Internal(c, "Failed to load moderation queue")
	}
	return response.Success(c, results)
}

type moderateRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *Handlers) Moderate(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	var req moderateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	listing, err := h.Service.Moderate(c.UserContext(), middleware.GetUserID(c), id, req.Approve, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Listing not found")
		case errors.Is(err, domain.ErrWrongState):
			return response.Conflict(c, "Listing is not pending moderation")
		}
		return response.Internal(c, "Failed to moderate listing")
	}
	return response.Success(c, listing)
}

type banRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) Ban(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	var req banRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	listing, err := h.Service.BanListing(c.UserContext(), middleware.GetUserID(c), id, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Listing not found")
		case errors.Is(err, domain.ErrWrongState):
			return response.Conflict(c, "Listing cannot be banned in its current state")
		}
		return response.Internal(c, "Failed to ban listing")
	}
	return response.Success(c, listing)
}

func (h *Handlers) Events(c *fiber.Ctx) error {
	id, err := listingIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	events, err := h.Service.ListingEvents(c.UserContext(), id)
	if err != nil {
		return response.Internal(c, "Failed to load listing events")
	}
	return response.Success(c, events)
}
