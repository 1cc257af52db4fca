package logistics

import (
	"errors"

	"orus-backend/internal/domain"
	"orus-backend/internal/middleware"
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Scan modes accepted by the depot counter endpoint.
const (
	ScanDeposit    = "deposit"
	ScanQuality    = "quality"
	ScanWithdrawal = "withdrawal"
)

// Handlers exposes the depot routes.
type Handlers struct {
	Service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{Service: service}
}

type scanRequest struct {
	Code     string `json:"code"`
	Mode     string `json:"mode"`
	Conforme *bool  `json:"conforme"`
}

// Scan is the single depot counter endpoint. The mode selects which custody
// move the scanned code triggers.
func (h *Handlers) Scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Code == "" {
		return response.BadRequest(c, "Code is required")
	}

	agentID := middleware.GetUserID(c)
	var listing *domain.Listing
	var err error
	switch req.Mode {
	case ScanDeposit:
		listing, err = h.Service.RecordDeposit(c.UserContext(), agentID, req.Code)
	case ScanQuality:
		if req.Conforme == nil {
			return response.BadRequest(c, "Conforme verdict is required for quality scans")
		}
		listing, err = h.Service.RecordQualityCheck(c.UserContext(), agentID, req.Code, *req.Conforme)
	case ScanWithdrawal:
		listing, err = h.Service.RecordWithdrawal(c.UserContext(), agentID, req.Code)
	default:
		return response.BadRequest(c, "Mode must be 'deposit', 'quality' or 'withdrawal'")
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCode):
			return response.NotFound(c, "Unknown code")
		case errors.Is(err, domain.ErrWrongState):
			return response.Conflict(c, "Code already used or item not in the expected state")
		case errors.Is(err, domain.ErrNotFound):
			return response.Conflict(c, "No completed transaction for this item")
		}
		return response.Internal(c, "Scan failed")
	}
	return response.Success(c, listing)
}

func (h *Handlers) DepotQueue(c *fiber.Ctx) error {
	results, err := h.Service.DepotQueue(c.UserContext())
	if err != nil {
		return response.Internal(c, "Failed to load depot queue")
	}
	return response.Success(c, results)
}

func (h *Handlers) AwaitingPickup(c *fiber.Ctx) error {
	results, err := h.Service.AwaitingPickup(c.UserContext())
	if err != nil {
		return response.Internal(c, "Failed to load pickup queue")
	}
	return response.Success(c, results)
}
