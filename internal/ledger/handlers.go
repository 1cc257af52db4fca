package ledger

import (
	"errors"

	"orus-backend/internal/domain"
	"orus-backend/internal/middleware"
	"orus-backend/internal/pkg/response"
	"orus-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes wallet, payout and transaction routes.
type Handlers struct {
	Service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{Service: service}
}

func (h *Handlers) GetWallet(c *fiber.Ctx) error {
	wallet, err := h.Service.GetWallet(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "Account not found")
		}
		return response.Internal(c, "Failed to load wallet")
	}
	return response.Success(c, wallet)
}

func (h *Handlers) GetWalletHistory(c *fiber.Ctx) error {
	entries, err := h.Service.GetWalletHistory(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load wallet history")
	}
	return response.Success(c, entries)
}

type topUpRequest struct {
	Amount float64 `json:"amount"`
}

func (h *Handlers) TopUpWallet(c *fiber.Ctx) error {
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if !validation.ValidAmount(req.Amount) {
		return response.BadRequest(c, domain.ErrInvalidAmount.Error())
	}
	wallet, err := h.Service.TopUpWallet(c.UserContext(), middleware.GetUserID(c), req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			return response.BadRequest(c, err.Error())
		}
		return response.Internal(c, "Failed to top up wallet")
	}
	return response.Success(c, wallet)
}

type payoutRequestBody struct {
	Amount float64 `json:"amount"`
	IBAN   string  `json:"iban"`
}

func (h *Handlers) RequestPayout(c *fiber.Ctx) error {
	var req payoutRequestBody
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if !validation.ValidAmount(req.Amount) {
		return response.BadRequest(c, domain.ErrInvalidAmount.Error())
	}
	if !validation.ValidIBAN(req.IBAN) {
		return response.BadRequest(c, "Invalid IBAN")
	}

	payout, err := h.Service.RequestPayout(c.UserContext(), middleware.GetUserID(c), req.Amount, validation.NormalizeIBAN(req.IBAN))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrInsufficientFunds):
			return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
		}
		return response.Internal(c, "Failed to create payout request")
	}
	return response.Created(c, payout)
}

func (h *Handlers) MyPayouts(c *fiber.Ctx) error {
	payouts, err := h.Service.MyPayouts(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load payouts")
	}
	return response.Success(c, payouts)
}

func (h *Handlers) MyTransactions(c *fiber.Ctx) error {
	transactions, err := h.Service.MyTransactions(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.Internal(c, "Failed to load transactions")
	}
	return response.Success(c, transactions)
}

// Admin routes below.

func (h *Handlers) ListPayouts(c *fiber.Ctx) error {
	payouts, err := h.Service.ListPayouts(c.UserContext(), c.Query("status"))
	if err != nil {
		return response.Internal(c, "Failed to load payouts")
	}
	return response.Success(c, payouts)
}

func (h *Handlers) ListTransactions(c *fiber.Ctx) error {
	transactions, err := h.Service.ListTransactions(c.UserContext())
	if err != nil {
		return response.Internal(c, "Failed to load transactions")
	}
	return response.Success(c, transactions)
}

type processPayoutRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (h *Handlers) ProcessPayout(c *fiber.Ctx) error {
	payoutID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid payout id")
	}
	var req processPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	adminID := middleware.GetUserID(c)
	var payout *domain.PayoutRequest
	switch req.Action {
	case "complete":
		payout, err = h.Service.CompletePayout(c.UserContext(), payoutID, adminID)
	case "reject":
		payout, err = h.Service.RejectPayout(c.UserContext(), payoutID, adminID, req.Reason)
	default:
		return response.BadRequest(c, "Action must be 'complete' or 'reject'")
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Payout request not found")
		case errors.Is(err, domain.ErrWrongState):
			return response.Conflict(c, "Payout request already processed")
		case errors.Is(err, domain.ErrInsufficientFunds):
			return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
		}
		return response.Internal(c, "Failed to process payout")
	}
	return response.Success(c, payout)
}
