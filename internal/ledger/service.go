// Package ledger owns all money movement: the commission split, the escrow
// transaction record, wallet balances and payout settlement. Listing state
// belongs to checkout and logistics; those packages call the exported
// transaction helpers here so each purchase or release commits atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"orus-backend/internal/domain"
	"orus-backend/internal/notify"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommissionRate is the fixed platform fee added on top of the agreed price.
const CommissionRate = 0.10

// Round2 rounds to cents. All persisted amounts pass through here.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Split computes the money breakdown for an agreed price. Commission is
// rounded first and gross derived from it, so gross == net + commission
// holds exactly for every input.
func Split(amount float64) (gross, commission, net float64) {
	net = Round2(amount)
	commission = Round2(amount * CommissionRate)
	gross = Round2(net + commission)
	return gross, commission, net
}

// RecordPurchase debits the buyer's wallet by the gross amount and creates
// the escrow transaction, inside the caller's DB transaction. The debit is
// conditional on sufficient balance, so two concurrent purchases cannot
// overdraw a wallet.
func RecordPurchase(tx *gorm.DB, listing *domain.Listing, buyerID uuid.UUID, amount float64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	gross, commission, net := Split(amount)

	res := tx.Model(&domain.User{}).
		Where("id = ? AND wallet_balance >= ?", buyerID, gross).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", gross))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrInsufficientFunds
	}

	transaction := domain.Transaction{
		ListingID:       listing.ID,
		BuyerID:         buyerID,
		SellerID:        listing.SellerID,
		GrossAmount:     gross,
		Commission:      commission,
		NetSellerAmount: net,
		PaymentMethod:   "WALLET",
		Status:          domain.TxCompleted,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		return nil, err
	}

	if err := writeWalletEntry(tx, buyerID, -gross, domain.WalletEntryPurchase, transaction.ID,
		fmt.Sprintf("Purchase of %s", listing.Title)); err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ReleaseEscrow credits the seller with the net amount for the listing's
// escrow transaction, inside the caller's DB transaction. Idempotent: the
// funds_released flag flips false -> true exactly once, so a second call
// (or a concurrent one) credits nothing and reports released=false.
func ReleaseEscrow(tx *gorm.DB, listingID uuid.UUID) (*domain.Transaction, bool, error) {
	var transaction domain.Transaction
	err := tx.Where("product_id = ? AND status = ?", listingID, domain.TxCompleted).
		Order("created_at DESC").
		First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, domain.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	res := tx.Model(&domain.Transaction{}).
		Where("id = ? AND funds_released = ?", transaction.ID, false).
		Updates(map[string]interface{}{"funds_released": true, "released_at": now})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return &transaction, false, nil
	}
	transaction.FundsReleased = true
	transaction.ReleasedAt = &now

	if err := tx.Model(&domain.User{}).
		Where("id = ?", transaction.SellerID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", transaction.NetSellerAmount)).Error; err != nil {
		return nil, false, err
	}

	if err := writeWalletEntry(tx, transaction.SellerID, transaction.NetSellerAmount,
		domain.WalletEntryEscrowRelease, transaction.ID, "Sale proceeds released"); err != nil {
		return nil, false, err
	}
	return &transaction, true, nil
}

// writeWalletEntry appends a history line with the balance after the change.
// Reads the balance inside the same transaction, after the update.
func writeWalletEntry(tx *gorm.DB, userID uuid.UUID, amount float64, entryType string, refID uuid.UUID, description string) error {
	var user domain.User
	if err := tx.Select("wallet_balance").Where("id = ?", userID).First(&user).Error; err != nil {
		return err
	}
	entry := domain.WalletEntry{
		UserID:       userID,
		Amount:       Round2(amount),
		Type:         entryType,
		ReferenceID:  refID,
		Description:  description,
		BalanceAfter: Round2(user.WalletBalance),
	}
	return tx.Create(&entry).Error
}

// Service exposes wallet and payout operations.
type Service struct {
	DB     *gorm.DB
	Notify *notify.Publisher
}

func NewService(db *gorm.DB, publisher *notify.Publisher) *Service {
	return &Service{DB: db, Notify: publisher}
}

// Wallet is the balance summary returned to the account owner.
type Wallet struct {
	Balance       float64 `json:"balance"`
	PendingEscrow float64 `json:"pending_escrow"`
}

// GetWallet returns the user's available balance and the net proceeds still
// held in escrow for their sold listings.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var user domain.User
	err := s.DB.WithContext(ctx).Select("wallet_balance").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var pending float64
	err = s.DB.WithContext(ctx).Model(&domain.Transaction{}).
		Where("seller_id = ? AND status = ? AND funds_released = ?", userID, domain.TxCompleted, false).
		Select("COALESCE(SUM(net_seller_amount), 0)").
		Scan(&pending).Error
	if err != nil {
		return nil, err
	}

	return &Wallet{Balance: Round2(user.WalletBalance), PendingEscrow: Round2(pending)}, nil
}

// GetWalletHistory lists the user's wallet entries, newest first.
func (s *Service) GetWalletHistory(ctx context.Context, userID uuid.UUID) ([]domain.WalletEntry, error) {
	var entries []domain.WalletEntry
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// TopUpWallet credits the user's wallet. Development and test convenience;
// a card gateway would land here in production.
func (s *Service) TopUpWallet(ctx context.Context, userID uuid.UUID, amount float64) (*Wallet, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("id = ?", userID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", Round2(amount)))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return writeWalletEntry(tx, userID, amount, domain.WalletEntryTopUp, userID, "Wallet top up")
	})
	if err != nil {
		return nil, err
	}
	return s.GetWallet(ctx, userID)
}

// RequestPayout creates a pending payout request. Balance is checked now
// and re-validated at processing time, since sales and other payouts can
// move the balance in between.
func (s *Service) RequestPayout(ctx context.Context, userID uuid.UUID, amount float64, iban string) (*domain.PayoutRequest, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	amount = Round2(amount)

	var payout domain.PayoutRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if user.WalletBalance < amount {
			return domain.ErrInsufficientFunds
		}

		payout = domain.PayoutRequest{
			UserID:      userID,
			Amount:      amount,
			IBAN:        iban,
			Status:      domain.PayoutPending,
			RequestedAt: time.Now().UTC(),
		}
		return tx.Create(&payout).Error
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// CompletePayout settles a pending payout: debits the wallet and marks the
// request completed, atomically. The debit is conditional on the balance
// still covering the amount; if it no longer does, nothing changes and the
// request stays pending.
func (s *Service) CompletePayout(ctx context.Context, payoutID, adminID uuid.UUID) (*domain.PayoutRequest, error) {
	var payout domain.PayoutRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", payoutID).First(&payout).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if payout.Status != domain.PayoutPending {
			return domain.ErrWrongState
		}

		res := tx.Model(&domain.User{}).
			Where("id = ? AND wallet_balance >= ?", payout.UserID, payout.Amount).
			Update("wallet_balance", gorm.Expr("wallet_balance - ?", payout.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientFunds
		}

		now := time.Now().UTC()
		res = tx.Model(&domain.PayoutRequest{}).
			Where("id = ? AND status = ?", payoutID, domain.PayoutPending).
			Updates(map[string]interface{}{
				"status":       domain.PayoutCompleted,
				"processed_at": now,
				"processed_by": adminID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		payout.Status = domain.PayoutCompleted
		payout.ProcessedAt = &now
		payout.ProcessedBy = &adminID

		return writeWalletEntry(tx, payout.UserID, -payout.Amount, domain.WalletEntryPayout, payout.ID,
			"Payout to "+payout.IBAN)
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, payout.UserID, notify.EventPayoutSettled, payout)
	return &payout, nil
}

// RejectPayout declines a pending payout with a reason. The wallet is
// untouched since nothing was reserved.
func (s *Service) RejectPayout(ctx context.Context, payoutID, adminID uuid.UUID, reason string) (*domain.PayoutRequest, error) {
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&domain.PayoutRequest{}).
		Where("id = ? AND status = ?", payoutID, domain.PayoutPending).
		Updates(map[string]interface{}{
			"status":           domain.PayoutRejected,
			"processed_at":     now,
			"processed_by":     adminID,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing domain.PayoutRequest
		if err := s.DB.WithContext(ctx).Where("id = ?", payoutID).First(&existing).Error; err != nil {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrWrongState
	}

	var payout domain.PayoutRequest
	if err := s.DB.WithContext(ctx).Where("id = ?", payoutID).First(&payout).Error; err != nil {
		return nil, err
	}
	s.Notify.ToUser(ctx, payout.UserID, notify.EventPayoutSettled, payout)
	return &payout, nil
}

// ListPayouts returns payout requests, optionally filtered by status.
// Admin view.
func (s *Service) ListPayouts(ctx context.Context, status string) ([]domain.PayoutRequest, error) {
	q := s.DB.WithContext(ctx).Order("requested_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var payouts []domain.PayoutRequest
	err := q.Find(&payouts).Error
	return payouts, err
}

// MyPayouts returns the user's own payout requests, newest first.
func (s *Service) MyPayouts(ctx context.Context, userID uuid.UUID) ([]domain.PayoutRequest, error) {
	var payouts []domain.PayoutRequest
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Find(&payouts).Error
	return payouts, err
}

// TransactionRecord is the admin view of a transaction, joined with the
// listing's title and codes for counter-side reconciliation.
type TransactionRecord struct {
	domain.Transaction `gorm:"embedded"`
	ListingTitle       string  `json:"listing_title"`
	DepositCode        *string `json:"deposit_code"`
	WithdrawalCode     *string `json:"withdrawal_code"`
}

// ListTransactions returns all escrow transactions, newest first. Admin view.
func (s *Service) ListTransactions(ctx context.Context) ([]TransactionRecord, error) {
	var records []TransactionRecord
	err := s.DB.WithContext(ctx).Model(&domain.Transaction{}).
		Select("orus_transactions.*, orus_products.title AS listing_title, orus_products.deposit_code, orus_products.withdrawal_code").
		Joins("JOIN orus_products ON orus_products.id = orus_transactions.product_id").
		Order("orus_transactions.created_at DESC").
		Scan(&records).Error
	return records, err
}

// MyTransactions returns transactions where the user is buyer or seller.
func (s *Service) MyTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	err := s.DB.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}
