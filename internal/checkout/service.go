// Package checkout orchestrates a purchase: it marks the listing sold,
// debits the buyer and writes the escrow transaction as one atomic commit.
// A buy-now pays the list price; paying an accepted offer pays the agreed
// amount.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"orus-backend/internal/domain"
	"orus-backend/internal/ledger"
	"orus-backend/internal/notify"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Notify *notify.Publisher
}

func NewService(db *gorm.DB, publisher *notify.Publisher) *Service {
	return &Service{DB: db, Notify: publisher}
}

// sellListing flips the listing to sold with the buyer attached. The
// conditional update is the whole double-sale defense: of any number of
// concurrent purchases, exactly one updates a row.
func sellListing(tx *gorm.DB, listing *domain.Listing, buyerID uuid.UUID) error {
	res := tx.Model(&domain.Listing{}).
		Where("id = ? AND buyer_id IS NULL AND logistics_state = ? AND moderation_state = ?",
			listing.ID, domain.LogisticsQualityChecked, domain.ModerationApproved).
		Updates(map[string]interface{}{
			"buyer_id":        buyerID,
			"logistics_state": domain.LogisticsSold,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current domain.Listing
		if err := tx.Where("id = ?", listing.ID).First(&current).Error; err != nil {
			return err
		}
		if current.BuyerID != nil {
			return domain.ErrDuplicatePurchase
		}
		return domain.ErrWrongState
	}
	listing.BuyerID = &buyerID
	listing.LogisticsState = domain.LogisticsSold
	return nil
}

// BuyNow purchases a listing at its list price.
func (s *Service) BuyNow(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Transaction, error) {
	var listing domain.Listing
	var transaction *domain.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if listing.SellerID == buyerID {
			return domain.ErrForbidden
		}

		if err := sellListing(tx, &listing, buyerID); err != nil {
			return err
		}

		var err error
		transaction, err = ledger.RecordPurchase(tx, &listing, buyerID, listing.Price)
		if err != nil {
			return err
		}
		return domain.RecordEvent(tx, listing.ID, domain.EventSold, &buyerID, map[string]interface{}{
			"transaction_id": transaction.ID.String(),
			"gross":          transaction.GrossAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, listing.SellerID, notify.EventListingSold, transaction)
	return transaction, nil
}

// PayOffer settles an accepted offer at the agreed amount. Only the
// conversation's buyer pays, regardless of who sent the final offer.
// The payment flag, the sale and the escrow debit commit together.
func (s *Service) PayOffer(ctx context.Context, buyerID, offerID uuid.UUID) (*domain.Transaction, error) {
	var listing domain.Listing
	var transaction *domain.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offer domain.Offer
		if err := tx.Where("id = ?", offerID).First(&offer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		var conv domain.Conversation
		if err := tx.Where("id = ?", offer.ConversationID).First(&conv).Error; err != nil {
			return err
		}
		if conv.BuyerID != buyerID {
			return domain.ErrForbidden
		}

		res := tx.Model(&domain.Offer{}).
			Where("id = ? AND status = ? AND payment_status = ?", offerID, domain.OfferAccepted, domain.OfferUnpaid).
			Update("payment_status", domain.OfferPaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}

		if err := tx.Where("id = ?", offer.ListingID).First(&listing).Error; err != nil {
			return err
		}
		if err := sellListing(tx, &listing, buyerID); err != nil {
			return err
		}

		var err error
		transaction, err = ledger.RecordPurchase(tx, &listing, buyerID, offer.Amount)
		if err != nil {
			return err
		}

		if err := tx.Model(&domain.Offer{}).
			Where("id = ?", offerID).
			Update("transaction_id", transaction.ID).Error; err != nil {
			return err
		}

		confirmation := domain.Message{
			ConversationID: offer.ConversationID,
			SenderID:       buyerID,
			Content:        fmt.Sprintf("Offer of %.2f paid", offer.Amount),
		}
		if err := tx.Create(&confirmation).Error; err != nil {
			return err
		}
		return domain.RecordEvent(tx, listing.ID, domain.EventSold, &buyerID, map[string]interface{}{
			"transaction_id": transaction.ID.String(),
			"offer_id":       offerID.String(),
			"gross":          transaction.GrossAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, listing.SellerID, notify.EventListingSold, transaction)
	return transaction, nil
}
