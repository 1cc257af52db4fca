// Package listings owns the listing lifecycle up to the point of sale:
// creation, moderation, seller withdrawal, likes and the browse queries.
// Physical custody moves live in the logistics package; money in ledger.
package listings

import (
	"context"
	"errors"
	"strings"

	"orus-backend/internal/domain"
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

// CreateInput is the seller-provided part of a new listing.
type CreateInput struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	SelfCertified bool    `json:"self_certified"`
}

// CreateListing registers a new listing. Self-certified listings skip the
// physical deposit once approved. Verified sellers go further: their
// self-certification is trusted outright, so the listing lands in the shop
// with codes issued and no moderation queue stop.
func (s *Service) CreateListing(ctx context.Context, sellerID uuid.UUID, in CreateInput) (*domain.Listing, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New("Title is required")
	}
	if in.Price <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var seller domain.User
	if err := s.DB.WithContext(ctx).Where("id = ?", sellerID).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	listing := domain.Listing{
		SellerID:        sellerID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Category:        in.Category,
		Price:           in.Price,
		ModerationState: domain.ModerationPending,
		LogisticsState:  domain.LogisticsAwaitingDeposit,
		ConformityState: domain.ConformityPending,
	}

	listing.SelfCertified = in.SelfCertified || seller.IsVerifiedSeller

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if seller.IsVerifiedSeller {
			listing.ModerationState = domain.ModerationApproved
			listing.LogisticsState = domain.LogisticsQualityChecked
			listing.ConformityState = domain.ConformityConforme
			if err := assignCodes(tx, &listing); err != nil {
				return err
			}
		}
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}
		if err := domain.RecordEvent(tx, listing.ID, domain.EventCreated, &sellerID, map[string]interface{}{
			"price":          listing.Price,
			"self_certified": listing.SelfCertified,
		}); err != nil {
			return err
		}
		if seller.IsVerifiedSeller {
			return domain.RecordEvent(tx, listing.ID, domain.EventModerated, &sellerID, map[string]interface{}{
				"state": string(domain.ModerationApproved),
				"auto":  true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func assignCodes(tx *gorm.DB, listing *domain.Listing) error {
	deposit, err := uniqueCode(tx)
	if err != nil {
		return err
	}
	withdrawal, err := uniqueCode(tx)
	if err != nil {
		return err
	}
	if deposit == withdrawal {
		return domain.ErrInvalidCode
	}
	listing.DepositCode = &deposit
	listing.WithdrawalCode = &withdrawal
	return nil
}

// Moderate approves or rejects a pending listing. The state flip is a
// conditional update on the current state, so two moderators racing on
// the same listing produce exactly one outcome. Approval issues the
// one-time deposit and withdrawal codes.
func (s *Service) Moderate(ctx context.Context, moderatorID, listingID uuid.UUID, approve bool, reason string) (*domain.Listing, error) {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		next := domain.ModerationRejected
		if approve {
			next = domain.ModerationApproved
		}
		if !listing.ModerationState.CanTransitionTo(next) {
			return domain.ErrWrongState
		}

		updates := map[string]interface{}{"moderation_state": next}
		if approve {
			if err := assignCodes(tx, &listing); err != nil {
				return err
			}
			updates["deposit_code"] = listing.DepositCode
			updates["withdrawal_code"] = listing.WithdrawalCode
			if listing.SelfCertified {
				// Certified condition: no depot pass needed.
				updates["logistics_state"] = domain.LogisticsQualityChecked
				updates["conformity_state"] = domain.ConformityConforme
			}
		}

		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND moderation_state = ?", listingID, domain.ModerationPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		listing.ModerationState = next
		if approve && listing.SelfCertified {
			listing.LogisticsState = domain.LogisticsQualityChecked
			listing.ConformityState = domain.ConformityConforme
		}

		return domain.RecordEvent(tx, listingID, domain.EventModerated, &moderatorID, map[string]interface{}{
			"state":  string(next),
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, listing.SellerID, notify.EventModeration, listing)
	return &listing, nil
}

// BanListing removes an unsold listing from the marketplace and purges its
// likes. Moderator action; the seller is notified.
func (s *Service) BanListing(ctx context.Context, moderatorID, listingID uuid.UUID, reason string) (*domain.Listing, error) {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !listing.ModerationState.CanTransitionTo(domain.ModerationBannedByModerator) || listing.BuyerID != nil {
			return domain.ErrWrongState
		}

		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND moderation_state = ? AND buyer_id IS NULL", listingID, listing.ModerationState).
			Update("moderation_state", domain.ModerationBannedByModerator)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		listing.ModerationState = domain.ModerationBannedByModerator

		if err := tx.Where("product_id = ?", listingID).Delete(&domain.Like{}).Error; err != nil {
			return err
		}
		return domain.RecordEvent(tx, listingID, domain.EventModerated, &moderatorID, map[string]interface{}{
			"state":  string(domain.ModerationBannedByModerator),
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, listing.SellerID, notify.EventModeration, listing)
	return &listing, nil
}

// WithdrawListing lets the seller pull their own unsold listing. Likes are
// purged so nobody keeps a dead favorite.
func (s *Service) WithdrawListing(ctx context.Context, sellerID, listingID uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if listing.SellerID != sellerID {
			return domain.ErrForbidden
		}
		if !listing.ModerationState.CanTransitionTo(domain.ModerationWithdrawnBySeller) || listing.BuyerID != nil {
			return domain.ErrWrongState
		}

		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND moderation_state = ? AND buyer_id IS NULL", listingID, listing.ModerationState).
			Update("moderation_state", domain.ModerationWithdrawnBySeller)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		listing.ModerationState = domain.ModerationWithdrawnBySeller

		if err := tx.Where("product_id = ?", listingID).Delete(&domain.Like{}).Error; err != nil {
			return err
		}
		return domain.RecordEvent(tx, listingID, domain.EventSellerRemoved, &sellerID, nil)
	})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetListing loads one listing.
func (s *Service) GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// BrowseFilter narrows the public shop query.
type BrowseFilter struct {
	Category string
	Query    string
}

// BrowseListings returns what buyers can see: approved, quality checked,
// unsold listings.
func (s *Service) BrowseListings(ctx context.Context, f BrowseFilter) ([]domain.Listing, error) {
	q := s.DB.WithContext(ctx).
		Where("moderation_state = ?", domain.ModerationApproved).
		Where("logistics_state = ?", domain.LogisticsQualityChecked).
		Where("conformity_state <> ?", domain.ConformityNonConforme).
		Where("buyer_id IS NULL").
		Order("created_at DESC")
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	var results []domain.Listing
	err := q.Find(&results).Error
	return results, err
}

// MyListings returns all of the seller's listings, any state, newest first.
func (s *Service) MyListings(ctx context.Context, sellerID uuid.UUID) ([]domain.Listing, error) {
	var results []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&results).Error
	return results, err
}

// MyPurchases returns listings the user has bought.
func (s *Service) MyPurchases(ctx context.Context, buyerID uuid.UUID) ([]domain.Listing, error) {
	var results []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("updated_at DESC").
		Find(&results).Error
	return results, err
}

// ModerationQueue lists pending listings, oldest first. Admin view.
func (s *Service) ModerationQueue(ctx context.Context) ([]domain.Listing, error) {
	var results []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("moderation_state = ?", domain.ModerationPending).
		Order("created_at ASC").
		Find(&results).Error
	return results, err
}

// ListingEvents returns the audit trail for a listing, oldest first.
func (s *Service) ListingEvents(ctx context.Context, listingID uuid.UUID) ([]domain.ListingEvent, error) {
	var events []domain.ListingEvent
	err := s.DB.WithContext(ctx).
		Where("product_id = ?", listingID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// LikeListing saves a listing for the user. Already liked is a no-op.
func (s *Service) LikeListing(ctx context.Context, userID, listingID uuid.UUID) error {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	like := domain.Like{UserID: userID, ListingID: listingID}
	err = s.DB.WithContext(ctx).Create(&like).Error
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

// UnlikeListing removes a like. Not liked is a no-op.
func (s *Service) UnlikeListing(ctx context.Context, userID, listingID uuid.UUID) error {
	return s.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, listingID).
		Delete(&domain.Like{}).Error
}

// MyLikes returns the listings the user has saved that are still
// purchasable, newest like first.
func (s *Service) MyLikes(ctx context.Context, userID uuid.UUID) ([]domain.Listing, error) {
	var results []domain.Listing
	err := s.DB.WithContext(ctx).
		Joins("JOIN orus_likes ON orus_likes.product_id = orus_products.id").
		Where("orus_likes.user_id = ?", userID).
		Where("orus_products.moderation_state = ?", domain.ModerationApproved).
		Where("orus_products.buyer_id IS NULL").
		Order("orus_likes.created_at DESC").
		Find(&results).Error
	return results, err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
