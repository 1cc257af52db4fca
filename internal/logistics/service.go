// Package logistics owns physical custody of items: the depot drop-off,
// the quality inspection and the buyer pick-up. Every move is keyed by a
// one-time code scanned at the counter and guarded by a conditional update,
// so two agents scanning the same code produce exactly one state change.
package logistics

import (
	"context"
	"errors"
	"time"

	"orus-backend/internal/domain"
	"orus-backend/internal/ledger"
	"orus-backend/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Notify *notify.Publisher
}

func NewService(db *gorm.DB, publisher *notify.Publisher) *Service {
	return &Service{DB: db, Notify: publisher}
}

// findByCode resolves a scanned code to its listing within the transaction.
func findByCode(tx *gorm.DB, column, code string) (*domain.Listing, error) {
	var listing domain.Listing
	err := tx.Where(column+" = ?", code).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// RecordDeposit marks an approved listing as physically received at the
// depot. The code is single-use: the conditional update fails for any scan
// after the first.
func (s *Service) RecordDeposit(ctx context.Context, agentID uuid.UUID, code string) (*domain.Listing, error) {
	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		listing, err = findByCode(tx, "deposit_code", code)
		if err != nil {
			return err
		}

		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND logistics_state = ? AND moderation_state = ?",
				listing.ID, domain.LogisticsAwaitingDeposit, domain.ModerationApproved).
			Update("logistics_state", domain.LogisticsDeposited)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		listing.LogisticsState = domain.LogisticsDeposited

		return domain.RecordEvent(tx, listing.ID, domain.EventDeposited, &agentID, nil)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("listing_id", listing.ID.String()).Msg("Item deposited")
	return listing, nil
}

// RecordQualityCheck records the depot inspection verdict. A passing item
// becomes visible in the shop; a failing one is banned and its likes are
// purged, all in one transaction.
func (s *Service) RecordQualityCheck(ctx context.Context, agentID uuid.UUID, code string, conforme bool) (*domain.Listing, error) {
	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		listing, err = findByCode(tx, "deposit_code", code)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if conforme {
			res := tx.Model(&domain.Listing{}).
				Where("id = ? AND logistics_state = ? AND conformity_state = ?",
					listing.ID, domain.LogisticsDeposited, domain.ConformityPending).
				Updates(map[string]interface{}{
					"logistics_state":       domain.LogisticsQualityChecked,
					"conformity_state":      domain.ConformityConforme,
					"conformity_checked_at": now,
					"conformity_checked_by": agentID,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrWrongState
			}
			listing.LogisticsState = domain.LogisticsQualityChecked
			listing.ConformityState = domain.ConformityConforme
			return domain.RecordEvent(tx, listing.ID, domain.EventQualityChecked, &agentID, map[string]interface{}{
				"verdict": string(domain.ConformityConforme),
			})
		}

		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND logistics_state = ? AND conformity_state = ?",
				listing.ID, domain.LogisticsDeposited, domain.ConformityPending).
			Updates(map[string]interface{}{
				"conformity_state":      domain.ConformityNonConforme,
				"conformity_checked_at": now,
				"conformity_checked_by": agentID,
				"moderation_state":      domain.ModerationBannedByModerator,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		listing.ConformityState = domain.ConformityNonConforme
		listing.ModerationState = domain.ModerationBannedByModerator

		if err := tx.Where("product_id = ?", listing.ID).Delete(&domain.Like{}).Error; err != nil {
			return err
		}
		return domain.RecordEvent(tx, listing.ID, domain.EventConformity, &agentID, map[string]interface{}{
			"verdict": string(domain.ConformityNonConforme),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("listing_id", listing.ID.String()).Str("verdict", string(listing.ConformityState)).Msg("Quality check recorded")
	s.Notify.ToUser(ctx, listing.SellerID, notify.EventModeration, listing)
	return listing, nil
}

// RecordWithdrawal hands a sold item to its buyer and releases the escrowed
// proceeds to the seller, in the same transaction. The code is single-use
// and the escrow release is idempotent, so the seller is credited exactly
// once no matter how many scans race.
func (s *Service) RecordWithdrawal(ctx context.Context, agentID uuid.UUID, code string) (*domain.Listing, error) {
	var listing *domain.Listing
	var released bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		listing, err = findByCode(tx, "withdrawal_code", code)
		if err != nil {
			return err
		}
		if listing.BuyerID == nil {
			return domain.ErrWrongState
		}

		res := tx.Model(&domain.Listing{}).
			Where("id = ? AND logistics_state = ?", listing.ID, domain.LogisticsSold).
			Update("logistics_state", domain.LogisticsWithdrawn)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		listing.LogisticsState = domain.LogisticsWithdrawn

		_, released, err = ledger.ReleaseEscrow(tx, listing.ID)
		if err != nil {
			return err
		}
		return domain.RecordEvent(tx, listing.ID, domain.EventWithdrawn, &agentID, map[string]interface{}{
			"funds_released": released,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("listing_id", listing.ID.String()).Bool("funds_released", released).Msg("Item withdrawn")
	if released {
		s.Notify.ToUser(ctx, listing.SellerID, notify.EventFundsReleased, listing)
	}
	return listing, nil
}

// DepotQueue lists items physically at the depot awaiting inspection.
func (s *Service) DepotQueue(ctx context.Context) ([]domain.Listing, error) {
	var results []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("logistics_state = ? AND conformity_state = ?", domain.LogisticsDeposited, domain.ConformityPending).
		Order("updated_at ASC").
		Find(&results).Error
	return results, err
}

// AwaitingPickup lists sold items still at the depot.
func (s *Service) AwaitingPickup(ctx context.Context) ([]domain.Listing, error) {
	var results []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("logistics_state = ?", domain.LogisticsSold).
		Order("updated_at ASC").
		Find(&results).Error
	return results, err
}
