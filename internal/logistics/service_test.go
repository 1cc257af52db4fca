package logistics

import (
	"context"
	"testing"

	"orus-backend/internal/database"
	"orus-backend/internal/domain"
	"orus-backend/internal/ledger"
	"orus-backend/internal/notify"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, balance float64) *domain.User {
	user := domain.User{
		Email:         uuid.New().String() + "@test.local",
		PasswordHash:  "x",
		FullName:      "Test User",
		Role:          "USER",
		WalletBalance: balance,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createApprovedListing(t *testing.T, db *gorm.DB, sellerID uuid.UUID, deposit, withdrawal string) *domain.Listing {
	listing := domain.Listing{
		SellerID:        sellerID,
		Title:           "Turntable",
		Price:           100,
		ModerationState: domain.ModerationApproved,
		LogisticsState:  domain.LogisticsAwaitingDeposit,
		ConformityState: domain.ConformityPending,
		DepositCode:     &deposit,
		WithdrawalCode:  &withdrawal,
	}
	require.NoError(t, db.Create(&listing).Error)
	return &listing
}

func TestRecordDeposit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	createApprovedListing(t, db, seller.ID, "DEP11111", "WIT11111")

	listing, err := svc.RecordDeposit(context.Background(), agent.ID, "DEP11111")
	require.NoError(t, err)
	assert.Equal(t, domain.LogisticsDeposited, listing.LogisticsState)

	var event domain.ListingEvent
	require.NoError(t, db.First(&event, "product_id = ? AND event_type = ?", listing.ID, domain.EventDeposited).Error)

	// A second scan of the same code loses.
	_, err = svc.RecordDeposit(context.Background(), agent.ID, "DEP11111")
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestRecordDepositUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	agent := createUser(t, db, 0)

	_, err := svc.RecordDeposit(context.Background(), agent.ID, "NOPE0000")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestRecordDepositRequiresApproval(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	listing := createApprovedListing(t, db, seller.ID, "DEP22222", "WIT22222")
	require.NoError(t, db.Model(&domain.Listing{}).Where("id = ?", listing.ID).
		Update("moderation_state", domain.ModerationBannedByModerator).Error)

	_, err := svc.RecordDeposit(context.Background(), agent.ID, "DEP22222")
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestQualityCheckConforme(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	createApprovedListing(t, db, seller.ID, "DEP33333", "WIT33333")

	_, err := svc.RecordDeposit(context.Background(), agent.ID, "DEP33333")
	require.NoError(t, err)

	listing, err := svc.RecordQualityCheck(context.Background(), agent.ID, "DEP33333", true)
	require.NoError(t, err)
	assert.Equal(t, domain.LogisticsQualityChecked, listing.LogisticsState)
	assert.Equal(t, domain.ConformityConforme, listing.ConformityState)

	var row domain.Listing
	require.NoError(t, db.First(&row, "id = ?", listing.ID).Error)
	require.NotNil(t, row.ConformityCheckedBy)
	assert.Equal(t, agent.ID, *row.ConformityCheckedBy)
	assert.NotNil(t, row.ConformityCheckedAt)

	// Verdicts are final.
	_, err = svc.RecordQualityCheck(context.Background(), agent.ID, "DEP33333", false)
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestQualityCheckNonConforme(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	fan := createUser(t, db, 0)
	listing := createApprovedListing(t, db, seller.ID, "DEP44444", "WIT44444")
	require.NoError(t, db.Create(&domain.Like{UserID: fan.ID, ListingID: listing.ID}).Error)

	_, err := svc.RecordDeposit(context.Background(), agent.ID, "DEP44444")
	require.NoError(t, err)

	checked, err := svc.RecordQualityCheck(context.Background(), agent.ID, "DEP44444", false)
	require.NoError(t, err)
	assert.Equal(t, domain.ConformityNonConforme, checked.ConformityState)
	assert.Equal(t, domain.ModerationBannedByModerator, checked.ModerationState)

	// Likes are purged with the ban.
	var likes int64
	db.Model(&domain.Like{}).Where("product_id = ?", listing.ID).Count(&likes)
	assert.EqualValues(t, 0, likes)
}

func TestQualityCheckBeforeDeposit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	createApprovedListing(t, db, seller.ID, "DEP55555", "WIT55555")

	_, err := svc.RecordQualityCheck(context.Background(), agent.ID, "DEP55555", true)
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func sellTo(t *testing.T, db *gorm.DB, listing *domain.Listing, buyerID uuid.UUID) {
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Listing{}).
			Where("id = ?", listing.ID).
			Updates(map[string]interface{}{"buyer_id": buyerID, "logistics_state": domain.LogisticsSold})
		if res.Error != nil {
			return res.Error
		}
		_, err := ledger.RecordPurchase(tx, listing, buyerID, listing.Price)
		return err
	}))
}

func TestRecordWithdrawalReleasesEscrowOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	buyer := createUser(t, db, 500)
	listing := createApprovedListing(t, db, seller.ID, "DEP66666", "WIT66666")

	_, err := svc.RecordDeposit(context.Background(), agent.ID, "DEP66666")
	require.NoError(t, err)
	_, err = svc.RecordQualityCheck(context.Background(), agent.ID, "DEP66666", true)
	require.NoError(t, err)
	sellTo(t, db, listing, buyer.ID)

	withdrawn, err := svc.RecordWithdrawal(context.Background(), agent.ID, "WIT66666")
	require.NoError(t, err)
	assert.Equal(t, domain.LogisticsWithdrawn, withdrawn.LogisticsState)

	// Seller got exactly the net amount, exactly once.
	var sellerRow domain.User
	require.NoError(t, db.First(&sellerRow, "id = ?", seller.ID).Error)
	assert.Equal(t, 100.0, sellerRow.WalletBalance)

	var row domain.Transaction
	require.NoError(t, db.First(&row, "product_id = ?", listing.ID).Error)
	assert.True(t, row.FundsReleased)
	assert.NotNil(t, row.ReleasedAt)

	// Second scan of the withdrawal code loses and credits nothing.
	_, err = svc.RecordWithdrawal(context.Background(), agent.ID, "WIT66666")
	assert.ErrorIs(t, err, domain.ErrWrongState)
	require.NoError(t, db.First(&sellerRow, "id = ?", seller.ID).Error)
	assert.Equal(t, 100.0, sellerRow.WalletBalance)
}

func TestRecordWithdrawalBeforeSale(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	createApprovedListing(t, db, seller.ID, "DEP77777", "WIT77777")

	_, err := svc.RecordWithdrawal(context.Background(), agent.ID, "WIT77777")
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestDepotQueues(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 0)
	agent := createUser(t, db, 0)
	createApprovedListing(t, db, seller.ID, "DEP88888", "WIT88888")

	_, err := svc.RecordDeposit(context.Background(), agent.ID, "DEP88888")
	require.NoError(t, err)

	queue, err := svc.DepotQueue(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	_, err = svc.RecordQualityCheck(context.Background(), agent.ID, "DEP88888", true)
	require.NoError(t, err)

	queue, err = svc.DepotQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, queue)
}
