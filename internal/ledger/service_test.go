package ledger

import (
	"context"
	"testing"

	"orus-backend/internal/database"
	"orus-backend/internal/domain"
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

func createListing(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price float64) *domain.Listing {
	listing := domain.Listing{
		SellerID:        sellerID,
		Title:           "Vintage lamp",
		Price:           price,
		ModerationState: domain.ModerationApproved,
		LogisticsState:  domain.LogisticsQualityChecked,
		ConformityState: domain.ConformityConforme,
	}
	require.NoError(t, db.Create(&listing).Error)
	return &listing
}

func TestSplit(t *testing.T) {
	gross, commission, net := Split(100)
	assert.Equal(t, 110.0, gross)
	assert.Equal(t, 10.0, commission)
	assert.Equal(t, 100.0, net)

	// Awkward amounts still satisfy gross = net + commission exactly.
	for _, amount := range []float64{0.01, 9.99, 33.33, 123.45, 0.05} {
		gross, commission, net = Split(amount)
		assert.Equal(t, gross, Round2(net+commission), "amount %v", amount)
		assert.GreaterOrEqual(t, commission, 0.0)
	}
}

func TestRecordPurchase(t *testing.T) {
	db := setupTestDB(t)
	seller := createUser(t, db, 0)
	buyer := createUser(t, db, 500)
	listing := createListing(t, db, seller.ID, 100)

	var transaction *domain.Transaction
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		transaction, err = RecordPurchase(tx, listing, buyer.ID, 100)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 110.0, transaction.GrossAmount)
	assert.Equal(t, 10.0, transaction.Commission)
	assert.Equal(t, 100.0, transaction.NetSellerAmount)
	assert.Equal(t, domain.TxCompleted, transaction.Status)
	assert.False(t, transaction.FundsReleased)

	// Buyer paid gross, seller gets nothing until release.
	var buyerRow, sellerRow domain.User
	require.NoError(t, db.First(&buyerRow, "id = ?", buyer.ID).Error)
	require.NoError(t, db.First(&sellerRow, "id = ?", seller.ID).Error)
	assert.Equal(t, 390.0, buyerRow.WalletBalance)
	assert.Equal(t, 0.0, sellerRow.WalletBalance)

	var entry domain.WalletEntry
	require.NoError(t, db.First(&entry, "user_id = ?", buyer.ID).Error)
	assert.Equal(t, domain.WalletEntryPurchase, entry.Type)
	assert.Equal(t, -110.0, entry.Amount)
	assert.Equal(t, 390.0, entry.BalanceAfter)
}

func TestRecordPurchaseInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	seller := createUser(t, db, 0)
	buyer := createUser(t, db, 100) // gross is 110
	listing := createListing(t, db, seller.ID, 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := RecordPurchase(tx, listing, buyer.ID, 100)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Nothing moved.
	var buyerRow domain.User
	require.NoError(t, db.First(&buyerRow, "id = ?", buyer.ID).Error)
	assert.Equal(t, 100.0, buyerRow.WalletBalance)
	var count int64
	db.Model(&domain.Transaction{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestReleaseEscrowIdempotent(t *testing.T) {
	db := setupTestDB(t)
	seller := createUser(t, db, 0)
	buyer := createUser(t, db, 500)
	listing := createListing(t, db, seller.ID, 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := RecordPurchase(tx, listing, buyer.ID, 100)
		return err
	})
	require.NoError(t, err)

	var released bool
	err = db.Transaction(func(tx *gorm.DB) error {
		_, released, err = ReleaseEscrow(tx, listing.ID)
		return err
	})
	require.NoError(t, err)
	assert.True(t, released)

	// Second release credits nothing.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, released, err = ReleaseEscrow(tx, listing.ID)
		return err
	})
	require.NoError(t, err)
	assert.False(t, released)

	var sellerRow domain.User
	require.NoError(t, db.First(&sellerRow, "id = ?", seller.ID).Error)
	assert.Equal(t, 100.0, sellerRow.WalletBalance)

	var entries int64
	db.Model(&domain.WalletEntry{}).Where("user_id = ?", seller.ID).Count(&entries)
	assert.EqualValues(t, 1, entries)
}

func TestReleaseEscrowWithoutTransaction(t *testing.T) {
	db := setupTestDB(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := ReleaseEscrow(tx, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetWallet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, 25)
	buyer := createUser(t, db, 500)
	listing := createListing(t, db, seller.ID, 80)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := RecordPurchase(tx, listing, buyer.ID, 80)
		return err
	})
	require.NoError(t, err)

	wallet, err := svc.GetWallet(context.Background(), seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, wallet.Balance)
	assert.Equal(t, 80.0, wallet.PendingEscrow)
}

func TestRequestPayout(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	user := createUser(t, db, 200)

	payout, err := svc.RequestPayout(context.Background(), user.ID, 150, "FR7612345678901234567890123")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutPending, payout.Status)
	assert.Equal(t, 150.0, payout.Amount)

	// Balance is untouched until the payout is processed.
	wallet, err := svc.GetWallet(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, wallet.Balance)

	_, err = svc.RequestPayout(context.Background(), user.ID, 500, "FR7612345678901234567890123")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = svc.RequestPayout(context.Background(), user.ID, -5, "FR7612345678901234567890123")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCompletePayout(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	user := createUser(t, db, 200)
	admin := createUser(t, db, 0)

	payout, err := svc.RequestPayout(context.Background(), user.ID, 150, "FR7612345678901234567890123")
	require.NoError(t, err)

	completed, err := svc.CompletePayout(context.Background(), payout.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, completed.Status)
	require.NotNil(t, completed.ProcessedBy)
	assert.Equal(t, admin.ID, *completed.ProcessedBy)

	wallet, err := svc.GetWallet(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, wallet.Balance)

	var entry domain.WalletEntry
	require.NoError(t, db.First(&entry, "user_id = ? AND type = ?", user.ID, domain.WalletEntryPayout).Error)
	assert.Equal(t, -150.0, entry.Amount)
	assert.Equal(t, 50.0, entry.BalanceAfter)

	// Processing again is a conflict.
	_, err = svc.CompletePayout(context.Background(), payout.ID, admin.ID)
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestCompletePayoutRevalidatesBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	user := createUser(t, db, 200)
	admin := createUser(t, db, 0)

	payout, err := svc.RequestPayout(context.Background(), user.ID, 150, "FR7612345678901234567890123")
	require.NoError(t, err)

	// Balance drops between request and processing.
	require.NoError(t, db.Model(&domain.User{}).Where("id = ?", user.ID).Update("wallet_balance", 100).Error)

	_, err = svc.CompletePayout(context.Background(), payout.ID, admin.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Request stays pending; nothing was debited.
	var row domain.PayoutRequest
	require.NoError(t, db.First(&row, "id = ?", payout.ID).Error)
	assert.Equal(t, domain.PayoutPending, row.Status)
	wallet, err := svc.GetWallet(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, wallet.Balance)
}

func TestRejectPayout(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	user := createUser(t, db, 200)
	admin := createUser(t, db, 0)

	payout, err := svc.RequestPayout(context.Background(), user.ID, 150, "FR7612345678901234567890123")
	require.NoError(t, err)

	rejected, err := svc.RejectPayout(context.Background(), payout.ID, admin.ID, "IBAN mismatch")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "IBAN mismatch", *rejected.RejectionReason)

	wallet, err := svc.GetWallet(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, wallet.Balance)

	_, err = svc.RejectPayout(context.Background(), payout.ID, admin.ID, "again")
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestTopUpWallet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	user := createUser(t, db, 10)

	wallet, err := svc.TopUpWallet(context.Background(), user.ID, 90)
	require.NoError(t, err)
	assert.Equal(t, 100.0, wallet.Balance)

	_, err = svc.TopUpWallet(context.Background(), user.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
