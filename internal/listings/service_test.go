package listings

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

func createUser(t *testing.T, db *gorm.DB, verified bool) *domain.User {
	user := domain.User{
		Email:            uuid.New().String() + "@test.local",
		PasswordHash:     "x",
		FullName:         "Test User",
		Role:             "USER",
		IsVerifiedSeller: verified,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestCreateListing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{
		Title: "Old radio", Price: 40, Category: "electronics",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationPending, listing.ModerationState)
	assert.Equal(t, domain.LogisticsAwaitingDeposit, listing.LogisticsState)
	assert.Equal(t, domain.ConformityPending, listing.ConformityState)
	assert.Nil(t, listing.DepositCode)
	assert.Nil(t, listing.WithdrawalCode)
	assert.False(t, listing.SelfCertified)

	var event domain.ListingEvent
	require.NoError(t, db.First(&event, "product_id = ? AND event_type = ?", listing.ID, domain.EventCreated).Error)
}

func TestCreateListingValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)

	_, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "", Price: 40})
	assert.Error(t, err)

	_, err = svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Free stuff", Price: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCreateListingSelfCertified(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, true)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Pro gear", Price: 300})
	require.NoError(t, err)
	assert.True(t, listing.SelfCertified)
	assert.Equal(t, domain.ModerationApproved, listing.ModerationState)
	assert.Equal(t, domain.LogisticsQualityChecked, listing.LogisticsState)
	assert.Equal(t, domain.ConformityConforme, listing.ConformityState)
	require.NotNil(t, listing.DepositCode)
	require.NotNil(t, listing.WithdrawalCode)
	assert.Len(t, *listing.DepositCode, 8)
	assert.NotEqual(t, *listing.DepositCode, *listing.WithdrawalCode)

	// Goes straight into the shop.
	shop, err := svc.BrowseListings(context.Background(), BrowseFilter{})
	require.NoError(t, err)
	assert.Len(t, shop, 1)
}

func TestModerateApprove(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Old radio", Price: 40})
	require.NoError(t, err)

	approved, err := svc.Moderate(context.Background(), moderator.ID, listing.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationApproved, approved.ModerationState)
	require.NotNil(t, approved.DepositCode)
	require.NotNil(t, approved.WithdrawalCode)

	// Moderating twice is a conflict.
	_, err = svc.Moderate(context.Background(), moderator.ID, listing.ID, false, "changed my mind")
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestModerateApproveSelfCertified(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)

	// An unverified seller self-certifies: still moderated, but approval
	// skips the depot.
	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{
		Title: "Mint condition watch", Price: 250, SelfCertified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationPending, listing.ModerationState)
	assert.True(t, listing.SelfCertified)

	approved, err := svc.Moderate(context.Background(), moderator.ID, listing.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, domain.LogisticsQualityChecked, approved.LogisticsState)
	assert.Equal(t, domain.ConformityConforme, approved.ConformityState)

	shop, err := svc.BrowseListings(context.Background(), BrowseFilter{})
	require.NoError(t, err)
	assert.Len(t, shop, 1)
}

func TestModerateReject(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Counterfeit bag", Price: 40})
	require.NoError(t, err)

	rejected, err := svc.Moderate(context.Background(), moderator.ID, listing.ID, false, "prohibited item")
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationRejected, rejected.ModerationState)
	assert.Nil(t, rejected.DepositCode)

	shop, err := svc.BrowseListings(context.Background(), BrowseFilter{})
	require.NoError(t, err)
	assert.Empty(t, shop)
}

func TestWithdrawListing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	fan := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Old radio", Price: 40})
	require.NoError(t, err)
	require.NoError(t, svc.LikeListing(context.Background(), fan.ID, listing.ID))

	// Only the owner may withdraw.
	_, err = svc.WithdrawListing(context.Background(), fan.ID, listing.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	withdrawn, err := svc.WithdrawListing(context.Background(), seller.ID, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationWithdrawnBySeller, withdrawn.ModerationState)

	var likes int64
	db.Model(&domain.Like{}).Where("product_id = ?", listing.ID).Count(&likes)
	assert.EqualValues(t, 0, likes)

	// Terminal: cannot withdraw again.
	_, err = svc.WithdrawListing(context.Background(), seller.ID, listing.ID)
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestWithdrawSoldListing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	buyer := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Old radio", Price: 40})
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Listing{}).Where("id = ?", listing.ID).
		Update("buyer_id", buyer.ID).Error)

	_, err = svc.WithdrawListing(context.Background(), seller.ID, listing.ID)
	assert.ErrorIs(t, err, domain.ErrWrongState)
}

func TestBanListing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)
	fan := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Old radio", Price: 40})
	require.NoError(t, err)
	_, err = svc.Moderate(context.Background(), moderator.ID, listing.ID, true, "")
	require.NoError(t, err)
	require.NoError(t, svc.LikeListing(context.Background(), fan.ID, listing.ID))

	banned, err := svc.BanListing(context.Background(), moderator.ID, listing.ID, "reported")
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationBannedByModerator, banned.ModerationState)

	var likes int64
	db.Model(&domain.Like{}).Where("product_id = ?", listing.ID).Count(&likes)
	assert.EqualValues(t, 0, likes)
}

func TestBrowseListingsVisibility(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)

	// Pending: hidden.
	pending, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Pending radio", Price: 40})
	require.NoError(t, err)

	shop, err := svc.BrowseListings(context.Background(), BrowseFilter{})
	require.NoError(t, err)
	assert.Empty(t, shop)

	// Approved but still awaiting deposit: hidden.
	_, err = svc.Moderate(context.Background(), moderator.ID, pending.ID, true, "")
	require.NoError(t, err)
	shop, err = svc.BrowseListings(context.Background(), BrowseFilter{})
	require.NoError(t, err)
	assert.Empty(t, shop)

	// Quality checked: visible.
	require.NoError(t, db.Model(&domain.Listing{}).Where("id = ?", pending.ID).
		Updates(map[string]interface{}{
			"logistics_state":  domain.LogisticsQualityChecked,
			"conformity_state": domain.ConformityConforme,
		}).Error)
	shop, err = svc.BrowseListings(context.Background(), BrowseFilter{})
	require.NoError(t, err)
	assert.Len(t, shop, 1)

	// Category and text filters.
	shop, err = svc.BrowseListings(context.Background(), BrowseFilter{Query: "radio"})
	require.NoError(t, err)
	assert.Len(t, shop, 1)
	shop, err = svc.BrowseListings(context.Background(), BrowseFilter{Query: "piano"})
	require.NoError(t, err)
	assert.Empty(t, shop)
	shop, err = svc.BrowseListings(context.Background(), BrowseFilter{Category: "books"})
	require.NoError(t, err)
	assert.Empty(t, shop)
}

func TestLikeUnlike(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)
	fan := createUser(t, db, false)

	listing, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Old radio", Price: 40})
	require.NoError(t, err)
	_, err = svc.Moderate(context.Background(), moderator.ID, listing.ID, true, "")
	require.NoError(t, err)

	require.NoError(t, svc.LikeListing(context.Background(), fan.ID, listing.ID))
	// Liking twice is a no-op, not an error.
	require.NoError(t, svc.LikeListing(context.Background(), fan.ID, listing.ID))

	liked, err := svc.MyLikes(context.Background(), fan.ID)
	require.NoError(t, err)
	assert.Len(t, liked, 1)

	require.NoError(t, svc.UnlikeListing(context.Background(), fan.ID, listing.ID))
	liked, err = svc.MyLikes(context.Background(), fan.ID)
	require.NoError(t, err)
	assert.Empty(t, liked)

	assert.ErrorIs(t, svc.LikeListing(context.Background(), fan.ID, uuid.New()), domain.ErrNotFound)
}

func TestModerationQueue(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, notify.New(nil))
	seller := createUser(t, db, false)
	moderator := createUser(t, db, false)

	first, err := svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "First", Price: 10})
	require.NoError(t, err)
	_, err = svc.CreateListing(context.Background(), seller.ID, CreateInput{Title: "Second", Price: 20})
	require.NoError(t, err)

	queue, err := svc.ModerationQueue(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	_, err = svc.Moderate(context.Background(), moderator.ID, first.ID, true, "")
	require.NoError(t, err)

	queue, err = svc.ModerationQueue(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue, 1)
	assert.Equal(t, "Second", queue[0].Title)
}

func TestUniqueCodes(t *testing.T) {
	db := setupTestDB(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := uniqueCode(db)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		assert.False(t, seen[code])
		seen[code] = true
	}
}
