// Package negotiation owns the buyer-seller chat and the offer protocol
// that runs inside it. One conversation per (listing, buyer); at most one
// pending offer per conversation at any time.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orus-backend/internal/domain"
	"orus-backend/internal/notify"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrOfferPending = errors.New("An offer is already pending in this conversation")
	ErrSelfChat     = errors.New("You cannot negotiate on your own listing")
)

type Service struct {
	DB     *gorm.DB
	Notify *notify.Publisher
}

func NewService(db *gorm.DB, publisher *notify.Publisher) *Service {
	return &Service{DB: db, Notify: publisher}
}

// FindOrCreateConversation returns the single conversation between the
// buyer and the listing's seller, creating it on first contact. Concurrent
// first contacts converge on one row through the unique index.
func (s *Service) FindOrCreateConversation(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Conversation, error) {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, ErrSelfChat
	}

	var conv domain.Conversation
	err = s.DB.WithContext(ctx).
		Where("product_id = ? AND buyer_id = ? AND seller_id = ?", listingID, buyerID, listing.SellerID).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = domain.Conversation{ListingID: listingID, BuyerID: buyerID, SellerID: listing.SellerID}
	err = s.DB.WithContext(ctx).Create(&conv).Error
	if err != nil && isDuplicateKey(err) {
		// Lost the race; the winner's row is the conversation.
		err = s.DB.WithContext(ctx).
			Where("product_id = ? AND buyer_id = ? AND seller_id = ?", listingID, buyerID, listing.SellerID).
			First(&conv).Error
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// MyConversations lists the user's conversations, most recently active first.
func (s *Service) MyConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := s.DB.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// getConversationFor loads the conversation and checks membership.
func (s *Service) getConversationFor(ctx context.Context, userID, convID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.DB.WithContext(ctx).Where("id = ?", convID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, domain.ErrForbidden
	}
	return &conv, nil
}

// GetMessages returns the conversation's messages, oldest first, and marks
// the counterparty's messages as read.
func (s *Service) GetMessages(ctx context.Context, userID, convID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.getConversationFor(ctx, userID, convID); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read = ?", convID, userID, false).
		Update("read", true).Error
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	err = s.DB.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// SendMessage appends a chat message and notifies the counterparty.
func (s *Service) SendMessage(ctx context.Context, userID, convID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("Message cannot be empty")
	}
	conv, err := s.getConversationFor(ctx, userID, convID)
	if err != nil {
		return nil, err
	}

	message := domain.Message{ConversationID: convID, SenderID: userID, Content: strings.TrimSpace(content)}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return touchConversation(tx, convID)
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, conv.OtherParticipant(userID), notify.EventMessage, message)
	s.Notify.ToConversation(ctx, convID, notify.EventMessage, message)
	return &message, nil
}

func touchConversation(tx *gorm.DB, convID uuid.UUID) error {
	return tx.Model(&domain.Conversation{}).
		Where("id = ?", convID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// MakeOffer proposes a price in the conversation. Only one offer can be
// pending at a time; the previous one must be accepted, declined or
// countered first. The announcement message and the offer row commit
// together.
func (s *Service) MakeOffer(ctx context.Context, senderID, convID uuid.UUID, amount float64) (*domain.Offer, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	conv, err := s.getConversationFor(ctx, senderID, convID)
	if err != nil {
		return nil, err
	}

	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", conv.ListingID).First(&listing).Error; err != nil {
		return nil, err
	}
	if !listing.Purchasable() {
		return nil, domain.ErrWrongState
	}

	var offer *domain.Offer
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		offer, err = createOffer(tx, conv, senderID, conv.OtherParticipant(senderID), amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, offer.ReceiverID, notify.EventOfferReceived, offer)
	return offer, nil
}

// createOffer writes the announcement message and the offer inside tx.
// The pending count gives the common-case error; the partial unique index
// on (conversation_id) WHERE status = 'PENDING' is what actually enforces
// the rule when two offers race past the count.
func createOffer(tx *gorm.DB, conv *domain.Conversation, senderID, receiverID uuid.UUID, amount float64) (*domain.Offer, error) {
	var pending int64
	err := tx.Model(&domain.Offer{}).
		Where("conversation_id = ? AND status = ?", conv.ID, domain.OfferPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrOfferPending
	}

	message := domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        fmt.Sprintf("Offer: %.2f", amount),
	}
	if err := tx.Create(&message).Error; err != nil {
		return nil, err
	}

	offer := domain.Offer{
		ConversationID: conv.ID,
		ListingID:      conv.ListingID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Amount:         amount,
		Status:         domain.OfferPending,
		MessageID:      message.ID,
	}
	if err := tx.Create(&offer).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrOfferPending
		}
		return nil, err
	}
	if err := touchConversation(tx, conv.ID); err != nil {
		return nil, err
	}
	return &offer, nil
}

// RespondInput is the receiver's decision on a pending offer.
type RespondInput struct {
	Action        string  `json:"action"`
	CounterAmount float64 `json:"counter_amount"`
}

// RespondToOffer settles a pending offer: accept, decline or counter.
// Only the receiver may respond. The status flip is a conditional update,
// so a response and a concurrent counter cannot both win. A counter
// atomically closes the old offer and opens the new one with roles swapped.
func (s *Service) RespondToOffer(ctx context.Context, userID, offerID uuid.UUID, in RespondInput) (*domain.Offer, error) {
	var offer domain.Offer
	err := s.DB.WithContext(ctx).Where("id = ?", offerID).First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if offer.ReceiverID != userID {
		return nil, domain.ErrForbidden
	}

	var next domain.OfferStatus
	var event string
	switch in.Action {
	case "accept":
		next, event = domain.OfferAccepted, notify.EventOfferAccepted
	case "decline":
		next, event = domain.OfferDeclined, notify.EventOfferDeclined
	case "counter":
		next, event = domain.OfferCountered, notify.EventOfferCountered
		if in.CounterAmount <= 0 {
			return nil, domain.ErrInvalidAmount
		}
	default:
		return nil, errors.New("Action must be 'accept', 'decline' or 'counter'")
	}
	if !offer.Status.CanTransitionTo(next) {
		return nil, domain.ErrWrongState
	}

	var counter *domain.Offer
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": next}
		if next == domain.OfferAccepted {
			unpaid := domain.OfferUnpaid
			updates["payment_status"] = unpaid
		}
		res := tx.Model(&domain.Offer{}).
			Where("id = ? AND status = ?", offerID, domain.OfferPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrWrongState
		}
		offer.Status = next
		if next == domain.OfferAccepted {
			unpaid := domain.OfferUnpaid
			offer.PaymentStatus = &unpaid
		}

		message := domain.Message{
			ConversationID: offer.ConversationID,
			SenderID:       userID,
			Content:        responseMessage(next, offer.Amount),
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		if err := touchConversation(tx, offer.ConversationID); err != nil {
			return err
		}

		if next == domain.OfferCountered {
			var conv domain.Conversation
			if err := tx.Where("id = ?", offer.ConversationID).First(&conv).Error; err != nil {
				return err
			}
			var err error
			counter, err = createOffer(tx, &conv, userID, offer.SenderID, in.CounterAmount)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.ToUser(ctx, offer.SenderID, event, offer)
	if counter != nil {
		return counter, nil
	}
	return &offer, nil
}

func responseMessage(status domain.OfferStatus, amount float64) string {
	switch status {
	case domain.OfferAccepted:
		return fmt.Sprintf("Offer of %.2f accepted", amount)
	case domain.OfferDeclined:
		return fmt.Sprintf("Offer of %.2f declined", amount)
	default:
		return fmt.Sprintf("Offer of %.2f countered", amount)
	}
}

// ListOffers returns the conversation's offers, newest first.
func (s *Service) ListOffers(ctx context.Context, userID, convID uuid.UUID) ([]domain.Offer, error) {
	if _, err := s.getConversationFor(ctx, userID, convID); err != nil {
		return nil, err
	}
	var offers []domain.Offer
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Find(&offers).Error
	return offers, err
}

// GetOffer loads one offer visible to its sender or receiver.
func (s *Service) GetOffer(ctx context.Context, userID, offerID uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	err := s.DB.WithContext(ctx).Where("id = ?", offerID).First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if offer.SenderID != userID && offer.ReceiverID != userID {
		return nil, domain.ErrForbidden
	}
	return &offer, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
