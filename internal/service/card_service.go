package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"
	"storefront/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CardService manages stored payment cards, at most one default per user
type CardService struct {
	cards  CardRepository
	logger *zap.Logger
}

// NewCardService creates a new card service
func NewCardService(cards CardRepository) *CardService {
	return &CardService{cards: cards, logger: util.GetLogger()}
}

// CreateCard stores a card for the caller
func (s *CardService) CreateCard(ctx context.Context, actor Actor, req *validation.CardRequest) (*models.Card, error) {
	card := &models.Card{ID: uuid.New().String(), UserID: actor.UserID}
	applyCardRequest(card, req)

	if err := s.cards.CreateCard(ctx, card); err != nil {
		return nil, fromStore(err, "card", card.ID)
	}
	s.logger.Info("Card created", zap.String("card_id", card.ID), zap.Bool("default", card.IsDefault))
	return card, nil
}

// GetCard returns one of the caller's cards
func (s *CardService) GetCard(ctx context.Context, actor Actor, id string) (*models.Card, error) {
	card, err := s.cards.GetCardByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "card", id)
	}
	if !actor.canAccess(card.UserID) {
		return nil, ForbiddenError("card belongs to another user")
	}
	return card, nil
}

// ListCards returns the caller's cards, default first
func (s *CardService) ListCards(ctx context.Context, actor Actor) ([]models.Card, error) {
	cards, err := s.cards.ListCardsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// UpdateCard overwrites a card. Setting is_default while another card is default is a conflict.
func (s *CardService) UpdateCard(ctx context.Context, actor Actor, id string, req *validation.CardRequest) (*models.Card, error) {
	card, err := s.GetCard(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	applyCardRequest(card, req)

	if err := s.cards.UpdateCard(ctx, card); err != nil {
		return nil, fromStore(err, "card", id)
	}
	return card, nil
}

// SetDefaultCard moves the default flag to id
func (s *CardService) SetDefaultCard(ctx context.Context, actor Actor, id string) (*models.Card, error) {
	card, err := s.GetCard(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.cards.SetDefaultCard(ctx, card.UserID, id); err != nil {
		return nil, fromStore(err, "card", id)
	}
	card.IsDefault = true
	return card, nil
}

// DeleteCard removes one of the caller's cards
func (s *CardService) DeleteCard(ctx context.Context, actor Actor, id string) error {
	if _, err := s.GetCard(ctx, actor, id); err != nil {
		return err
	}
	return fromStore(s.cards.DeleteCard(ctx, id), "card", id)
}

func applyCardRequest(card *models.Card, req *validation.CardRequest) {
	card.Number = req.Number
	card.HolderName = req.HolderName
	card.Expiry = req.Expiry
	card.CVV = req.CVV
	card.IsDefault = req.IsDefault
}
