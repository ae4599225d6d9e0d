package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/validation"

	"github.com/google/uuid"
)

// AddressService manages shipping addresses, at most one default per user
type AddressService struct {
	addresses AddressRepository
}

func NewAddressService(addresses AddressRepository) *AddressService {
	return &AddressService{addresses: addresses}
}

func (s *AddressService) CreateAddress(ctx context.Context, actor Actor, req *validation.AddressRequest) (*models.Address, error) {
	address := &models.Address{ID: uuid.New().String(), UserID: actor.UserID}
	applyAddressRequest(address, req)

	if err := s.addresses.CreateAddress(ctx, address); err != nil {
		return nil, fromStore(err, "address", address.ID)
	}
	return address, nil
}

func (s *AddressService) GetAddress(ctx context.Context, actor Actor, id string) (*models.Address, error) {
	address, err := s.addresses.GetAddressByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "address", id)
	}
	if !actor.canAccess(address.UserID) {
		return nil, ForbiddenError("address belongs to another user")
	}
	return address, nil
}

func (s *AddressService) ListAddresses(ctx context.Context, actor Actor) ([]models.Address, error) {
	addresses, err := s.addresses.ListAddressesByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

func (s *AddressService) UpdateAddress(ctx context.Context, actor Actor, id string, req *validation.AddressRequest) (*models.Address, error) {
	address, err := s.GetAddress(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	applyAddressRequest(address, req)

	if err := s.addresses.UpdateAddress(ctx, address); err != nil {
		return nil, fromStore(err, "address", id)
	}
	return address, nil
}

func (s *AddressService) SetDefaultAddress(ctx context.Context, actor Actor, id string) (*models.Address, error) {
	address, err := s.GetAddress(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.addresses.SetDefaultAddress(ctx, address.UserID, id); err != nil {
		return nil, fromStore(err, "address", id)
	}
	address.IsDefault = true
	return address, nil
}

func (s *AddressService) DeleteAddress(ctx context.Context, actor Actor, id string) error {
	if _, err := s.GetAddress(ctx, actor, id); err != nil {
		return err
	}
	return fromStore(s.addresses.DeleteAddress(ctx, id), "address", id)
}

func applyAddressRequest(address *models.Address, req *validation.AddressRequest) {
	address.Street = req.Street
	address.City = req.City
	address.State = req.State
	address.Neighborhood = req.Neighborhood
	address.PostalCode = req.PostalCode
	address.ExteriorNumber = req.ExteriorNumber
	address.InteriorNumber = req.InteriorNumber
	address.IsDefault = req.IsDefault
}
