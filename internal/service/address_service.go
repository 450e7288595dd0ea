package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddressService manages the per-user address book. Ownership is strict:
// admins get no access to other users' addresses.
type AddressService struct {
	addresses AddressStore
	logger    *zap.Logger
}

func NewAddressService(addresses AddressStore) *AddressService {
	return &AddressService{addresses: addresses, logger: util.GetLogger()}
}

type CreateAddressRequest struct {
	Street       string  `json:"street" binding:"required"`
	Number       string  `json:"number" binding:"required"`
	Complement   *string `json:"complement"`
	Neighborhood string  `json:"neighborhood" binding:"required"`
	City         string  `json:"city" binding:"required"`
	State        string  `json:"state" binding:"required"`
	ZipCode      string  `json:"zipCode" binding:"required"`
}

// UpdateAddressRequest only touches number and complement.
type UpdateAddressRequest struct {
	Number     *string `json:"number" binding:"omitempty,min=1"`
	Complement *string `json:"complement"`
}

func (s *AddressService) Create(ctx context.Context, p *Principal, req *CreateAddressRequest) (*models.Address, error) {
	if err := Authorize(p, Authenticated()); err != nil {
		return nil, err
	}

	a := &models.Address{
		ID:           uuid.New(),
		UserID:       p.UserID,
		Street:       req.Street,
		Number:       req.Number,
		Complement:   req.Complement,
		Neighborhood: req.Neighborhood,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
	}
	if err := s.addresses.CreateAddress(ctx, a); err != nil {
		return nil, InternalError(fmt.Errorf("create address: %w", err))
	}
	return a, nil
}

func (s *AddressService) List(ctx context.Context, p *Principal) ([]models.Address, error) {
	if err := Authorize(p, Authenticated()); err != nil {
		return nil, err
	}
	addrs, err := s.addresses.ListAddressesByUser(ctx, p.UserID)
	if err != nil {
		return nil, InternalError(fmt.Errorf("list addresses: %w", err))
	}
	return addrs, nil
}

// Get returns an address owned by the caller. Unknown ids and other users'
// addresses are indistinguishable to the caller.
func (s *AddressService) Get(ctx context.Context, p *Principal, id uuid.UUID) (*models.Address, error) {
	if err := Authorize(p, Authenticated()); err != nil {
		return nil, err
	}

	a, err := s.addresses.GetAddressByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindForbidden, "access denied")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load address: %w", err))
	}
	if err := Authorize(p, OwnerOf(a.UserID)); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AddressService) Update(ctx context.Context, p *Principal, id uuid.UUID, req *UpdateAddressRequest) (*models.Address, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if req.Number != nil {
		if *req.Number == "" {
			return nil, ValidationError(map[string]string{"number": "must not be empty"})
		}
		a.Number = *req.Number
	}
	if req.Complement != nil {
		a.Complement = req.Complement
	}

	if err := s.addresses.UpdateAddress(ctx, a); err != nil {
		return nil, InternalError(fmt.Errorf("update address: %w", err))
	}
	return a, nil
}

func (s *AddressService) Delete(ctx context.Context, p *Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.addresses.DeleteAddress(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return InternalError(fmt.Errorf("delete address: %w", err))
	}
	s.logger.Info("Address deleted", zap.String("address_id", id.String()), zap.String("user_id", p.UserID.String()))
	return nil
}
