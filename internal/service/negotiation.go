package service

import (
	"context"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// The negotiation keeps two slots on the order: the dispatcher's price and the
// client's latest counter-offer. A new counter-offer overwrites the previous
// one and nothing resolves on its own.

// CounterOffer records the client's own price for a PRICE_OFFERED order.
func (s *OrderService) CounterOffer(ctx context.Context, clientID, orderID string, amount float64) (*domain.Order, error) {
	if err := validatePrice(amount); err != nil {
		return nil, err
	}

	order, err := s.transition(ctx, clientActor(clientID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if err := requireOwner(o, clientID); err != nil {
			return nil, repository.OrderChange{}, err
		}
		return requireStatus(o, domain.OrderStatusPriceOffered, repository.OrderChange{CounterOffer: &amount})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCounterOffered(ctx, order)
	return order, nil
}

// AcceptCounter makes the counter-offer the price and accepts the order.
func (s *OrderService) AcceptCounter(ctx context.Context, adminID int64, orderID string) (*domain.Order, error) {
	order, err := s.transition(ctx, adminActor(adminID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if err := requireCounterOffer(o); err != nil {
			return nil, repository.OrderChange{}, err
		}
		counter := *o.CounterOffer
		return requireStatus(o, domain.OrderStatusPriceOffered,
			repository.OrderChange{Status: domain.OrderStatusAccepted, Price: &counter})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCounterAccepted(ctx, order)
	return order, nil
}

// DeclineCounter rejects the counter-offer and closes the order as DECLINED.
func (s *OrderService) DeclineCounter(ctx context.Context, adminID int64, orderID string) (*domain.Order, error) {
	order, err := s.transition(ctx, adminActor(adminID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if err := requireCounterOffer(o); err != nil {
			return nil, repository.OrderChange{}, err
		}
		return requireStatus(o, domain.OrderStatusPriceOffered, repository.OrderChange{Status: domain.OrderStatusDeclined})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCounterDeclined(ctx, order)
	return order, nil
}

// AdminCounter answers a counter-offer with a new dispatcher price.
func (s *OrderService) AdminCounter(ctx context.Context, adminID int64, orderID string, price float64) (*domain.Order, error) {
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	order, err := s.transition(ctx, adminActor(adminID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if err := requireCounterOffer(o); err != nil {
			return nil, repository.OrderChange{}, err
		}
		return requireStatus(o, domain.OrderStatusPriceOffered,
			repository.OrderChange{Status: domain.OrderStatusPriceOffered, Price: &price})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyPriceOffered(ctx, order)
	return order, nil
}

func requireCounterOffer(o *domain.Order) error {
	if o.Status != domain.OrderStatusPriceOffered {
		return ErrInvalidOrderState
	}
	if o.CounterOffer == nil {
		return ErrNoCounterOffer
	}
	return nil
}
